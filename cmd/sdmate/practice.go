package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chadiek/sd-mate/internal/catalog"
	"github.com/chadiek/sd-mate/internal/config"
	"github.com/chadiek/sd-mate/internal/console"
)

func newPracticeCmd() *cobra.Command {
	var (
		o        overrides
		article  string
		duration string
	)
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Practice interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			o.apply(cmd, &cfg)
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctl := buildController(cfg, log)
			con := console.New(ctl, cfg.DefaultDuration, log)
			defer func() {
				stop()
				ctl.Close()
				con.Wait()
			}()

			choice, err := preselected(article, duration, cfg.DefaultDuration)
			if err != nil {
				return err
			}
			if choice.URL == "" {
				if choice, err = con.Choose(ctx); err != nil {
					return err
				}
			}
			con.Start(ctx, choice)
			return con.Run(ctx)
		},
	}
	o.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&article, "article", "", "curated article id or blog URL; prompts when empty")
	flags.StringVar(&duration, "duration", "", "session length: 300, 600, 900 or 5m, 10m, 15m")
	return cmd
}

// preselected resolves the --article and --duration flags. An empty article
// yields an empty Choice.
func preselected(article, duration string, def int) (console.Choice, error) {
	if article == "" {
		return console.Choice{}, nil
	}
	ch := console.Choice{Duration: def}
	if duration != "" {
		d, err := catalog.ParseDuration(duration)
		if err != nil {
			return console.Choice{}, err
		}
		ch.Duration = d
	}
	if a, ok := catalog.Lookup(article); ok {
		ch.Title, ch.URL = a.Title, a.URL
	} else {
		ch.Title, ch.URL = "", article
	}
	return ch, nil
}
