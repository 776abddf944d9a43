// Package catalog lists the curated articles and the selectable session lengths.
package catalog

import (
	"fmt"
	"strings"
)

// Welcome greets the user before any session is loaded.
const Welcome = "Hello! I'm your system design interviewer for your practice. Please select a blog to get started"

type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Duration is a selectable session length.
type Duration struct {
	Seconds int    `json:"seconds"`
	Label   string `json:"label"`
}

const DefaultDuration = 600

var durations = []Duration{
	{Seconds: 300, Label: "5 minutes"},
	{Seconds: 600, Label: "10 minutes"},
	{Seconds: 900, Label: "15 minutes"},
}

var articles = []Article{
	{
		ID:          "1",
		Title:       "Design a Chat Application Like WhatsApp",
		URL:         "https://blog.algomaster.io/p/design-a-chat-application-like-whatsapp",
		Description: "Learn how to design a scalable real-time chat application similar to WhatsApp.",
	},
	{
		ID:          "2",
		Title:       "Design Spotify: System Design Interview",
		URL:         "https://blog.algomaster.io/p/design-spotify-system-design-interview",
		Description: "Explore the system design principles behind a music streaming service like Spotify.",
	},
	{
		ID:          "3",
		Title:       "Design a URL Shortener",
		URL:         "https://blog.algomaster.io/p/design-a-url-shortener",
		Description: "Understand how to build a highly available and scalable URL shortening service.",
	},
	{
		ID:          "4",
		Title:       "Design a Scalable Notification Service",
		URL:         "https://blog.algomaster.io/p/design-a-scalable-notification-service",
		Description: "Learn to design a robust and scalable notification system for millions of users.",
	},
	{
		ID:          "5",
		Title:       "Design a Distributed Job Scheduler",
		URL:         "https://blog.algomaster.io/p/design-a-distributed-job-scheduler",
		Description: "Discover the architecture and challenges of designing a distributed job scheduler.",
	},
	{
		ID:          "6",
		Title:       "Design Instagram: A System Design Interview Question",
		URL:         "https://www.geeksforgeeks.org/system-design/design-instagram-a-system-design-interview-question/",
		Description: "Delve into the system design of a popular photo and video sharing application like Instagram.",
	},
}

// Articles returns a copy of the curated list.
func Articles() []Article { return append([]Article(nil), articles...) }

// Durations returns the selectable session lengths.
func Durations() []Duration { return append([]Duration(nil), durations...) }

// Lookup finds an article by id.
func Lookup(id string) (Article, bool) {
	id = strings.TrimSpace(id)
	for _, a := range articles {
		if a.ID == id {
			return a, true
		}
	}
	return Article{}, false
}

// ValidDuration reports whether seconds is one of the selectable lengths.
func ValidDuration(seconds int) bool {
	for _, d := range durations {
		if d.Seconds == seconds {
			return true
		}
	}
	return false
}

// ParseDuration accepts a second count ("600") or minutes ("10m").
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var n int
	var err error
	if strings.HasSuffix(s, "m") {
		_, err = fmt.Sscanf(strings.TrimSuffix(s, "m"), "%d", &n)
		n *= 60
	} else {
		_, err = fmt.Sscanf(s, "%d", &n)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if !ValidDuration(n) {
		return 0, fmt.Errorf("duration %d not offered; choose 300, 600 or 900 seconds", n)
	}
	return n, nil
}
