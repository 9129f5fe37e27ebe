package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a senior PR strategist at a communications agency. " +
	"Answer concisely and concretely for the client described by the user."

// SystemPrompt returns the shared system message for all generation calls.
func SystemPrompt() string { return systemPrompt }

// TrendPrompt builds the user message for trend analysis.
func TrendPrompt(clientName, industry string, keywords []string, articles []Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze current media trends relevant to %s", clientName)
	if industry != "" {
		fmt.Fprintf(&b, " (industry: %s)", industry)
	}
	b.WriteString(".\n")
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Focus keywords: %s.\n", strings.Join(keywords, ", "))
	}
	if len(articles) > 0 {
		b.WriteString("Recent coverage:\n")
		for _, a := range articles {
			fmt.Fprintf(&b, "- %s (%s)\n", a.Title, a.Source)
		}
	}
	b.WriteString("Summarize the dominant narratives and where the client can insert itself.")
	return b.String()
}

// IdeaPrompt builds the user message for campaign idea generation.
func IdeaPrompt(clientName, industry, brief string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Propose PR campaign ideas for %s", clientName)
	if industry != "" {
		fmt.Fprintf(&b, " (industry: %s)", industry)
	}
	b.WriteString(".\n")
	if brief != "" {
		fmt.Fprintf(&b, "Brief: %s\n", brief)
	}
	b.WriteString("Give a short pitch and three distinct angles.")
	return b.String()
}

// HeadlinePrompt builds the user message for headline generation.
func HeadlinePrompt(clientName, topic string, count int) string {
	if count <= 0 || count > 25 {
		count = 5
	}
	return fmt.Sprintf("Write %d press-release headlines for %s about: %s", count, clientName, topic)
}

// PressReleasePrompt builds the user message for a full press release.
func PressReleasePrompt(clientName, industry, announcement string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a press release for %s", clientName)
	if industry != "" {
		fmt.Fprintf(&b, " (industry: %s)", industry)
	}
	fmt.Fprintf(&b, ".\nAnnouncement: %s\n", announcement)
	b.WriteString("Include a headline, body, and a one-paragraph boilerplate.")
	return b.String()
}
