// Package teams posts alert notifications to chat channels as adaptive
// cards over incoming webhooks.
package teams

import "time"

// Notification carries everything the card renders.
type Notification struct {
	Assignee       string
	Source         string
	Resource       string
	Trigger        string
	Priority       string
	Timestamp      time.Time
	Infrastructure string
	TicketKey      string
	TicketURL      string
	Summary        string
}

// card payload types follow the adaptive-card schema the channels expect:
// a header block, an intro paragraph, a two-column fact table, and an
// optional open-ticket button.

type webhookPayload struct {
	Type        string       `json:"type"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	ContentType string `json:"contentType"`
	Content     card   `json:"content"`
}

type card struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []element `json:"body"`
	Actions []action  `json:"actions,omitempty"`
}

type element struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Size    string `json:"size,omitempty"`
	Weight  string `json:"weight,omitempty"`
	Wrap    bool   `json:"wrap,omitempty"`
	Facts   []fact `json:"facts,omitempty"`
	Spacing string `json:"spacing,omitempty"`
}

type fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type action struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func buildCard(n Notification) webhookPayload {
	greeting := "A new alert has been assigned."
	if n.Assignee != "" {
		greeting = "Hi " + n.Assignee + ", a new alert has been routed to your team."
	}

	facts := []fact{
		{Title: "Source", Value: n.Source},
		{Title: "Resource", Value: n.Resource},
		{Title: "Trigger", Value: n.Trigger},
		{Title: "Priority", Value: n.Priority},
		{Title: "Timestamp", Value: n.Timestamp.UTC().Format(time.RFC3339)},
		{Title: "Infrastructure", Value: n.Infrastructure},
		{Title: "Ticket", Value: n.TicketKey},
	}

	body := []element{
		{Type: "TextBlock", Text: "Monitoring Alert", Size: "Large", Weight: "Bolder"},
		{Type: "TextBlock", Text: greeting, Wrap: true},
		{Type: "FactSet", Facts: facts, Spacing: "Medium"},
	}
	if n.Summary != "" {
		body = append(body, element{Type: "TextBlock", Text: n.Summary, Wrap: true, Spacing: "Medium"})
	}

	c := card{
		Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
		Type:    "AdaptiveCard",
		Version: "1.4",
		Body:    body,
	}
	if n.TicketURL != "" {
		c.Actions = []action{{Type: "Action.OpenUrl", Title: "Open " + n.TicketKey, URL: n.TicketURL}}
	}

	return webhookPayload{
		Type: "message",
		Attachments: []attachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content:     c,
		}},
	}
}
