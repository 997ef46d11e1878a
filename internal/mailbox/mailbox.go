// Package mailbox names the mail-store connector consumed by the ingester.
// Concrete connectors (Outlook, IMAP) live outside this repository.
package mailbox

import (
	"context"
	"time"
)

// Message is one mailbox message as the connector hands it over.
type Message struct {
	Subject    string
	Body       string
	Sender     string
	ReceivedAt time.Time
	Raw        []byte
}

// Connector reads messages from a mailbox. Implementations are read-only:
// fetching must not mutate mailbox state.
type Connector interface {
	// Fetch returns messages received strictly after since, sorted by
	// received time ascending.
	Fetch(ctx context.Context, since time.Time) ([]Message, error)
}
