package certwatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/alertops/internal/teams"
)

type fakeSource struct {
	certs  []Certificate
	within time.Duration
}

func (f *fakeSource) Expiring(ctx context.Context, within time.Duration) ([]Certificate, error) {
	f.within = within
	return f.certs, nil
}

type fakeNotifier struct {
	posted []teams.Notification
}

func (f *fakeNotifier) Post(ctx context.Context, webhookURL string, n teams.Notification) error {
	f.posted = append(f.posted, n)
	return nil
}

func TestRunNotifiesPerCertificate(t *testing.T) {
	source := &fakeSource{certs: []Certificate{
		{CommonName: "mail.example.com", Issuer: "Example CA", Machine: "hostA",
			NotAfter: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{CommonName: "portal.example.com", Issuer: "Example CA", Machine: "hostB",
			NotAfter: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
	}}
	notifier := &fakeNotifier{}

	j := &Job{Source: source, Notifier: notifier, WebhookURL: "https://hooks.example.com/ops"}
	require.NoError(t, j.Run(context.Background()))

	assert.Equal(t, 30*24*time.Hour, source.within, "default horizon is 30 days")
	require.Len(t, notifier.posted, 2)
	assert.Contains(t, notifier.posted[0].Trigger, "mail.example.com")
	assert.Equal(t, "hostA", notifier.posted[0].Resource)
}

func TestRunEmptyInventory(t *testing.T) {
	notifier := &fakeNotifier{}
	j := &Job{Source: &fakeSource{}, Notifier: notifier, WebhookURL: "https://hooks.example.com/ops"}

	require.NoError(t, j.Run(context.Background()))
	assert.Empty(t, notifier.posted)
}
