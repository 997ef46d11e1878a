// Package certwatch is the certificate-expiry job: a specialized consumer
// of the scheduler and notification infrastructure. The certificate
// inventory itself is an external collaborator.
package certwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/teams"
)

// Certificate is one inventory entry.
type Certificate struct {
	CommonName string
	Issuer     string
	Machine    string
	NotAfter   time.Time
}

// Source lists certificates expiring within a horizon. Implementations
// live outside this repository.
type Source interface {
	Expiring(ctx context.Context, within time.Duration) ([]Certificate, error)
}

// Notifier posts a notification card to a channel webhook.
type Notifier interface {
	Post(ctx context.Context, webhookURL string, n teams.Notification) error
}

// Job scans the inventory and notifies the operations channel about
// certificates nearing expiry.
type Job struct {
	Source     Source
	Notifier   Notifier
	WebhookURL string
	// Horizon defaults to 30 days.
	Horizon time.Duration

	log *logger.Logger
}

// Run executes one scan. Notification failures are logged per certificate
// and do not abort the scan.
func (j *Job) Run(ctx context.Context) error {
	if j.log == nil {
		j.log = logger.With("certwatch")
	}
	horizon := j.Horizon
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}

	certs, err := j.Source.Expiring(ctx, horizon)
	if err != nil {
		return fmt.Errorf("listing expiring certificates: %w", err)
	}

	for _, c := range certs {
		n := teams.Notification{
			Source:    "certificate-watcher",
			Resource:  c.Machine,
			Trigger:   "Certificate expiration: " + c.CommonName,
			Priority:  "P2",
			Timestamp: c.NotAfter,
			Summary: fmt.Sprintf("Certificate %s (issuer %s) expires %s.",
				c.CommonName, c.Issuer, c.NotAfter.UTC().Format("2006-01-02")),
		}
		if err := j.Notifier.Post(ctx, j.WebhookURL, n); err != nil {
			j.log.Warn("certificate notification failed", "cn", c.CommonName, "error", err.Error())
		}
	}
	j.log.Info("certificate scan complete", "expiring", len(certs))
	return nil
}
