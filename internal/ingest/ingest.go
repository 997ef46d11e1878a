// Package ingest pulls new messages from the mailbox, persists them
// idempotently, and enqueues them to the classify stage.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/dedup"
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/mailbox"
	"github.com/ignite/alertops/internal/metrics"
	"github.com/ignite/alertops/internal/pkg/distlock"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/repository/postgres"
)

// JobName keys the ingestion run log and the interval config row.
const JobName = "email_ingest"

// fallbackWindow is how far back a run reaches when the job log is
// unreadable or empty.
const fallbackWindow = 8 * time.Hour

// Ingester runs one mailbox pull per scheduler tick.
type Ingester struct {
	Connector   mailbox.Connector
	Broker      *broker.Broker
	ClassQueue  string
	Emails      *postgres.EmailRepo
	Jobs        *postgres.JobRepo
	Config      *postgres.ConfigRepo
	StorageRoot string
	// Allowlist is the static fallback when no configuration row exists.
	Allowlist []string
	// Lock serializes runs across pipeline instances; nil disables locking.
	Lock distlock.DistLock

	log *logger.Logger
}

// Run executes one ingestion pass. Connector and publish errors fail the
// current message but never abort the run.
func (i *Ingester) Run(ctx context.Context) error {
	if i.log == nil {
		i.log = logger.With("ingester")
	}

	if i.Lock != nil {
		ok, err := i.Lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquiring ingest lock: %w", err)
		}
		if !ok {
			i.log.Info("another instance is ingesting, skipping run")
			return nil
		}
		defer i.Lock.Release(ctx)
	}

	started := time.Now().UTC()
	since := i.windowFloor(ctx, started)
	i.log.Info("ingestion run starting", "since", since.Format(time.RFC3339))

	messages, err := i.Connector.Fetch(ctx, since)
	if err != nil {
		// Still log the run so the next window floor does not drift.
		i.recordRun(ctx, started, since)
		return fmt.Errorf("fetching mailbox: %w", err)
	}

	allowed := i.allowedSenders(ctx)
	batch := make([]domain.IngestedAlert, 0, len(messages))
	maxReceived := since

	for _, msg := range messages {
		if !senderAllowed(allowed, msg.Sender) {
			continue
		}
		if msg.ReceivedAt.After(maxReceived) {
			maxReceived = msg.ReceivedAt
		}

		alert, err := i.persist(ctx, msg)
		if err != nil {
			i.log.Error("message failed, continuing run", "subject", msg.Subject, "error", err.Error())
			continue
		}
		if alert != nil {
			batch = append(batch, *alert)
		}
	}

	result := dedup.Batch(batch)
	for _, dup := range result.Duplicates {
		i.recordBatchDuplicate(ctx, dup)
	}

	enqueued := 0
	for _, alert := range result.Unique {
		if err := i.enqueue(ctx, alert); err != nil {
			i.log.Error("enqueue failed, message stays pending", "email_id", alert.EmailID, "error", err.Error())
			continue
		}
		enqueued++
	}

	i.recordRun(ctx, started, maxReceived)
	i.log.Info("ingestion run finished",
		"fetched", len(messages), "unique", len(result.Unique),
		"batch_duplicates", len(result.Duplicates), "enqueued", enqueued)
	return nil
}

// windowFloor reads the last run's high-water mark, falling back to
// now minus the default window when the job log is unreadable.
func (i *Ingester) windowFloor(ctx context.Context, now time.Time) time.Time {
	run, err := i.Jobs.LatestRun(ctx, JobName)
	if err != nil || run.LastRunTime.IsZero() {
		return now.Add(-fallbackWindow)
	}
	return run.LastRunTime
}

func (i *Ingester) allowedSenders(ctx context.Context) []string {
	if cfg, err := i.Config.LatestConfiguration(ctx); err == nil && len(cfg.MailAllowlist) > 0 {
		return cfg.MailAllowlist
	}
	return i.Allowlist
}

// persist saves the original message and upserts the RawEmail row.
// Returns nil when the message was already enqueued on a previous run.
func (i *Ingester) persist(ctx context.Context, msg mailbox.Message) (*domain.IngestedAlert, error) {
	emailID := domain.EmailID(msg.Subject, msg.ReceivedAt)

	path := filepath.Join(i.StorageRoot, emailID+".msg")
	if err := os.MkdirAll(i.StorageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	raw := msg.Raw
	if len(raw) == 0 {
		raw = []byte(msg.Body)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, fmt.Errorf("saving message file: %w", err)
	}

	stored, err := i.Emails.UpsertRaw(ctx, &domain.RawEmail{
		EmailID:    emailID,
		Sender:     msg.Sender,
		Subject:    msg.Subject,
		Body:       msg.Body,
		ReceivedAt: msg.ReceivedAt,
		EmailPath:  path,
	})
	if err != nil {
		return nil, err
	}
	if stored.Status {
		// Already enqueued on a previous run.
		return nil, nil
	}

	metrics.EmailsIngested.Inc()
	return &domain.IngestedAlert{
		EmailID:      emailID,
		Sender:       msg.Sender,
		Subject:      msg.Subject,
		Content:      msg.Body,
		ReceivedTime: msg.ReceivedAt,
		MsgPath:      path,
	}, nil
}

// enqueue publishes to the classify queue and flips the RawEmail flag.
// Publishing after the upsert is at-least-once; downstream stages
// re-derive their work from the email_id and tolerate duplicates.
func (i *Ingester) enqueue(ctx context.Context, alert domain.IngestedAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	if err := i.Broker.Publish(ctx, i.ClassQueue, body, 0); err != nil {
		return err
	}
	return i.Emails.SetRawStatus(ctx, alert.EmailID, true)
}

// recordBatchDuplicate stores an in-batch duplicate against the unique
// alert that shares its signature, best-effort.
func (i *Ingester) recordBatchDuplicate(ctx context.Context, dup dedup.Duplicate) {
	metrics.AlertsSuppressed.WithLabelValues("batch").Inc()
	err := i.Emails.InsertDuplicate(ctx, &domain.DuplicateEmail{
		EmailID:          dup.CanonicalID,
		DuplicateEmailID: dup.Alert.EmailID,
		Subject:          dup.Alert.Subject,
		Body:             dup.Alert.Content,
		Sender:           dup.Alert.Sender,
		ReceivedAt:       dup.Alert.ReceivedTime,
	})
	if err != nil {
		i.log.Error("recording batch duplicate failed", "email_id", dup.Alert.EmailID, "error", err.Error())
	}
}

func (i *Ingester) recordRun(ctx context.Context, started, lastRun time.Time) {
	err := i.Jobs.InsertRun(ctx, &domain.JobRun{
		JobName:      JobName,
		JobStartTime: started,
		JobEndTime:   time.Now().UTC(),
		LastRunTime:  lastRun,
		Frequency:    "interval",
	})
	if err != nil {
		i.log.Error("recording job run failed", "error", err.Error())
	}
}

func senderAllowed(allowlist []string, sender string) bool {
	if len(allowlist) == 0 {
		return false
	}
	for _, a := range allowlist {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(sender)) {
			return true
		}
	}
	return false
}
