// Package summarize is the second stage consumer: it guarantees a summary
// exists for each actionable alert before ticket creation.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/llm"
	"github.com/ignite/alertops/internal/metrics"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/pkg/workerpool"
	"github.com/ignite/alertops/internal/repository/postgres"
)

// Summarizer consumes the summarize queue.
type Summarizer struct {
	Broker    *broker.Broker
	JiraQueue string
	Summaries *postgres.SummaryRepo
	Generator llm.TextGenerator
	Pool      *workerpool.Pool

	MaxTokens   int
	Temperature float64

	log *logger.Logger
}

// Handle processes one summarize-queue delivery: reuse the stored summary
// when present, compute one otherwise, then enqueue to the act stage.
func (s *Summarizer) Handle(ctx context.Context, d amqp.Delivery) error {
	if s.log == nil {
		s.log = logger.With("summarizer")
	}

	var alert domain.SummarizedAlert
	if err := json.Unmarshal(d.Body, &alert); err != nil {
		return broker.Permanent(fmt.Errorf("malformed summarize payload: %w", err))
	}
	if alert.EmailID == "" {
		return broker.Permanent(fmt.Errorf("summarize payload missing email_id"))
	}

	stored, err := s.Summaries.Get(ctx, alert.EmailID)
	switch {
	case err == nil:
		alert.Summary = stored.Summary
	case err == postgres.ErrNotFound:
		if alert.Summary == "" {
			if alert.Summary, err = s.compute(ctx, alert); err != nil {
				return fmt.Errorf("computing summary: %w", err)
			}
		}
		if err := s.Summaries.Upsert(ctx, alert.EmailID, alert.Summary, true); err != nil {
			return err
		}
	default:
		return err
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return broker.Permanent(fmt.Errorf("marshaling act payload: %w", err))
	}
	if err := s.Broker.Publish(ctx, s.JiraQueue, body, 0); err != nil {
		return err
	}
	metrics.StageProcessed.WithLabelValues("summarize", "forwarded").Inc()
	return nil
}

// compute builds the summary from the stored classification fields,
// falling back to the text generator when they are empty.
func (s *Summarizer) compute(ctx context.Context, alert domain.SummarizedAlert) (string, error) {
	if alert.GeneratedSummary != "" || alert.RecommendedAction != "" {
		summary := alert.GeneratedSummary
		if alert.RecommendedAction != "" && alert.RecommendedAction != "N/A" {
			if summary != "" {
				summary += " "
			}
			summary += "Recommended action: " + alert.RecommendedAction
		}
		return summary, nil
	}

	var completion string
	err := s.Pool.Submit(ctx, func() error {
		var genErr error
		completion, genErr = s.Generator.Generate(ctx,
			llm.SummarizePrompt+"subject: "+alert.Subject+"\nbody: "+alert.Content,
			s.MaxTokens, s.Temperature)
		return genErr
	})
	if err != nil {
		return "", err
	}
	return completion, nil
}
