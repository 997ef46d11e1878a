// Package classify is the first stage consumer: it derives trigger,
// resource, priority, and type for each ingested alert and hands
// actionable alerts to the summarize stage.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/llm"
	"github.com/ignite/alertops/internal/maintenance"
	"github.com/ignite/alertops/internal/metrics"
	"github.com/ignite/alertops/internal/parse"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/pkg/workerpool"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/router"
)

// knownKeys are the classifier result fields with typed homes on the
// alert; everything else the model returns goes to the extension map.
var knownKeys = map[string]struct{}{
	"priority": {}, "type": {}, "trigger_name": {}, "resource_name": {},
	"generated_summary": {}, "recommended_action": {},
}

// Classifier consumes the classify queue.
type Classifier struct {
	Broker      *broker.Broker
	SummQueue   string
	Segregation *postgres.SegregationRepo
	Summaries   *postgres.SummaryRepo
	Emails      *postgres.EmailRepo
	Matcher     *router.Matcher
	Maintenance *maintenance.Checker
	Generator   llm.TextGenerator
	Pool        *workerpool.Pool

	MaxTokens   int
	Temperature float64

	// WindowDedupEnabled gates time-window suppression; WindowHours is
	// the suppression window.
	WindowDedupEnabled bool
	WindowHours        int

	log *logger.Logger
}

// Handle processes one classify-queue delivery.
func (c *Classifier) Handle(ctx context.Context, d amqp.Delivery) error {
	if c.log == nil {
		c.log = logger.With("classifier")
	}

	var alert domain.IngestedAlert
	if err := json.Unmarshal(d.Body, &alert); err != nil {
		return broker.Permanent(fmt.Errorf("malformed classify payload: %w", err))
	}
	if alert.EmailID == "" {
		return broker.Permanent(fmt.Errorf("classify payload missing email_id"))
	}

	// Redelivered message whose work is already enqueued downstream.
	seg, err := c.Segregation.Get(ctx, alert.EmailID)
	if err != nil && err != postgres.ErrNotFound {
		return err
	}
	if err == nil && seg.Status {
		metrics.StageProcessed.WithLabelValues("classify", "already_done").Inc()
		return nil
	}

	classified, err := c.classify(ctx, alert)
	if err != nil {
		return err
	}

	// Graceful machine shutdowns terminate the pipeline here.
	if parse.IsGracefulShutdown(alert.Subject + " " + alert.Content) {
		classified.Priority = domain.PriorityInformational
		classified.Type = domain.TypeInformational
		classified.RecommendedAction = "N/A"
		if err := c.persistSegregation(ctx, classified, true); err != nil {
			return err
		}
		metrics.AlertsSuppressed.WithLabelValues("informational").Inc()
		metrics.StageProcessed.WithLabelValues("classify", "graceful_shutdown").Inc()
		return nil
	}

	// Maintenance suppression: the row is written, nothing is enqueued.
	suppressed, err := c.Maintenance.Suppressed(ctx, classified.ResourceName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("maintenance check: %w", err)
	}
	if suppressed {
		if err := c.persistSegregation(ctx, classified, false); err != nil {
			return err
		}
		c.log.Info("alert suppressed by maintenance window",
			"email_id", classified.EmailID, "resource", classified.ResourceName)
		metrics.AlertsSuppressed.WithLabelValues("maintenance").Inc()
		metrics.StageProcessed.WithLabelValues("classify", "maintenance").Inc()
		return nil
	}

	if c.WindowDedupEnabled {
		done, err := c.windowDedup(ctx, classified)
		if err != nil {
			return err
		}
		if done {
			metrics.StageProcessed.WithLabelValues("classify", "window_duplicate").Inc()
			return nil
		}
	}

	if classified.Priority != domain.PriorityP1 && classified.Priority != domain.PriorityP2 {
		if err := c.persistSegregation(ctx, classified, true); err != nil {
			return err
		}
		metrics.AlertsSuppressed.WithLabelValues("informational").Inc()
		metrics.StageProcessed.WithLabelValues("classify", "not_actionable").Inc()
		return nil
	}

	return c.forward(ctx, classified)
}

// classify runs the deterministic rules, the two generator passes, and
// the trigger knowledge base, and merges the results.
func (c *Classifier) classify(ctx context.Context, alert domain.IngestedAlert) (domain.ClassifiedAlert, error) {
	classified := domain.ClassifiedAlert{IngestedAlert: alert}

	body := parse.TrimReplyChain(alert.Content)
	fields := parse.ExtractFields(body)
	classified.TriggerName = fields.TriggerName
	classified.ResourceName = fields.ResourceName
	if classified.ResourceName == "" {
		classified.ResourceName = parse.ExtractMachine(alert.Subject)
	}

	// First pass: subject + body.
	first, err := c.generatePass(ctx, llm.SegregationPrompt+"subject: "+alert.Subject+"\nbody: "+body)
	if err != nil {
		return classified, fmt.Errorf("classification pass 1: %w", err)
	}

	// Second pass: trigger name against the knowledge-base snapshot.
	trigger := classified.TriggerName
	if trigger == "" {
		trigger = first["trigger_name"]
	}
	second := map[string]string{}
	var kbRow *domain.TriggerMapping
	if trigger != "" {
		var score float64
		kbRow, score = c.Matcher.Nearest(trigger)
		prompt := llm.TriggerPrompt + "Trigger name: " + trigger + "\n" + kbExcerpt(kbRow, score)
		if second, err = c.generatePass(ctx, prompt); err != nil {
			return classified, fmt.Errorf("classification pass 2: %w", err)
		}
	}

	merged := llm.Merge(first, second)
	c.apply(&classified, merged)

	// Deterministic rules win over the generator where they fire.
	if rule := parse.MatchRule(alert.Subject, body); rule != nil {
		classified.Priority = rule.Priority
		classified.Type = rule.Type
	}

	if kbRow != nil && classified.RecommendedAction == "" {
		classified.RecommendedAction = kbRow.RecommendedAction
	}
	return classified, nil
}

// generatePass offloads one generator call to the worker pool and parses
// the returned JSON object.
func (c *Classifier) generatePass(ctx context.Context, prompt string) (map[string]string, error) {
	var completion string
	err := c.Pool.Submit(ctx, func() error {
		var genErr error
		completion, genErr = c.Generator.Generate(ctx, prompt, c.MaxTokens, c.Temperature)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	result, err := llm.ParseResult(completion)
	if err != nil {
		// An unparseable completion is not retryable with the same input.
		return map[string]string{}, nil
	}
	return result, nil
}

func (c *Classifier) apply(alert *domain.ClassifiedAlert, merged map[string]string) {
	if v := merged["priority"]; v != "" {
		alert.Priority = normalizePriority(v)
	}
	if v := merged["type"]; strings.EqualFold(v, string(domain.TypeActionable)) {
		alert.Type = domain.TypeActionable
	} else {
		alert.Type = domain.TypeInformational
	}
	if alert.TriggerName == "" {
		alert.TriggerName = merged["trigger_name"]
	}
	if alert.ResourceName == "" {
		alert.ResourceName = merged["resource_name"]
	}
	alert.GeneratedSummary = merged["generated_summary"]
	alert.RecommendedAction = merged["recommended_action"]

	for k, v := range merged {
		if _, known := knownKeys[k]; known {
			continue
		}
		if alert.Extensions == nil {
			alert.Extensions = map[string]string{}
		}
		alert.Extensions[k] = v
	}
}

// windowDedup suppresses an alert whose (trigger, resource) signature was
// classified non-informational inside the window. Returns true when the
// alert was recorded as a duplicate and the pipeline ends here.
func (c *Classifier) windowDedup(ctx context.Context, alert domain.ClassifiedAlert) (bool, error) {
	window := time.Duration(c.WindowHours) * time.Hour
	if window <= 0 {
		window = time.Hour
	}
	priorID, err := c.Segregation.PriorWithinWindow(ctx,
		alert.TriggerName, alert.ResourceName, alert.EmailID, window, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if priorID == "" {
		return false, nil
	}

	err = c.Emails.InsertDuplicate(ctx, &domain.DuplicateEmail{
		EmailID:          priorID,
		DuplicateEmailID: alert.EmailID,
		Subject:          alert.Subject,
		Body:             alert.Content,
		Sender:           alert.Sender,
		ReceivedAt:       alert.ReceivedTime,
	})
	if err != nil {
		return false, err
	}
	c.log.Info("alert suppressed by time window",
		"email_id", alert.EmailID, "prior", priorID)
	metrics.AlertsSuppressed.WithLabelValues("window").Inc()
	return true, nil
}

// forward persists the actionable classification and enqueues it to the
// summarize stage.
func (c *Classifier) forward(ctx context.Context, alert domain.ClassifiedAlert) error {
	summary := summaryText(alert)
	if err := c.persistSegregation(ctx, alert, true); err != nil {
		return err
	}
	if err := c.Summaries.Upsert(ctx, alert.EmailID, summary, true); err != nil {
		return err
	}

	payload := domain.SummarizedAlert{ClassifiedAlert: alert, Summary: summary}
	body, err := json.Marshal(payload)
	if err != nil {
		return broker.Permanent(fmt.Errorf("marshaling summarize payload: %w", err))
	}
	if err := c.Broker.Publish(ctx, c.SummQueue, body, 0); err != nil {
		return err
	}
	metrics.StageProcessed.WithLabelValues("classify", "forwarded").Inc()
	return nil
}

func (c *Classifier) persistSegregation(ctx context.Context, alert domain.ClassifiedAlert, status bool) error {
	return c.Segregation.Upsert(ctx, &domain.SegregatedEmail{
		EmailID:           alert.EmailID,
		Priority:          alert.Priority,
		Type:              alert.Type,
		ResourceName:      alert.ResourceName,
		TriggerName:       alert.TriggerName,
		GeneratedSummary:  alert.GeneratedSummary,
		RecommendedAction: alert.RecommendedAction,
		Status:            status,
	})
}

// summaryText is the classifier's provisional summary: the generated
// description plus the recommended action.
func summaryText(alert domain.ClassifiedAlert) string {
	parts := make([]string, 0, 2)
	if alert.GeneratedSummary != "" {
		parts = append(parts, alert.GeneratedSummary)
	}
	if alert.RecommendedAction != "" && alert.RecommendedAction != "N/A" {
		parts = append(parts, "Recommended action: "+alert.RecommendedAction)
	}
	if len(parts) == 0 {
		return alert.Subject
	}
	return strings.Join(parts, " ")
}

// kbExcerpt renders the nearest knowledge-base row for the second
// generator pass.
func kbExcerpt(row *domain.TriggerMapping, score float64) string {
	if row == nil {
		return "No reference rows matched."
	}
	return fmt.Sprintf(
		"Reference row (similarity %.2f):\n  trigger: %s\n  category: %s\n  priority: %s\n  actionable: %t\n  recommended action: %s\n",
		score, row.TriggerName, row.Category, row.Priority, row.Actionable, row.RecommendedAction)
}

func normalizePriority(v string) domain.Priority {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "P1":
		return domain.PriorityP1
	case "P2":
		return domain.PriorityP2
	case "P3":
		return domain.PriorityP3
	case "INFORMATIONAL":
		return domain.PriorityInformational
	case "NA", "N/A":
		return domain.PriorityNA
	default:
		return domain.PriorityNA
	}
}
