// Package action is the final stage consumer: it opens a tracker ticket
// for each actionable alert (or records a deliberate duplicate) and posts
// the chat notification.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/metrics"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/router"
	"github.com/ignite/alertops/internal/teams"
)

// Tracker is the slice of the issue-tracker API the actioner uses.
type Tracker interface {
	CreateIssue(ctx context.Context, project, summary, description, issueType, priority string) (string, error)
	IssueStatus(ctx context.Context, key string) (string, error)
	UpdateFields(ctx context.Context, key string, fields map[string]any) error
	SearchUser(ctx context.Context, email string) (accountID, displayName string, err error)
	AddAttachment(ctx context.Context, key, filename string, content io.Reader) error
}

// Notifier posts a notification card to a channel webhook.
type Notifier interface {
	Post(ctx context.Context, webhookURL string, n teams.Notification) error
}

// openStatuses are the tracker states that make a prior ticket count as
// still open for cross-ticket dedup.
var openStatuses = map[string]struct{}{
	"open": {}, "in progress": {}, "to do": {}, "new": {},
	"reopened": {}, "pending": {}, "waiting": {}, "in review": {},
}

// Actioner consumes the act queue.
type Actioner struct {
	Tracker     Tracker
	Notifier    Notifier
	Matcher     *router.Matcher
	Channels    *router.ChannelResolver
	Segregation *postgres.SegregationRepo
	Jira        *postgres.JiraRepo
	Emails      *postgres.EmailRepo

	ProjectKey   string
	IssueType    string
	TeamFieldID  string
	TrackerURL   string
	TeamsEnabled bool

	log *logger.Logger
}

// Handle processes one act-queue delivery.
func (a *Actioner) Handle(ctx context.Context, d amqp.Delivery) error {
	if a.log == nil {
		a.log = logger.With("actioner")
	}

	var alert domain.SummarizedAlert
	if err := json.Unmarshal(d.Body, &alert); err != nil {
		return broker.Permanent(fmt.Errorf("malformed act payload: %w", err))
	}
	if alert.EmailID == "" {
		return broker.Permanent(fmt.Errorf("act payload missing email_id"))
	}

	// Redelivered message whose ticket already exists.
	if _, err := a.Jira.GetByEmailID(ctx, alert.EmailID); err == nil {
		metrics.StageProcessed.WithLabelValues("act", "already_done").Inc()
		return nil
	} else if err != postgres.ErrNotFound {
		return err
	}

	// Cross-ticket dedup: no new ticket while a prior ticket for the same
	// signature is still open.
	done, err := a.openTicketDedup(ctx, alert)
	if err != nil {
		return err
	}
	if done {
		metrics.StageProcessed.WithLabelValues("act", "open_ticket_duplicate").Inc()
		return nil
	}

	route := a.Matcher.Match(alert.TriggerName)
	ticketKey, err := a.createTicket(ctx, alert)
	if err != nil {
		return err
	}

	assignee := a.assign(ctx, ticketKey, route)

	a.attachOriginal(ctx, ticketKey, alert.MsgPath)

	entry := &domain.JiraEntry{
		EmailID:    alert.EmailID,
		TicketID:   ticketKey,
		AssignedTo: assignee,
		TeamsFlag:  "false",
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Jira.Insert(ctx, entry); err != nil {
		return err
	}
	metrics.TicketsCreated.Inc()

	a.notify(ctx, alert, route, ticketKey)
	metrics.StageProcessed.WithLabelValues("act", "ticket_created").Inc()
	return nil
}

// openTicketDedup looks for the most recent prior alert with the same
// (trigger, resource) signature that has a ticket, and suppresses the
// current alert when that ticket is still open.
func (a *Actioner) openTicketDedup(ctx context.Context, alert domain.SummarizedAlert) (bool, error) {
	priorEmailID, priorTicket, err := a.Segregation.LatestPriorTicketed(ctx,
		alert.TriggerName, alert.ResourceName, alert.EmailID)
	if err != nil {
		return false, err
	}
	if priorTicket == "" {
		return false, nil
	}

	status, err := a.Tracker.IssueStatus(ctx, priorTicket)
	if err != nil {
		return false, fmt.Errorf("checking prior ticket %s: %w", priorTicket, err)
	}
	if _, open := openStatuses[strings.ToLower(strings.TrimSpace(status))]; !open {
		return false, nil
	}

	err = a.Emails.InsertDuplicate(ctx, &domain.DuplicateEmail{
		EmailID:          priorEmailID,
		DuplicateEmailID: alert.EmailID,
		Subject:          alert.Subject,
		Body:             alert.Content,
		Sender:           alert.Sender,
		ReceivedAt:       alert.ReceivedTime,
	})
	if err != nil {
		return false, err
	}

	a.log.Info("suppressed by open ticket",
		"email_id", alert.EmailID, "ticket", priorTicket, "status", status)
	metrics.AlertsSuppressed.WithLabelValues("open_ticket").Inc()
	return true, nil
}

func (a *Actioner) createTicket(ctx context.Context, alert domain.SummarizedAlert) (string, error) {
	summary := alert.TriggerName + " - " + alert.ResourceName
	description := alert.Summary
	if description == "" {
		description = alert.Subject
	}

	key, err := a.Tracker.CreateIssue(ctx, a.ProjectKey, summary, description,
		a.IssueType, domain.TrackerPriority(alert.Priority))
	if err != nil {
		return "", fmt.Errorf("creating ticket: %w", err)
	}
	a.log.Info("ticket created", "ticket", key, "email_id", alert.EmailID, "priority", string(alert.Priority))
	return key, nil
}

// assign sets the team field and the assignee. Both are best-effort: a
// missing team UUID skips team assignment, a failed user search leaves
// the ticket unassigned.
func (a *Actioner) assign(ctx context.Context, ticketKey string, route router.Match) string {
	if id, ok := router.TeamID(route.Team); ok {
		err := a.Tracker.UpdateFields(ctx, ticketKey, map[string]any{
			a.TeamFieldID: map[string]string{"id": id},
		})
		if err != nil {
			a.log.Warn("team assignment failed", "ticket", ticketKey, "team", route.Team, "error", err.Error())
		}
	} else if route.Team != router.GeneralTeam {
		a.log.Warn("no tracker team provisioned, skipping team assignment",
			"ticket", ticketKey, "team", route.Team)
	}

	if route.ResponsiblePerson == "" {
		return ""
	}
	accountID, displayName, err := a.Tracker.SearchUser(ctx, route.ResponsiblePerson)
	if err != nil || accountID == "" {
		a.log.Warn("assignee lookup failed", "ticket", ticketKey, "assignee", route.ResponsiblePerson)
		return ""
	}
	err = a.Tracker.UpdateFields(ctx, ticketKey, map[string]any{
		"assignee": map[string]string{"accountId": accountID},
	})
	if err != nil {
		a.log.Warn("assignment failed", "ticket", ticketKey, "error", err.Error())
		return ""
	}
	return displayName
}

// attachOriginal uploads the saved message file. A missing or empty file
// is logged but never fails the stage.
func (a *Actioner) attachOriginal(ctx context.Context, ticketKey, msgPath string) {
	if msgPath == "" {
		return
	}
	info, err := os.Stat(msgPath)
	if err != nil || info.Size() == 0 {
		a.log.Warn("original message missing or empty, skipping attachment",
			"ticket", ticketKey, "path", msgPath)
		return
	}
	f, err := os.Open(msgPath)
	if err != nil {
		a.log.Warn("opening original message failed", "ticket", ticketKey, "error", err.Error())
		return
	}
	defer f.Close()

	if err := a.Tracker.AddAttachment(ctx, ticketKey, filepath.Base(msgPath), f); err != nil {
		a.log.Warn("attachment upload failed", "ticket", ticketKey, "error", err.Error())
	}
}

// notify posts the chat card. Notification failure is logged but does not
// fail the stage.
func (a *Actioner) notify(ctx context.Context, alert domain.SummarizedAlert, route router.Match, ticketKey string) {
	if !a.TeamsEnabled || a.Notifier == nil {
		return
	}

	webhookURL, channel := a.Channels.WebhookFor(ctx, route.Team, alert.ResourceName)
	n := teams.Notification{
		Assignee:       route.ResponsiblePerson,
		Source:         alert.Sender,
		Resource:       alert.ResourceName,
		Trigger:        alert.TriggerName,
		Priority:       string(alert.Priority),
		Timestamp:      alert.ReceivedTime,
		Infrastructure: channel,
		TicketKey:      ticketKey,
		Summary:        alert.Summary,
	}
	if a.TrackerURL != "" {
		n.TicketURL = strings.TrimRight(a.TrackerURL, "/") + "/browse/" + ticketKey
	}

	if err := a.Notifier.Post(ctx, webhookURL, n); err != nil {
		a.log.Warn("notification failed", "ticket", ticketKey, "channel", channel, "error", err.Error())
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	if err := a.Jira.MarkNotified(ctx, ticketKey, channel); err != nil {
		a.log.Warn("recording notification failed", "ticket", ticketKey, "error", err.Error())
	}
}
