// Package domain holds the entities shared across the alert pipeline:
// the per-stage alert variants, the reference tables, and the identifier
// discipline that keeps the pipeline idempotent.
package domain

import (
	"time"
)

// Priority is the operational severity assigned by classification.
type Priority string

const (
	PriorityP1            Priority = "P1"
	PriorityP2            Priority = "P2"
	PriorityP3            Priority = "P3"
	PriorityInformational Priority = "Informational"
	PriorityNA            Priority = "NA"
)

// AlertType says whether an alert requires a ticket or is logged only.
type AlertType string

const (
	TypeActionable    AlertType = "actionable"
	TypeInformational AlertType = "informational"
)

// TrackerPriority maps a pipeline priority to the tracker's priority name.
// Unrecognized priorities map to Medium.
func TrackerPriority(p Priority) string {
	switch p {
	case PriorityP1:
		return "Highest"
	case PriorityP2:
		return "High"
	case PriorityP3:
		return "Medium"
	case PriorityInformational:
		return "Low"
	case PriorityNA:
		return "Lowest"
	default:
		return "Medium"
	}
}

// RawEmail is the owning record for a mailbox message. Exactly one row
// exists per EmailID and it is written before any downstream row.
type RawEmail struct {
	EmailID    string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
	EmailPath  string
	InsertedAt time.Time
	Status     bool // true once enqueued to the classify queue
}

// IngestedAlert is the classify-queue payload: the raw message plus the
// location of its saved original.
type IngestedAlert struct {
	EmailID      string    `json:"email_id"`
	Sender       string    `json:"sender_address"`
	Subject      string    `json:"subject"`
	Content      string    `json:"content"`
	ReceivedTime time.Time `json:"received_time"`
	MsgPath      string    `json:"msg_path"`
}

// ClassifiedAlert extends IngestedAlert with the classification result.
// Fields the classifier produced beyond the known set land in Extensions;
// they are carried along but never merged into the typed fields.
type ClassifiedAlert struct {
	IngestedAlert

	Priority          Priority          `json:"priority"`
	Type              AlertType         `json:"type"`
	ResourceName      string            `json:"resource_name"`
	TriggerName       string            `json:"trigger_name"`
	GeneratedSummary  string            `json:"generated_summary,omitempty"`
	RecommendedAction string            `json:"recommended_action,omitempty"`
	Extensions        map[string]string `json:"extensions,omitempty"`
}

// SummarizedAlert is the act-queue payload: a classified alert with the
// final summary text attached.
type SummarizedAlert struct {
	ClassifiedAlert

	Summary string `json:"summary"`
}

// SegregatedEmail is the persisted classification result for an EmailID.
type SegregatedEmail struct {
	EmailID           string
	Priority          Priority
	Type              AlertType
	ResourceName      string
	TriggerName       string
	GeneratedSummary  string
	RecommendedAction string
	InsertedAt        time.Time
	Status            bool // true once enqueued to the summarize queue
}

// Summary is the persisted summary for an EmailID.
type Summary struct {
	EmailID    string
	Summary    string
	InsertedAt time.Time
	Status     bool // true once enqueued to the act queue
}

// JiraEntry records a created tracker ticket.
type JiraEntry struct {
	JiraID       int64
	EmailID      string
	TicketID     string
	AssignedTo   string
	TeamsFlag    string
	TeamsChannel string
	CreatedAt    time.Time
	InsertedAt   time.Time
}

// DuplicateEmail records an alert suppressed in favor of a prior one.
// EmailID points at the canonical alert; DuplicateEmailID is the
// suppressed message.
type DuplicateEmail struct {
	EmailID          string
	DuplicateEmailID string
	Subject          string
	Body             string
	Sender           string
	ReceivedAt       time.Time
	InsertedAt       time.Time
}
