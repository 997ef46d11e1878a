package domain

import "time"

// TriggerMapping is one row of the trigger reference table. The full table
// is replaced atomically on reload; readers see either the old or the new
// snapshot, never a partial state.
type TriggerMapping struct {
	ID                 int64
	TriggerName        string
	Category           string
	Priority           Priority
	Actionable         bool
	RecommendedAction  string
	Team               string
	Department         string
	ResponsiblePersons string
}

// MaintenanceStatus is computed from (start, end, now) on every read.
type MaintenanceStatus string

const (
	MaintenanceScheduled MaintenanceStatus = "Scheduled"
	MaintenanceOngoing   MaintenanceStatus = "Ongoing"
	MaintenanceCompleted MaintenanceStatus = "Completed"
)

// MaintenanceWindow is a declared interval during which alerts for a host
// (or its parent) are suppressed.
type MaintenanceWindow struct {
	ID            int64
	ServerGroup   string
	ServerName    string
	OtherServer   string
	Comments      string
	StartDatetime time.Time
	EndDatetime   time.Time
	Status        MaintenanceStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ComputeMaintenanceStatus derives the window status at the given instant.
func ComputeMaintenanceStatus(start, end, now time.Time) MaintenanceStatus {
	switch {
	case now.Before(start):
		return MaintenanceScheduled
	case now.After(end):
		return MaintenanceCompleted
	default:
		return MaintenanceOngoing
	}
}

// ParentChildRelationship is one edge of the server-containment graph.
type ParentChildRelationship struct {
	Parent string
	Child  string
}

// Server maps a computer name to its group. A host may appear under
// several groups.
type Server struct {
	ID                  int64
	ComputerName        string
	Group               string
	DescriptionFunction string
	ResponsiblePerson   string
}

// JobRun is one row of the ingestion job log. The ingester reads the most
// recent LastRunTime to determine its fetch window.
type JobRun struct {
	JobID        int64
	JobName      string
	JobStartTime time.Time
	JobEndTime   time.Time
	LastRunTime  time.Time
	Frequency    string
	InsertedAt   time.Time
}

// SchedulerConfig holds the interval for a named periodic job.
type SchedulerConfig struct {
	JobName       string
	IntervalUnit  string // "seconds" or "minutes"
	IntervalValue int
}

// Interval resolves the configured interval, falling back to ten minutes
// on an unrecognized unit.
func (c SchedulerConfig) Interval() time.Duration {
	switch c.IntervalUnit {
	case "seconds":
		return time.Duration(c.IntervalValue) * time.Second
	case "minutes":
		return time.Duration(c.IntervalValue) * time.Minute
	default:
		return 10 * time.Minute
	}
}

// Configuration is the admin-managed runtime configuration row: the
// mailbox allow-list and tracker endpoint. Read at startup and on refresh.
type Configuration struct {
	ID            int64
	MailAllowlist []string
	TrackerURL    string
	TrackerToken  string
	CreatedAt     time.Time
}
