// Package config resolves process-wide settings from the environment,
// with an optional YAML overlay for deployments that prefer a file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline process.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	BrokerURL   string `yaml:"broker_url"`
	RedisURL    string `yaml:"redis_url"`

	// Comma-separated sender allow-list; messages from other senders are
	// silently ignored.
	MailAllowlist []string `yaml:"mail_allowlist"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Queues    QueueConfig     `yaml:"queues"`
	Jira      JiraConfig      `yaml:"jira"`
	Teams     TeamsConfig     `yaml:"teams"`
	Dedup     DedupConfig     `yaml:"dedup"`

	// StorageRoot is where original message bodies are persisted as
	// <email_id>.msg for later ticket attachment.
	StorageRoot string `yaml:"storage_root"`

	MaxRetries     int    `yaml:"max_retries"`
	WorkerPoolSize int    `yaml:"worker_pool_size"`
	APIHost        string `yaml:"api_host"`
	APIPort        int    `yaml:"api_port"`
	LogLevel       string `yaml:"log_level"`

	Generator GeneratorConfig `yaml:"generator"`

	// GroupSelectStrategy picks the rule for hosts that belong to several
	// server groups: "first" (first exact match wins) or "general".
	GroupSelectStrategy string `yaml:"group_select_strategy"`
}

// SchedulerConfig holds the ingestion interval.
type SchedulerConfig struct {
	IntervalUnit  string `yaml:"interval_unit"`  // "seconds" or "minutes"
	IntervalValue int    `yaml:"interval_value"`
}

// QueueConfig names the three stage queues and their dead-letter queues.
type QueueConfig struct {
	ClassQueue string `yaml:"class_queue"`
	SummQueue  string `yaml:"summ_queue"`
	JiraQueue  string `yaml:"jira_queue"`
	ClassDLQ   string `yaml:"class_dlq"`
	SummDLQ    string `yaml:"summ_dlq"`
	JiraDLQ    string `yaml:"jira_dlq"`
}

// JiraConfig holds issue-tracker credentials and ticket defaults.
type JiraConfig struct {
	BaseURL     string `yaml:"base_url"`
	Email       string `yaml:"email"`
	APIToken    string `yaml:"api_token"`
	ProjectKey  string `yaml:"project_key"`
	IssueType   string `yaml:"issue_type"`
	TeamFieldID string `yaml:"team_field_id"`
}

// TeamsConfig holds chat-notification settings. Webhooks maps a
// normalized team key (see WebhookKey) to its channel webhook URL.
type TeamsConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Webhooks       map[string]string `yaml:"webhooks"`
	GeneralWebhook string            `yaml:"general_webhook"`
}

// DedupConfig gates the suppression behaviors.
type DedupConfig struct {
	WindowHours int `yaml:"window_hours"`
	// WindowDedupEnabled gates time-window suppression in the classifier.
	// Disabled by default.
	WindowDedupEnabled bool `yaml:"window_dedup_enabled"`
}

// GeneratorConfig selects the text-generation backend.
type GeneratorConfig struct {
	ModelID     string  `yaml:"model_id"`
	Region      string  `yaml:"region"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Load resolves configuration. A .env file in the working directory is
// honored if present; yamlPath, when non-empty, is applied first and the
// environment overrides it.
func Load(yamlPath string) (*Config, error) {
	// Missing .env is fine; explicit env always wins.
	_ = godotenv.Load()

	cfg := defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("BROKER_URL is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{IntervalUnit: "minutes", IntervalValue: 10},
		Queues: QueueConfig{
			ClassQueue: "class_q",
			SummQueue:  "summ_q",
			JiraQueue:  "jira_q",
			ClassDLQ:   "class_dlq",
			SummDLQ:    "summ_dlq",
			JiraDLQ:    "jira_dlq",
		},
		Jira:                JiraConfig{IssueType: "Task", TeamFieldID: "customfield_10001"},
		Teams:               TeamsConfig{Enabled: true, Webhooks: map[string]string{}},
		Dedup:               DedupConfig{WindowHours: 1},
		StorageRoot:         "./emails_backup",
		MaxRetries:          5,
		WorkerPoolSize:      3,
		APIHost:             "0.0.0.0",
		APIPort:             8000,
		LogLevel:            "INFO",
		Generator:           GeneratorConfig{MaxTokens: 312, Temperature: 0.2},
		GroupSelectStrategy: "first",
	}
}

func (c *Config) applyEnv() {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.BrokerURL, "BROKER_URL")
	setString(&c.RedisURL, "REDIS_URL")
	if v := os.Getenv("MAIL_ADDRESS_ALLOWLIST"); v != "" {
		c.MailAllowlist = splitList(v)
	}

	setString(&c.Scheduler.IntervalUnit, "SCHEDULER_INTERVAL_UNIT")
	setInt(&c.Scheduler.IntervalValue, "SCHEDULER_INTERVAL_VALUE")

	setString(&c.Queues.ClassQueue, "CLASS_QUEUE")
	setString(&c.Queues.SummQueue, "SUMM_QUEUE")
	setString(&c.Queues.JiraQueue, "JIRA_QUEUE")
	setString(&c.Queues.ClassDLQ, "CLASS_DLQ")
	setString(&c.Queues.SummDLQ, "SUMM_DLQ")
	setString(&c.Queues.JiraDLQ, "JIRA_DLQ")

	setString(&c.Jira.BaseURL, "JIRA_BASE_URL")
	setString(&c.Jira.Email, "JIRA_EMAIL")
	setString(&c.Jira.APIToken, "JIRA_API_TOKEN")
	setString(&c.Jira.ProjectKey, "JIRA_PROJECT_KEY")
	setString(&c.Jira.IssueType, "JIRA_ISSUE_TYPE")
	setString(&c.Jira.TeamFieldID, "JIRA_TEAM_FIELD_ID")

	setBool(&c.Teams.Enabled, "MS_TEAMS_ENABLED")
	setString(&c.Teams.GeneralWebhook, "WEBHOOK_TEAM_GENERAL")
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if key, found := strings.CutPrefix(name, "WEBHOOK_TEAM_"); found && key != "GENERAL" {
			c.Teams.Webhooks[key] = value
		}
	}

	setInt(&c.Dedup.WindowHours, "WINDOW")
	setBool(&c.Dedup.WindowDedupEnabled, "WINDOW_DEDUP_ENABLED")

	setString(&c.StorageRoot, "STORAGE_ROOT")
	setInt(&c.MaxRetries, "MAX_RETRIES")
	setInt(&c.WorkerPoolSize, "WORKER_POOL_SIZE")
	setString(&c.APIHost, "API_HOST")
	setInt(&c.APIPort, "API_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Generator.ModelID, "BEDROCK_MODEL_ID")
	setString(&c.Generator.Region, "AWS_REGION")
	setString(&c.GroupSelectStrategy, "GROUP_SELECT_STRATEGY")
}

// WebhookKey normalizes a team name to the env-var key form used in
// Teams.Webhooks: upper-cased, runs of non-alphanumerics collapsed to "_".
// "SAP Basis" → "SAP_BASIS", "OI - DB Administration" → "OI_DB_ADMINISTRATION".
func WebhookKey(team string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToUpper(team) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
