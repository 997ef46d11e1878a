package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/alertops/internal/action"
	"github.com/ignite/alertops/internal/api"
	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/classify"
	"github.com/ignite/alertops/internal/config"
	"github.com/ignite/alertops/internal/ingest"
	"github.com/ignite/alertops/internal/jira"
	"github.com/ignite/alertops/internal/llm"
	"github.com/ignite/alertops/internal/mailbox"
	"github.com/ignite/alertops/internal/maintenance"
	"github.com/ignite/alertops/internal/pkg/distlock"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/pkg/workerpool"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/router"
	"github.com/ignite/alertops/internal/scheduler"
	"github.com/ignite/alertops/internal/storage"
	"github.com/ignite/alertops/internal/summarize"
	"github.com/ignite/alertops/internal/supervisor"
	"github.com/ignite/alertops/internal/teams"
)

func main() {
	log.Println("Starting alertops pipeline...")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Startup faults are fatal: schema, broker topology, reference load.
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}
	log.Println("Connected to database")

	bk, err := broker.Connect(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer bk.Close()

	queues := stageQueues(cfg)
	if err := bk.DeclareTopology([]broker.Queue{queues.class, queues.summ, queues.jira}); err != nil {
		log.Fatalf("Failed to declare broker topology: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Repositories.
	emails := postgres.NewEmailRepo(db)
	segregation := postgres.NewSegregationRepo(db)
	summaries := postgres.NewSummaryRepo(db)
	jiraRepo := postgres.NewJiraRepo(db)
	reference := postgres.NewReferenceRepo(db)
	maintRepo := postgres.NewMaintenanceRepo(db)
	jobs := postgres.NewJobRepo(db)
	configRepo := postgres.NewConfigRepo(db)

	// Trigger reference snapshot. An empty table is tolerated; a failed
	// load is not.
	mappings, err := reference.ListTriggerMappings(ctx)
	if err != nil {
		log.Fatalf("Failed to load trigger reference table: %v", err)
	}
	matcher := router.NewMatcher(mappings)
	log.Printf("Loaded %d trigger mappings", len(mappings))

	generator, err := llm.NewBedrockGenerator(ctx, cfg.Generator.ModelID, cfg.Generator.Region)
	if err != nil {
		log.Fatalf("Failed to initialize text generator: %v", err)
	}

	pool := workerpool.New(cfg.WorkerPoolSize)

	connector, err := newConnector()
	if err != nil {
		log.Fatalf("Failed to initialize mailbox connector: %v", err)
	}

	ingester := &ingest.Ingester{
		Connector:   connector,
		Broker:      bk,
		ClassQueue:  cfg.Queues.ClassQueue,
		Emails:      emails,
		Jobs:        jobs,
		Config:      configRepo,
		StorageRoot: cfg.StorageRoot,
		Allowlist:   cfg.MailAllowlist,
		Lock:        distlock.NewLock(redisClient, db, ingest.JobName, 10*time.Minute),
	}

	sched := &scheduler.Scheduler{
		Config:  configRepo,
		JobName: ingest.JobName,
		Ingest:  ingester.Run,
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	classifier := &classify.Classifier{
		Broker:             bk,
		SummQueue:          cfg.Queues.SummQueue,
		Segregation:        segregation,
		Summaries:          summaries,
		Emails:             emails,
		Matcher:            matcher,
		Maintenance:        maintenance.NewChecker(reference, maintRepo),
		Generator:          generator,
		Pool:               pool,
		MaxTokens:          cfg.Generator.MaxTokens,
		Temperature:        cfg.Generator.Temperature,
		WindowDedupEnabled: cfg.Dedup.WindowDedupEnabled,
		WindowHours:        cfg.Dedup.WindowHours,
	}
	summarizer := &summarize.Summarizer{
		Broker:      bk,
		JiraQueue:   cfg.Queues.JiraQueue,
		Summaries:   summaries,
		Generator:   generator,
		Pool:        pool,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
	}
	actioner := &action.Actioner{
		Tracker:      jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, nil),
		Notifier:     teams.NewClient(nil),
		Matcher:      matcher,
		Channels:     router.NewChannelResolver(cfg.Teams, reference, cfg.GroupSelectStrategy),
		Segregation:  segregation,
		Jira:         jiraRepo,
		Emails:       emails,
		ProjectKey:   cfg.Jira.ProjectKey,
		IssueType:    cfg.Jira.IssueType,
		TeamFieldID:  cfg.Jira.TeamFieldID,
		TrackerURL:   cfg.Jira.BaseURL,
		TeamsEnabled: cfg.Teams.Enabled,
	}

	// Prefetch 1 bounds the classifier's in-flight work; the summarizer
	// tolerates 2.
	sup := &supervisor.Supervisor{
		DB:        db,
		BrokerURL: cfg.BrokerURL,
		Scheduler: sched,
		Consumers: []supervisor.ConsumerSpec{
			{Name: "classifier", Run: consumerRun(bk, queues.class, 1, cfg.MaxRetries, "classifier", classifier.Handle)},
			{Name: "summarizer", Run: consumerRun(bk, queues.summ, 2, cfg.MaxRetries, "summarizer", summarizer.Handle)},
			{Name: "actioner", Run: consumerRun(bk, queues.jira, 1, cfg.MaxRetries, "actioner", actioner.Handle)},
		},
	}

	supDone := make(chan struct{})
	supCtx, supCancel := context.WithCancel(ctx)
	go func() {
		sup.Start(supCtx)
		close(supDone)
	}()

	apiServer := &api.Server{
		Scheduler:   sched,
		Supervisor:  sup,
		Emails:      emails,
		Jobs:        jobs,
		Maintenance: maintRepo,
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler: apiServer.Routes(),
	}
	go func() {
		log.Printf("Admin API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Admin API error: %v", err)
		}
	}()

	// Wait for shutdown signal.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")

	// Teardown order: supervisor, scheduler, consumers, pool, transports.
	supCancel()
	<-supDone
	sched.Stop()
	cancel() // consumers observe cancellation at their next suspension
	pool.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	log.Println("Shutdown complete")
}

type topology struct {
	class, summ, jira broker.Queue
}

func stageQueues(cfg *config.Config) topology {
	return topology{
		class: broker.Queue{Name: cfg.Queues.ClassQueue, DLQ: cfg.Queues.ClassDLQ, RoutingKey: "dlq.class"},
		summ:  broker.Queue{Name: cfg.Queues.SummQueue, DLQ: cfg.Queues.SummDLQ, RoutingKey: "dlq.summ"},
		jira:  broker.Queue{Name: cfg.Queues.JiraQueue, DLQ: cfg.Queues.JiraDLQ, RoutingKey: "dlq.jira"},
	}
}

func consumerRun(bk *broker.Broker, q broker.Queue, prefetch, maxRetries int, tag string, handler broker.Handler) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		c := &broker.Consumer{
			Broker:     bk,
			Queue:      q,
			Prefetch:   prefetch,
			MaxRetries: maxRetries,
			Tag:        tag,
			Handler:    handler,
		}
		return c.Run(ctx)
	}
}

// newConnector resolves the mailbox connector named by MAILBOX_CONNECTOR.
// Concrete connectors (Outlook, IMAP) are external collaborators; the
// build ships with the noop connector only.
func newConnector() (mailbox.Connector, error) {
	switch name := os.Getenv("MAILBOX_CONNECTOR"); name {
	case "", "noop":
		log.Println("No mailbox connector configured; ingestion runs will find an empty mailbox")
		return noopConnector{}, nil
	default:
		return nil, fmt.Errorf("unknown mailbox connector %q", name)
	}
}

// noopConnector lets the pipeline run against an empty mailbox, e.g. when
// alerts are published to the classify queue by an external producer.
type noopConnector struct{}

func (noopConnector) Fetch(ctx context.Context, since time.Time) ([]mailbox.Message, error) {
	return nil, nil
}
