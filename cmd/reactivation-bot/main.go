package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/preconak-maker/aman-reactivation-bot/internal/api"
	"github.com/preconak-maker/aman-reactivation-bot/internal/campaign"
	"github.com/preconak-maker/aman-reactivation-bot/internal/genai"
	"github.com/preconak-maker/aman-reactivation-bot/internal/lockfile"
	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/scheduler"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/timer"
	"github.com/preconak-maker/aman-reactivation-bot/internal/twiliosms"
	"github.com/preconak-maker/aman-reactivation-bot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for bot state data
	DefaultStateDir = "/var/lib/reactivation-bot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "reactivation.db"
	// ShutdownTimeout bounds the graceful HTTP shutdown
	ShutdownTimeout = 10 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("Reactivation bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Reactivation bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	DefaultCron string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	defaultCron *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("REACTIVATION_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		DefaultCron: os.Getenv("DEFAULT_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No REACTIVATION_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REACTIVATION_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"DEFAULT_SCHEDULE", config.DefaultCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for bot data (overrides $REACTIVATION_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN, PostgreSQL URL or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		defaultCron: flag.String("default-cron", config.DefaultCron, "additional cron schedule for campaign runs (overrides $DEFAULT_SCHEDULE)"),
	}
	flag.Parse()

	// A custom state directory moves the default SQLite file with it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}
	return flags
}

// campaignConfigFromEnv builds the campaign configuration, starting from the
// defaults and applying environment overrides.
func campaignConfigFromEnv() campaign.Config {
	cfg := campaign.DefaultConfig()
	cfg.DailyLimit = util.ParseIntEnv("DAILY_SEND_LIMIT", cfg.DailyLimit)
	cfg.SendHourStart = util.ParseHourEnv("SEND_HOUR_START", cfg.SendHourStart)
	cfg.SendHourEnd = util.ParseIntEnv("SEND_HOUR_END", cfg.SendHourEnd)
	cfg.DelayMin = time.Duration(util.ParseIntEnv("DELAY_MIN_SECONDS", int(cfg.DelayMin/time.Second))) * time.Second
	cfg.DelayMax = time.Duration(util.ParseIntEnv("DELAY_MAX_SECONDS", int(cfg.DelayMax/time.Second))) * time.Second
	cfg.FollowUpDays = util.ParseIntEnv("FOLLOWUP_DAYS", cfg.FollowUpDays)
	cfg.FireHour = util.ParseHourEnv("FIRE_HOUR", cfg.FireHour)

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("Invalid TIMEZONE, keeping default", "error", err, "timezone", tz)
		} else {
			cfg.Timezone = loc
		}
	}
	return cfg
}

// identityFromEnv builds the outreach persona with environment overrides.
func identityFromEnv() templates.Identity {
	id := templates.DefaultIdentity()
	if v := os.Getenv("AGENT_NAME"); v != "" {
		id.AgentName = v
	}
	if v := os.Getenv("TEAM_NAME"); v != "" {
		id.TeamName = v
	}
	if v := os.Getenv("BROKERAGE"); v != "" {
		id.Brokerage = v
	}
	return id
}

// newStore opens the configured storage backend.
func newStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

func run(flags Flags) error {
	// Guard the state directory against a second instance; the send loop
	// and the SQLite file both assume single-process access.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := newStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	smsClient, err := twiliosms.NewClient()
	if err != nil {
		return err
	}
	msgService := messaging.NewTwilioService(smsClient)

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	aiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	tm := timer.NewSimpleTimer()
	identity := identityFromEnv()
	cfg := campaignConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner := campaign.NewRunner(st, msgService, identity, cfg)
	if util.ParseBoolEnv("START_PAUSED", false) {
		runner.TogglePause()
		slog.Info("Campaign starting paused, resume via /campaign/pause")
	}
	replies := messaging.NewReplyHandler(st, msgService, aiClient, tm, identity)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, runner, replies, tm, apiOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := campaign.NewDailyTrigger(runner)
	go trigger.Run(ctx)

	// An operator-supplied cron expression runs the campaign in addition to
	// the built-in daily trigger.
	var sched *scheduler.Scheduler
	if *flags.defaultCron != "" {
		sched = scheduler.NewScheduler()
		err := sched.AddJob(*flags.defaultCron, func() {
			if _, err := runner.RunOnce(ctx); err != nil {
				slog.Error("Scheduled campaign run failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	cancel()
	if sched != nil {
		sched.Stop()
	}
	tm.Stop()
	msgService.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	return nil
}
