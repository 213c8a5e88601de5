package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ylxai/hafiportrait-monitor/internal/aggregate"
	"github.com/ylxai/hafiportrait-monitor/internal/alert"
	"github.com/ylxai/hafiportrait-monitor/internal/api"
	"github.com/ylxai/hafiportrait-monitor/internal/config"
	"github.com/ylxai/hafiportrait-monitor/internal/database"
	"github.com/ylxai/hafiportrait-monitor/internal/logger"
	"github.com/ylxai/hafiportrait-monitor/internal/models"
	"github.com/ylxai/hafiportrait-monitor/internal/monitor"
	"github.com/ylxai/hafiportrait-monitor/internal/notify"
	"github.com/ylxai/hafiportrait-monitor/internal/probe"
	"github.com/ylxai/hafiportrait-monitor/internal/store"
	"github.com/ylxai/hafiportrait-monitor/internal/ws"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "hafimon",
	Short: "HafiPortrait health monitoring and alerting engine",
	Long: `hafimon watches the HafiPortrait platform: it samples system metrics,
probes the API, database, storage and external services on a fixed
interval, evaluates alert rules and escalates unresolved alerts
through the configured notification channels.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; explicit environment always wins
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring engine and query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single monitoring cycle and print the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps is the wired object graph shared by serve and check.
type deps struct {
	cfg       *config.Config
	log       *logrus.Logger
	store     *store.MetricsStore
	evaluator *alert.Evaluator
	manager   *alert.Manager
	engine    *monitor.Engine
	hub       *ws.Hub
	close     func()
}

func build(withHub bool) (*deps, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rules := cfg.Alerting.Rules
	if len(rules) == 0 {
		rules = alert.DefaultRules()
		log.Info("no alert rules configured, using defaults")
	}
	if err := alert.ValidateRules(rules, notify.KnownTypes()); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("invalid alert rules: %w", err)
	}

	var hub *ws.Hub
	if withHub {
		hub = ws.NewHub(log)
	}

	registry := notify.BuildRegistry(cfg.Channels, hub, log)
	dispatcher := notify.NewDispatcher(registry,
		time.Duration(cfg.Alerting.DispatchTimeoutSeconds)*time.Second, log)

	manager := alert.NewManager(alert.ManagerOptions{
		MinCooldown: time.Duration(cfg.Alerting.MinCooldownSeconds) * time.Second,
		MaxRetained: cfg.Alerting.MaxRetained,
		Rules:       rules,
		Dispatcher:  dispatcher,
		DB:          db,
		Log:         log,
	})

	st := store.NewMetricsStore(cfg.Monitor.HistorySize, db, log)
	evaluator := alert.NewEvaluator(cfg.Thresholds, rules, log)

	externals := make([]probe.Target, 0, len(cfg.Probes.ExternalServices))
	for _, svc := range cfg.Probes.ExternalServices {
		externals = append(externals, probe.Target{Name: svc.Name, URL: svc.URL})
	}
	probes := []probe.Probe{
		probe.NewDatabaseProbe(db),
		probe.NewAPIProbe(cfg.Probes.APIEndpoints),
		probe.NewExternalServicesProbe(externals),
		probe.NewStorageProbe(cfg.Probes.StoragePath,
			cfg.Thresholds.StorageWarning, cfg.Thresholds.StorageCritical),
	}

	engine := monitor.NewEngine(monitor.Options{
		Interval:      time.Duration(cfg.Monitor.IntervalSeconds) * time.Second,
		ProbeTimeout:  time.Duration(cfg.Monitor.ProbeTimeoutSeconds) * time.Second,
		MaxConcurrent: cfg.Monitor.MaxConcurrentProbes,
		Source:        monitor.NewHostSource(cfg.Probes.StoragePath),
		Probes:        probes,
		Store:         st,
		Evaluator:     evaluator,
		Manager:       manager,
		Log:           log,
	})

	return &deps{
		cfg:       cfg,
		log:       log,
		store:     st,
		evaluator: evaluator,
		manager:   manager,
		engine:    engine,
		hub:       hub,
		close: func() {
			manager.Close()
			database.Close(db)
		},
	}, nil
}

func runServe() error {
	d, err := build(true)
	if err != nil {
		return err
	}
	defer d.close()

	go d.hub.Run()
	defer d.hub.Stop()

	d.manager.SetEventSink(func(kind string, a models.Alert) {
		d.hub.Broadcast("alert-"+kind, a)
	})

	d.cfg.Watch(func(t config.Thresholds) {
		d.evaluator.SetThresholds(t)
		d.log.Info("thresholds reloaded from config file")
	})

	d.engine.Start(context.Background())
	defer d.engine.Stop()

	aggregator := aggregate.NewAggregator(d.cfg.Aggregate, d.log)
	server := api.NewServer(d.engine, d.store, d.manager, aggregator, d.hub,
		d.cfg.Server.JWTSecret, d.log)

	d.log.WithField("port", d.cfg.Server.Port).Info("hafimon serving")
	return server.Start(d.cfg.Server.Port)
}

func runCheck() error {
	d, err := build(false)
	if err != nil {
		return err
	}
	defer d.close()

	snapshot, err := d.engine.RunCycle(context.Background())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
