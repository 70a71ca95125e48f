package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/analyzer"
	"github.com/t77yq/cpm-analyzer/internal/calendar"
	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/monitor"
	"github.com/t77yq/cpm-analyzer/internal/service"
	"github.com/t77yq/cpm-analyzer/internal/storage"
	"github.com/t77yq/cpm-analyzer/internal/weather"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(viper.GetString("app.name")),
		nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
		nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
		nats.Timeout(viper.GetDuration("nats.connect_timeout")),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error",
				zap.String("subject", sub.Subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(viper.GetString("nats.urls.0"), opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	// Create JetStream context
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Create analysis history storage
	dbPath := viper.GetString("storage.db_path")
	if dbPath == "" {
		dbPath = "analysis_history.db"
	}
	history, err := storage.NewSQLiteAnalysisHistory(logger, dbPath)
	if err != nil {
		logger.Fatal("Failed to create analysis history storage", zap.Error(err))
	}
	defer history.Close()

	// Build the analysis pipeline
	holidays := calendar.NewStaticHolidaySource()
	provider := calendar.NewStandardProvider(holidays)
	forecast := weather.NewStubForecast(viper.GetString("weather.location"))
	projectAnalyzer := analyzer.New(provider, forecast, logger)

	// Initialize the analysis service
	analysisService, err := service.NewAnalysisService(js, projectAnalyzer, history, logger)
	if err != nil {
		logger.Fatal("Failed to create analysis service", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Start the recurring scheduler
	recurringScheduler := service.NewRecurringScheduler(js, logger)
	if err := recurringScheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start recurring scheduler", zap.Error(err))
	}
	defer recurringScheduler.Stop()

	// Start the metrics collector
	metricsInterval := viper.GetDuration("monitoring.metrics_interval")
	if metricsInterval == 0 {
		metricsInterval = 30 * time.Second
	}
	metricsCollector := monitor.NewMetricsCollector(js, metricsInterval, logger)
	if err := metricsCollector.Start(ctx); err != nil {
		logger.Fatal("Failed to start metrics collector", zap.Error(err))
	}
	defer metricsCollector.Stop()

	// Start the alert manager with thresholds from config
	alertManager := monitor.NewAlertManager(logger, js)
	if err := alertManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start alert manager", zap.Error(err))
	}
	defer alertManager.Stop()

	if threshold := viper.GetFloat64("alerts.delay_threshold_days"); threshold > 0 {
		alertManager.AddRule(&model.AlertRule{
			Name:      "project-delay",
			Type:      model.AlertTypeDelayThreshold,
			Threshold: threshold,
			Severity:  model.AlertSeverityWarning,
		})
	}
	if threshold := viper.GetFloat64("alerts.cost_threshold"); threshold > 0 {
		alertManager.AddRule(&model.AlertRule{
			Name:      "delay-cost",
			Type:      model.AlertTypeCostThreshold,
			Threshold: threshold,
			Severity:  model.AlertSeverityCritical,
		})
	}

	// Submit an example analysis so a fresh deployment has output to inspect
	exampleRequest := &model.AnalysisRequest{
		Project:   "sample-bridge",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Policy:    model.WeekPolicy(viper.GetString("calendar.policy")),
		Location:  viper.GetString("weather.location"),
		Contract: model.ContractTerms{
			ContractAmount:     viper.GetFloat64("contract.amount"),
			LDRatePerDay:       viper.GetFloat64("contract.ld_rate_per_day"),
			IndirectCostPerDay: viper.GetFloat64("contract.indirect_cost_per_day"),
		},
		Tasks: []model.Task{
			{ID: "site-prep", Name: "Site Preparation", Duration: 5, WorkType: "earthwork"},
			{ID: "foundation", Name: "Foundation", Duration: 12, WorkType: "concrete", Predecessors: []model.PrecedenceLink{
				{PredecessorID: "site-prep", Kind: model.RelationFinishStart},
			}},
			{ID: "piers", Name: "Pier Construction", Duration: 15, WorkType: "concrete", Predecessors: []model.PrecedenceLink{
				{PredecessorID: "foundation", Kind: model.RelationStartStart, Lag: 4},
			}},
			{ID: "deck", Name: "Deck Installation", Duration: 10, WorkType: "steel", Predecessors: []model.PrecedenceLink{
				{PredecessorID: "piers", Kind: model.RelationFinishStart},
				{PredecessorID: "foundation", Kind: model.RelationFinishFinish, Lag: 20},
			}},
			{ID: "finishing", Name: "Surfacing and Finishing", Duration: 6, Predecessors: []model.PrecedenceLink{
				{PredecessorID: "deck", Kind: model.RelationFinishStart},
			}},
		},
	}

	analysisID, err := analysisService.Submit(ctx, exampleRequest)
	if err != nil {
		logger.Error("Failed to submit example analysis", zap.Error(err))
	} else {
		logger.Info("Submitted example analysis", zap.String("id", analysisID))
	}

	// Periodically log recent analyses and clean up old history
	go func() {
		statusTicker := time.NewTicker(30 * time.Second)
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer statusTicker.Stop()
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-statusTicker.C:
				records, err := history.List(ctx, nil, 0, 10)
				if err != nil {
					logger.Error("Failed to list analysis history", zap.Error(err))
					continue
				}

				for _, record := range records {
					logger.Info("Recent analysis",
						zap.String("id", record.ID),
						zap.String("project", record.Project),
						zap.String("status", string(record.Status)),
						zap.Int("delay_days", record.DelayDays),
						zap.Float64("total_cost", record.TotalCost))
				}
			case <-cleanupTicker.C:
				retentionDays := viper.GetInt("storage.retention_days")
				if retentionDays <= 0 {
					retentionDays = 90
				}
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				if err := history.DeleteBefore(ctx, cutoff); err != nil {
					logger.Error("Failed to cleanup old analysis history", zap.Error(err))
				}
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	if err := nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}
