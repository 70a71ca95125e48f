package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

const (
	recurringStreamName    = "RECURRING"
	recurringAddSubject    = "recurring.add"
	recurringRemoveSubject = "recurring.remove"
)

// RecurringScheduler re-submits saved analysis requests on cron expressions,
// so projects refresh their delay exposure as forecasts roll forward
type RecurringScheduler struct {
	logger    *zap.Logger
	js        nats.JetStreamContext
	cron      *cron.Cron
	schedules sync.Map
	entryIDs  sync.Map
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewRecurringScheduler creates a new recurring analysis scheduler
func NewRecurringScheduler(js nats.JetStreamContext, logger *zap.Logger) *RecurringScheduler {
	cl := &cronLogger{logger: logger.Named("cron")}
	options := []cron.Option{
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cl)),
	}

	return &RecurringScheduler{
		logger: logger.Named("recurring-scheduler"),
		js:     js,
		cron:   cron.New(options...),
	}
}

// Start starts the scheduler and subscribes to management commands
func (s *RecurringScheduler) Start(ctx context.Context) error {
	_, err := s.js.StreamInfo(recurringStreamName)
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:     recurringStreamName,
			Subjects: []string{"recurring.*"},
			Storage:  nats.FileStorage,
			MaxAge:   streamMaxAge,
			MaxMsgs:  streamMaxMsgs,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		s.logger.Info("Created recurring stream", zap.String("name", recurringStreamName))
	} else {
		s.logger.Info("Using existing recurring stream", zap.String("name", recurringStreamName))
	}

	s.cron.Start()
	return s.subscribeToCommands(ctx)
}

// Stop stops the scheduler and waits for running jobs
func (s *RecurringScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AddSchedule adds a new recurring analysis
func (s *RecurringScheduler) AddSchedule(ctx context.Context, schedule *model.RecurringAnalysis) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if schedule.Status == "" {
		schedule.Status = model.AnalysisStatusPending
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now()
	}
	schedule.UpdatedAt = time.Now()

	specParser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec, err := specParser.Parse(schedule.Expression)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.schedules.Store(schedule.ID, schedule)

	entryID, err := s.cron.AddJob(schedule.Expression, &recurringJob{
		scheduler: s,
		schedule:  schedule,
	})
	if err != nil {
		s.schedules.Delete(schedule.ID)
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryIDs.Store(schedule.ID, entryID)

	next := spec.Next(time.Now())
	schedule.NextRunTime = &next

	s.logger.Info("Added recurring analysis",
		zap.String("id", schedule.ID),
		zap.String("name", schedule.Name),
		zap.String("expression", schedule.Expression),
		zap.Time("next_run", next))

	return nil
}

// RemoveSchedule removes a recurring analysis
func (s *RecurringScheduler) RemoveSchedule(id string) error {
	entryIDVal, ok := s.entryIDs.Load(id)
	if !ok {
		return fmt.Errorf("schedule not found: %s", id)
	}

	s.cron.Remove(entryIDVal.(cron.EntryID))
	s.entryIDs.Delete(id)
	s.schedules.Delete(id)

	s.logger.Info("Removed recurring analysis", zap.String("id", id))
	return nil
}

// GetSchedule gets a recurring analysis by ID
func (s *RecurringScheduler) GetSchedule(id string) (*model.RecurringAnalysis, error) {
	val, ok := s.schedules.Load(id)
	if !ok {
		return nil, fmt.Errorf("schedule not found: %s", id)
	}
	return val.(*model.RecurringAnalysis), nil
}

// ListSchedules lists all recurring analyses
func (s *RecurringScheduler) ListSchedules() []*model.RecurringAnalysis {
	var schedules []*model.RecurringAnalysis
	s.schedules.Range(func(key, value interface{}) bool {
		schedules = append(schedules, value.(*model.RecurringAnalysis))
		return true
	})
	return schedules
}

// subscribeToCommands subscribes to schedule management commands
func (s *RecurringScheduler) subscribeToCommands(ctx context.Context) error {
	if _, err := s.js.Subscribe(recurringAddSubject, func(msg *nats.Msg) {
		var schedule model.RecurringAnalysis
		if err := json.Unmarshal(msg.Data, &schedule); err != nil {
			s.logger.Error("Failed to unmarshal recurring analysis", zap.Error(err))
			return
		}

		if err := s.AddSchedule(ctx, &schedule); err != nil {
			s.logger.Error("Failed to add recurring analysis", zap.Error(err))
			return
		}
	}, nats.Durable("recurring-add-consumer")); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", recurringAddSubject, err)
	}

	if _, err := s.js.Subscribe(recurringRemoveSubject, func(msg *nats.Msg) {
		var id string
		if err := json.Unmarshal(msg.Data, &id); err != nil {
			s.logger.Error("Failed to unmarshal schedule ID", zap.Error(err))
			return
		}

		if err := s.RemoveSchedule(id); err != nil {
			s.logger.Error("Failed to remove recurring analysis", zap.Error(err))
			return
		}
	}, nats.Durable("recurring-remove-consumer")); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", recurringRemoveSubject, err)
	}

	return nil
}

// recurringJob implements cron.Job
type recurringJob struct {
	scheduler *RecurringScheduler
	schedule  *model.RecurringAnalysis
}

// Run publishes a fresh analysis request derived from the saved one
func (j *recurringJob) Run() {
	now := time.Now()
	j.schedule.LastRunTime = &now

	specParser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec, err := specParser.Parse(j.schedule.Expression)
	if err != nil {
		j.scheduler.logger.Error("Failed to parse cron expression",
			zap.String("id", j.schedule.ID),
			zap.Error(err))
		return
	}

	next := spec.Next(now)
	j.schedule.NextRunTime = &next

	// Each run gets its own analysis id so results stay distinguishable
	req := j.schedule.Request
	req.ID = uuid.New().String()
	req.CreatedAt = now

	data, err := json.Marshal(&req)
	if err != nil {
		j.scheduler.logger.Error("Failed to marshal analysis request",
			zap.String("id", j.schedule.ID),
			zap.Error(err))
		return
	}

	if _, err := j.scheduler.js.Publish(analysisRequestSubject, data); err != nil {
		j.scheduler.logger.Error("Failed to publish analysis request",
			zap.String("id", j.schedule.ID),
			zap.Error(err))
		return
	}

	j.scheduler.logger.Info("Triggered recurring analysis",
		zap.String("id", j.schedule.ID),
		zap.String("name", j.schedule.Name),
		zap.String("analysis_id", req.ID),
		zap.Time("next_run", next))
}
