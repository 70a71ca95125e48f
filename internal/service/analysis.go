package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/analyzer"
	"github.com/t77yq/cpm-analyzer/internal/model"
	"github.com/t77yq/cpm-analyzer/internal/storage"
)

const (
	analysisStreamName     = "ANALYSES"
	analysisRequestSubject = "analysis.request"
	analysisResultSubject  = "analysis.result"
	analysisFailedSubject  = "analysis.failed"

	streamMaxAge     = 24 * time.Hour
	streamMaxMsgs    = -1
	operationTimeout = 30 * time.Second
)

// AnalysisService consumes analysis requests over JetStream, runs the
// analyzer pipeline, persists the outcome, and publishes results
type AnalysisService struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	analyzer *analyzer.Analyzer
	history  storage.AnalysisHistoryStorage
	results  sync.Map // analysis id -> *model.AnalysisResult
}

// NewAnalysisService creates the service and wires up streams and consumers.
// history may be nil when persistence is not wanted.
func NewAnalysisService(js nats.JetStreamContext, a *analyzer.Analyzer, history storage.AnalysisHistoryStorage, logger *zap.Logger) (*AnalysisService, error) {
	service := &AnalysisService{
		js:       js,
		logger:   logger.Named("analysis-service"),
		analyzer: a,
		history:  history,
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := service.setupStreams(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup streams: %w", err)
	}
	if err := service.setupSubscribers(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup subscribers: %w", err)
	}

	return service, nil
}

func (s *AnalysisService) setupStreams(ctx context.Context) error {
	_, err := s.js.AddStream(&nats.StreamConfig{
		Name:     analysisStreamName,
		Subjects: []string{"analysis.*"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  streamMaxMsgs,
	}, nats.Context(ctx))

	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			s.logger.Info("Stream already exists", zap.String("stream", analysisStreamName))
			return nil
		}
		return err
	}

	s.logger.Info("Stream created successfully", zap.String("stream", analysisStreamName))
	return nil
}

func (s *AnalysisService) setupSubscribers(ctx context.Context) error {
	_, err := s.js.Subscribe(analysisRequestSubject, func(msg *nats.Msg) {
		// The setup context is long gone by the time requests arrive
		reqCtx, cancel := context.WithTimeout(context.Background(), operationTimeout)
		defer cancel()
		s.handleRequest(reqCtx, msg)
	}, nats.Context(ctx))
	return err
}

// Submit publishes an analysis request for processing. An id is assigned if
// the request has none.
func (s *AnalysisService) Submit(ctx context.Context, req *model.AnalysisRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	if _, err := s.js.Publish(analysisRequestSubject, data); err != nil {
		return "", fmt.Errorf("failed to publish analysis request: %w", err)
	}

	s.logger.Info("Analysis request submitted",
		zap.String("analysis_id", req.ID),
		zap.String("project", req.Project))

	return req.ID, nil
}

// GetResult returns a completed analysis result by id
func (s *AnalysisService) GetResult(id string) (*model.AnalysisResult, error) {
	if result, ok := s.results.Load(id); ok {
		return result.(*model.AnalysisResult), nil
	}
	return nil, fmt.Errorf("analysis %s not found", id)
}

// handleRequest runs the pipeline for one received request
func (s *AnalysisService) handleRequest(ctx context.Context, msg *nats.Msg) {
	var req model.AnalysisRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Error("Failed to unmarshal analysis request", zap.Error(err))
		return
	}

	startedAt := time.Now()
	if s.history != nil {
		reqData, err := json.Marshal(req)
		if err != nil {
			s.logger.Error("Failed to marshal analysis request for history",
				zap.String("analysis_id", req.ID),
				zap.Error(err))
		}
		if err := s.history.Store(ctx, &storage.AnalysisRecord{
			ID:        req.ID,
			Project:   req.Project,
			Status:    model.AnalysisStatusRunning,
			Request:   reqData,
			StartedAt: startedAt,
		}); err != nil {
			s.logger.Error("Failed to store analysis record",
				zap.String("analysis_id", req.ID),
				zap.Error(err))
		}
	}

	result, err := s.analyzer.Analyze(ctx, &req)
	if err != nil {
		s.logger.Error("Analysis failed",
			zap.String("analysis_id", req.ID),
			zap.String("project", req.Project),
			zap.Error(err))
		s.recordFailure(ctx, &req, startedAt, err)
		return
	}

	s.results.Store(result.ID, result)

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to marshal analysis result",
			zap.String("analysis_id", result.ID),
			zap.Error(err))
		return
	}
	if _, err := s.js.Publish(analysisResultSubject, data); err != nil {
		s.logger.Error("Failed to publish analysis result",
			zap.String("analysis_id", result.ID),
			zap.Error(err))
	}

	if s.history != nil {
		completedAt := result.CompletedAt
		if err := s.history.Update(ctx, &storage.AnalysisRecord{
			ID:          result.ID,
			Project:     result.Project,
			Status:      model.AnalysisStatusCompleted,
			DelayDays:   result.Delay.TotalDelayDays,
			TotalCost:   result.Cost.Total,
			Result:      data,
			StartedAt:   startedAt,
			CompletedAt: &completedAt,
		}); err != nil {
			s.logger.Error("Failed to update analysis record",
				zap.String("analysis_id", result.ID),
				zap.Error(err))
		}
	}
}

// recordFailure persists and publishes a failed analysis
func (s *AnalysisService) recordFailure(ctx context.Context, req *model.AnalysisRequest, startedAt time.Time, cause error) {
	if s.history != nil {
		now := time.Now()
		if err := s.history.Update(ctx, &storage.AnalysisRecord{
			ID:          req.ID,
			Project:     req.Project,
			Status:      model.AnalysisStatusFailed,
			Error:       cause.Error(),
			StartedAt:   startedAt,
			CompletedAt: &now,
		}); err != nil {
			s.logger.Error("Failed to record analysis failure",
				zap.String("analysis_id", req.ID),
				zap.Error(err))
		}
	}

	payload, err := json.Marshal(map[string]string{
		"id":      req.ID,
		"project": req.Project,
		"error":   cause.Error(),
	})
	if err != nil {
		return
	}
	if _, err := s.js.Publish(analysisFailedSubject, payload); err != nil {
		s.logger.Error("Failed to publish analysis failure",
			zap.String("analysis_id", req.ID),
			zap.Error(err))
	}
}
