package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/analyzer"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/benmeehan/keepalive-agent/pkg/events"
	"github.com/rs/zerolog"
)

// HeartbeatLogSource provides the heartbeat log, newest first.
type HeartbeatLogSource interface {
	Logs() []models.HeartbeatRecord
}

// ReportService periodically analyzes the heartbeat log and logs a report summary.
type ReportService struct {
	interval time.Duration
	source   HeartbeatLogSource
	analyzer *analyzer.Analyzer
	logger   zerolog.Logger
	reports  *events.Channel[models.Report]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReportService initializes a new ReportService.
func NewReportService(interval time.Duration, source HeartbeatLogSource, a *analyzer.Analyzer, logger zerolog.Logger) *ReportService {
	return &ReportService{
		interval: interval,
		source:   source,
		analyzer: a,
		logger:   logger,
		reports:  events.NewChannel[models.Report]("keepalive-report"),
	}
}

// Reports fires with every generated report.
func (r *ReportService) Reports() *events.Channel[models.Report] {
	return r.reports
}

// Start launches the report loop in a separate goroutine.
func (r *ReportService) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		r.logger.Warn().Msg("ReportService is already running")
		return errors.New("report service is already running")
	}
	if r.interval <= 0 {
		return errors.New("report interval must be positive")
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runReportLoop(r.ctx)
	}()

	r.logger.Info().Dur("interval", r.interval).Msg("ReportService started successfully")
	return nil
}

// Stop gracefully stops the report service.
func (r *ReportService) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		r.logger.Warn().Msg("ReportService is not running")
		return errors.New("report service is not running")
	}

	r.cancel()
	r.wg.Wait()

	r.ctx = nil
	r.cancel = nil

	r.logger.Info().Msg("ReportService stopped successfully")
	return nil
}

// Generate builds a report from the current log, bypassing the analyzer cache.
func (r *ReportService) Generate() models.Report {
	r.analyzer.ClearCache()
	report := r.analyzer.GenerateReport(r.source.Logs())

	r.logger.Info().
		Int("total", report.Summary.TotalHeartbeats).
		Float64("success_rate", report.Summary.SuccessRate).
		Float64("reliability_score", report.Summary.ReliabilityScore).
		Str("level", report.Conclusion.Level).
		Str("time_span", report.Summary.TimeSpan).
		Int("recommendations", len(report.Recommendations)).
		Msg(report.Conclusion.Text)

	r.reports.Publish(report)
	return report
}

func (r *ReportService) runReportLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Generate()
		case <-ctx.Done():
			r.logger.Info().Msg("ReportService stopping gracefully")
			return
		}
	}
}
