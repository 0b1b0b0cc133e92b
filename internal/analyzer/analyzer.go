// Package analyzer turns the heartbeat log into reliability, performance and
// anomaly statistics, recommendations and a textual report.
package analyzer

import (
	"math"
	"sync"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
)

const (
	DefaultExpectedInterval = constants.DefaultHeartbeatInterval
	DefaultCacheTTL         = time.Minute

	largeGapFactor  = 2
	longGapFactor   = 5
	maxReportedGaps = 5
	minTrendRecords = 10
	lowBatteryLevel = 20
	batteryDrift    = 10
	switchRatio     = 0.3
	rankedHours     = 3
)

// Level names shared by reliability, stability and conclusions.
const (
	LevelExcellent = "excellent"
	LevelGood      = "good"
	LevelFair      = "fair"
	LevelPoor      = "poor"
	LevelUnknown   = "unknown"
)

// Options configures an Analyzer.
type Options struct {
	ExpectedInterval time.Duration
	CacheTTL         time.Duration
	// Location is used to bucket records by hour of day. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// Analyzer computes Analysis values and memoizes the last one for CacheTTL.
// The cache is keyed by time only: a changed log is not noticed until the
// entry expires or ClearCache is called.
type Analyzer struct {
	opts Options

	mu       sync.Mutex
	cached   *models.Analysis
	cachedAt time.Time
}

// New creates an Analyzer, filling unset options with defaults.
func New(opts Options) *Analyzer {
	if opts.ExpectedInterval <= 0 {
		opts.ExpectedInterval = DefaultExpectedInterval
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{opts: opts}
}

// Analyze returns the analysis of logs, which must be ordered newest first.
// An empty log always yields a fresh EmptyAnalysis and never touches the cache.
func (a *Analyzer) Analyze(logs []models.HeartbeatRecord) *models.Analysis {
	if len(logs) == 0 {
		return EmptyAnalysis()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.opts.Now()
	if a.cached != nil && now.Sub(a.cachedAt) < a.opts.CacheTTL {
		return a.cached
	}

	analysis := &models.Analysis{
		Overview:    overview(logs),
		Reliability: a.reliability(logs),
		Performance: performance(logs),
		Network:     network(logs),
		Battery:     battery(logs),
		Anomalies:   a.anomalies(logs),
		Trends:      a.trends(logs),
	}
	analysis.Recommendations = recommendations(analysis)

	a.cached = analysis
	a.cachedAt = now
	return analysis
}

// ClearCache forces the next Analyze call to recompute.
func (a *Analyzer) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cached = nil
	a.cachedAt = time.Time{}
}

// EmptyAnalysis is the fixed result for an empty log: zero numbers, unknown
// levels and empty lists.
func EmptyAnalysis() *models.Analysis {
	return &models.Analysis{
		Overview: models.Overview{
			TimeSpan: timeSpan(0),
		},
		Reliability: emptyReliability(),
		Performance: emptyPerformance(),
		Network: models.NetworkAnalysis{
			Distribution: []models.NetworkShare{},
			MostCommon:   constants.UnknownNetworkType,
		},
		Battery:   emptyBattery(),
		Anomalies: []models.Anomaly{},
		Trends: models.Trends{
			Available: false,
			Message:   "no data",
		},
		Recommendations: []models.Recommendation{},
	}
}

func emptyReliability() models.Reliability {
	return models.Reliability{
		Level:           LevelUnknown,
		MaxGapFormatted: FormatDuration(0),
		AvgGapFormatted: FormatDuration(0),
		LargeGaps:       []models.Gap{},
	}
}

func emptyPerformance() models.Performance {
	return models.Performance{
		AvgIntervalFormatted: FormatDuration(0),
		MinIntervalFormatted: FormatDuration(0),
		MaxIntervalFormatted: FormatDuration(0),
		StabilityLevel:       LevelUnknown,
	}
}

func emptyBattery() models.BatteryAnalysis {
	return models.BatteryAnalysis{Trend: LevelUnknown}
}

// scoreLevel maps a 0-100 score to a level.
func scoreLevel(score float64) string {
	switch {
	case score < 60:
		return LevelPoor
	case score < 75:
		return LevelFair
	case score < 90:
		return LevelGood
	default:
		return LevelExcellent
	}
}

func isFailure(r models.HeartbeatRecord) bool {
	return r.Status == constants.StatusError || r.Status == constants.StatusFailure
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
