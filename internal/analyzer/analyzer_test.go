package analyzer_test

import (
	"testing"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/analyzer"
	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// series builds a newest-first log where offsets are seconds before base.
func series(statuses []string, offsets ...int) []models.HeartbeatRecord {
	logs := make([]models.HeartbeatRecord, len(offsets))
	for i, off := range offsets {
		logs[i] = models.HeartbeatRecord{
			Timestamp: base.Add(-time.Duration(off) * time.Second),
			Status:    statuses[i%len(statuses)],
		}
	}
	return logs
}

func newAnalyzer() *analyzer.Analyzer {
	return analyzer.New(analyzer.Options{Location: time.UTC, Now: func() time.Time { return base }})
}

func TestAnalyze_Empty(t *testing.T) {
	a := newAnalyzer()
	for _, logs := range [][]models.HeartbeatRecord{nil, {}} {
		result := a.Analyze(logs)
		assert.Equal(t, analyzer.EmptyAnalysis(), result)
		assert.Equal(t, 0, result.Overview.TotalCount)
		assert.Equal(t, "unknown", result.Reliability.Level)
		assert.Equal(t, "unknown", result.Performance.StabilityLevel)
		assert.Equal(t, "unknown", result.Battery.Trend)
		assert.Equal(t, "unknown", result.Network.MostCommon)
		assert.NotNil(t, result.Anomalies)
		assert.NotNil(t, result.Recommendations)
		assert.False(t, result.Trends.Available)
	}
}

func TestAnalyze_SteadyLogIsExcellent(t *testing.T) {
	logs := series([]string{constants.StatusSuccess}, 0, 30, 60, 90, 120)

	result := newAnalyzer().Analyze(logs)
	assert.Equal(t, 100.0, result.Reliability.Score)
	assert.Equal(t, "excellent", result.Reliability.Level)
	assert.Equal(t, 0, result.Reliability.GapCount)
	assert.Empty(t, result.Reliability.LargeGaps)
	assert.Equal(t, 100.0, result.Performance.Stability)
	assert.Equal(t, 30*time.Second, result.Performance.AvgInterval)
	assert.Equal(t, 100.0, result.Overview.SuccessRate)
	assert.Equal(t, int64(120000), result.Overview.TimeSpan.Milliseconds)
	assert.Equal(t, "0h2m", result.Overview.TimeSpan.Formatted)
	assert.Empty(t, result.Recommendations)
}

func TestAnalyze_OneLargeGap(t *testing.T) {
	logs := series([]string{constants.StatusSuccess}, 0, 30, 100, 130)

	result := newAnalyzer().Analyze(logs)
	require.Len(t, result.Reliability.LargeGaps, 1)
	assert.Equal(t, 1, result.Reliability.GapCount)

	gap := result.Reliability.LargeGaps[0]
	assert.Equal(t, 70*time.Second, gap.Duration)
	assert.Equal(t, "1m10s", gap.DurationFormatted)
	assert.Equal(t, base.Add(-100*time.Second), gap.StartTime)
	assert.Equal(t, base.Add(-30*time.Second), gap.EndTime)
	assert.Equal(t, 87.5, result.Reliability.Score)
	assert.Equal(t, "good", result.Reliability.Level)
	assert.Equal(t, 70*time.Second, result.Reliability.MaxGap)
}

func TestAnalyze_LargeGapsCappedToFiveLargest(t *testing.T) {
	// Gaps of 70, 80, 90, 100, 110 and 120 seconds.
	logs := series([]string{constants.StatusSuccess}, 0, 70, 150, 240, 340, 450, 570)

	result := newAnalyzer().Analyze(logs)
	assert.Equal(t, 6, result.Reliability.GapCount)
	require.Len(t, result.Reliability.LargeGaps, 5)
	assert.Equal(t, 120*time.Second, result.Reliability.LargeGaps[0].Duration)
	assert.Equal(t, 80*time.Second, result.Reliability.LargeGaps[4].Duration)

	assert.Contains(t, actions(result.Recommendations), "review_gaps")
}

func TestAnalyze_ConsecutiveFailures(t *testing.T) {
	statuses := []string{
		constants.StatusSuccess, constants.StatusError, constants.StatusError,
		constants.StatusError, constants.StatusSuccess,
	}
	logs := make([]models.HeartbeatRecord, len(statuses))
	for i, s := range statuses {
		logs[i] = models.HeartbeatRecord{Timestamp: base.Add(-time.Duration(i*30) * time.Second), Status: s}
	}

	result := newAnalyzer().Analyze(logs)

	var found []models.Anomaly
	for _, an := range result.Anomalies {
		if an.Type == "consecutive_failures" {
			found = append(found, an)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, 3, found[0].Count)
	assert.Equal(t, "high", found[0].Severity)

	assert.Equal(t, 3, result.Overview.FailureCount)
	assert.Equal(t, 40.0, result.Overview.SuccessRate)
	assert.Equal(t, 70.0, result.Reliability.Score)
	assert.Contains(t, actions(result.Recommendations), "investigate_anomaly")
	assert.Contains(t, actions(result.Recommendations), "check_battery_optimization")
}

func TestAnalyze_LongGapAnomaly(t *testing.T) {
	logs := series([]string{constants.StatusSuccess}, 0, 30, 200)

	result := newAnalyzer().Analyze(logs)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "long_gap", result.Anomalies[0].Type)
	assert.Equal(t, "medium", result.Anomalies[0].Severity)
	assert.Equal(t, 170*time.Second, result.Anomalies[0].Duration)
}

func TestAnalyze_NetworkAndBattery(t *testing.T) {
	snapshot := func(network string, battery int) *models.DeviceSnapshot {
		return &models.DeviceSnapshot{NetworkType: network, BatteryLevel: battery}
	}
	logs := []models.HeartbeatRecord{
		{Timestamp: base, Status: constants.StatusError, Payload: snapshot("wifi", 15)},
		{Timestamp: base.Add(-30 * time.Second), Status: constants.StatusSuccess, Payload: snapshot("wifi", 50)},
		{Timestamp: base.Add(-60 * time.Second), Status: constants.StatusError, Payload: snapshot("wifi", -1)},
		{Timestamp: base.Add(-90 * time.Second), Status: constants.StatusSuccess, Payload: snapshot("wifi", 80)},
		{Timestamp: base.Add(-120 * time.Second), Status: constants.StatusSuccess, Payload: snapshot("4g", -1)},
	}

	result := newAnalyzer().Analyze(logs)

	require.Len(t, result.Network.Distribution, 2)
	wifi := result.Network.Distribution[0]
	assert.Equal(t, "wifi", wifi.Type)
	assert.Equal(t, 4, wifi.Count)
	assert.Equal(t, 80.0, wifi.Percentage)
	assert.Equal(t, 2, wifi.FailureCount)
	assert.Equal(t, 50.0, wifi.FailureRate)
	assert.Equal(t, "wifi", result.Network.MostCommon)
	assert.Equal(t, 2, result.Network.TotalTypes)

	assert.Equal(t, 48.3, result.Battery.AvgLevel)
	assert.Equal(t, 15, result.Battery.MinLevel)
	assert.Equal(t, 80, result.Battery.MaxLevel)
	assert.Equal(t, -65, result.Battery.BatteryChange)
	assert.Equal(t, "decreasing", result.Battery.Trend)
	assert.Equal(t, 1, result.Battery.LowBatteryCount)
	assert.Equal(t, 33.3, result.Battery.LowBatteryPercentage)

	recs := actions(result.Recommendations)
	assert.Contains(t, recs, "check_wifi_stability")
	assert.Contains(t, recs, "optimize_battery_usage")
}

func TestAnalyze_FrequentNetworkSwitch(t *testing.T) {
	var logs []models.HeartbeatRecord
	for i, network := range []string{"wifi", "4g", "wifi", "4g"} {
		logs = append(logs, models.HeartbeatRecord{
			Timestamp: base.Add(-time.Duration(i*30) * time.Second),
			Status:    constants.StatusSuccess,
			Payload:   &models.DeviceSnapshot{NetworkType: network},
		})
	}

	result := newAnalyzer().Analyze(logs)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "frequent_network_switch", result.Anomalies[0].Type)
	assert.Equal(t, 3, result.Anomalies[0].Count)
	assert.Equal(t, "low", result.Anomalies[0].Severity)
}

func TestAnalyze_Trends(t *testing.T) {
	short := newAnalyzer().Analyze(series([]string{constants.StatusSuccess}, 0, 30, 60))
	assert.False(t, short.Trends.Available)

	var logs []models.HeartbeatRecord
	add := func(hour, n int, status string) {
		for i := 0; i < n; i++ {
			logs = append(logs, models.HeartbeatRecord{
				Timestamp: time.Date(2024, 3, 1, hour, 50-i, 0, 0, time.UTC),
				Status:    status,
			})
		}
	}
	add(13, 1, constants.StatusSuccess)
	add(12, 2, constants.StatusError)
	add(11, 4, constants.StatusSuccess)
	add(10, 5, constants.StatusSuccess)

	result := newAnalyzer().Analyze(logs)
	require.True(t, result.Trends.Available)
	require.Len(t, result.Trends.HourlyData, 4)
	assert.Equal(t, 10, result.Trends.MostActiveHour.Hour)
	assert.Equal(t, 13, result.Trends.LeastActiveHour.Hour)
	assert.Equal(t, []int{10, 11, 12}, result.Trends.PeakHours)
	assert.Equal(t, []int{11, 12, 13}, result.Trends.LowHours)
	assert.Equal(t, 0.0, result.Trends.HourlyData[2].SuccessRate)
}

func TestAnalyze_ScoresStayInRange(t *testing.T) {
	logs := series([]string{constants.StatusError, constants.StatusFailure}, 0, 1, 400, 401, 2000, 2001, 9000)

	result := newAnalyzer().Analyze(logs)
	assert.GreaterOrEqual(t, result.Reliability.Score, 0.0)
	assert.LessOrEqual(t, result.Reliability.Score, 100.0)
	assert.GreaterOrEqual(t, result.Performance.Stability, 0.0)
	assert.LessOrEqual(t, result.Performance.Stability, 100.0)
	assert.Equal(t, "poor", result.Reliability.Level)
}

func TestAnalyze_SingleRecord(t *testing.T) {
	result := newAnalyzer().Analyze(series([]string{constants.StatusSuccess}, 0))
	assert.Equal(t, 1, result.Overview.TotalCount)
	assert.Equal(t, "unknown", result.Reliability.Level)
	assert.Equal(t, "unknown", result.Performance.StabilityLevel)
}

func TestAnalyze_Cache(t *testing.T) {
	now := base
	a := analyzer.New(analyzer.Options{Now: func() time.Time { return now }})
	logs := series([]string{constants.StatusSuccess}, 0, 30, 60)

	first := a.Analyze(logs)
	assert.Same(t, first, a.Analyze(logs))

	// Time-keyed only: a different log within the window still hits the cache.
	assert.Same(t, first, a.Analyze(series([]string{constants.StatusError}, 0, 30)))

	a.ClearCache()
	second := a.Analyze(logs)
	assert.NotSame(t, first, second)

	now = now.Add(61 * time.Second)
	assert.NotSame(t, second, a.Analyze(logs))
}

func TestGenerateReport(t *testing.T) {
	logs := series([]string{constants.StatusSuccess}, 0, 30, 100, 130)

	report := newAnalyzer().GenerateReport(logs)
	assert.Equal(t, base, report.GeneratedAt)
	assert.Equal(t, 4, report.Summary.TotalHeartbeats)
	assert.Equal(t, 87.5, report.Summary.ReliabilityScore)
	assert.Equal(t, "good", report.Summary.ReliabilityLevel)
	assert.Equal(t, "0h2m", report.Summary.TimeSpan)
	require.NotNil(t, report.Details)
	assert.Equal(t, "good", report.Conclusion.Level)
	assert.Equal(t, 87.5, report.Conclusion.Score)
	assert.Contains(t, report.Conclusion.Text, "1 heartbeat interruptions")
}

func TestConclude_Levels(t *testing.T) {
	tests := []struct {
		score float64
		level string
	}{
		{95, "excellent"},
		{90, "excellent"},
		{80, "good"},
		{60, "fair"},
		{59.9, "poor"},
	}
	for _, tt := range tests {
		analysis := analyzer.EmptyAnalysis()
		analysis.Reliability.Score = tt.score
		analysis.Overview.SuccessRate = 100
		c := analyzer.Conclude(analysis)
		assert.Equal(t, tt.level, c.Level, "score %v", tt.score)
		assert.NotContains(t, c.Text, "Found")
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", analyzer.FormatDuration(0))
	assert.Equal(t, "45s", analyzer.FormatDuration(45*time.Second+900*time.Millisecond))
	assert.Equal(t, "2m30s", analyzer.FormatDuration(150*time.Second))
	assert.Equal(t, "1h5m", analyzer.FormatDuration(65*time.Minute+10*time.Second))
}

func actions(recs []models.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Action
	}
	return out
}
