package analyzer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/constants"
	"github.com/benmeehan/keepalive-agent/internal/models"
)

func overview(logs []models.HeartbeatRecord) models.Overview {
	o := models.Overview{TotalCount: len(logs)}
	for _, r := range logs {
		switch {
		case r.Status == constants.StatusSuccess:
			o.SuccessCount++
		case isFailure(r):
			o.FailureCount++
		}
	}
	o.SuccessRate = percent(o.SuccessCount, o.TotalCount)

	o.LastHeartbeat = logs[0].Timestamp
	o.FirstHeartbeat = logs[len(logs)-1].Timestamp
	o.TimeSpan = timeSpan(o.LastHeartbeat.Sub(o.FirstHeartbeat))
	return o
}

func timeSpan(d time.Duration) models.TimeSpan {
	ms := d.Milliseconds()
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms % int64(time.Hour/time.Millisecond)) / int64(time.Minute/time.Millisecond)
	return models.TimeSpan{
		Milliseconds: ms,
		Hours:        hours,
		Minutes:      minutes,
		Formatted:    fmt.Sprintf("%dh%dm", hours, minutes),
	}
}

// deltas returns the time between each record and the one before it.
func deltas(logs []models.HeartbeatRecord) []time.Duration {
	if len(logs) < 2 {
		return nil
	}
	out := make([]time.Duration, 0, len(logs)-1)
	for i := 0; i < len(logs)-1; i++ {
		out = append(out, logs[i].Timestamp.Sub(logs[i+1].Timestamp))
	}
	return out
}

func (a *Analyzer) reliability(logs []models.HeartbeatRecord) models.Reliability {
	gaps := deltas(logs)
	if len(gaps) == 0 {
		return emptyReliability()
	}

	threshold := a.opts.ExpectedInterval * largeGapFactor
	var large []models.Gap
	var total time.Duration
	maxGap := gaps[0]
	for i, gap := range gaps {
		total += gap
		maxGap = max(maxGap, gap)
		if gap > threshold {
			large = append(large, models.Gap{
				StartTime:         logs[i+1].Timestamp,
				EndTime:           logs[i].Timestamp,
				Duration:          gap,
				DurationFormatted: FormatDuration(gap),
			})
		}
	}
	avgGap := total / time.Duration(len(gaps))

	failures := 0
	for _, r := range logs {
		if isFailure(r) {
			failures++
		}
	}

	n := float64(len(logs))
	gapPenalty := float64(len(large)) / n * 50
	failurePenalty := float64(failures) / n * 50
	score := round1(clamp(100-gapPenalty-failurePenalty, 0, 100))

	gapCount := len(large)
	slices.SortStableFunc(large, func(x, y models.Gap) int { return cmp.Compare(y.Duration, x.Duration) })
	if len(large) > maxReportedGaps {
		large = large[:maxReportedGaps]
	}
	if large == nil {
		large = []models.Gap{}
	}

	return models.Reliability{
		Score:           score,
		Level:           scoreLevel(score),
		MaxGap:          maxGap,
		MaxGapFormatted: FormatDuration(maxGap),
		AvgGap:          avgGap,
		AvgGapFormatted: FormatDuration(avgGap),
		GapCount:        gapCount,
		LargeGaps:       large,
	}
}

func performance(logs []models.HeartbeatRecord) models.Performance {
	intervals := deltas(logs)
	if len(intervals) == 0 {
		return emptyPerformance()
	}

	var sum float64
	minInterval, maxInterval := intervals[0], intervals[0]
	for _, d := range intervals {
		sum += float64(d)
		minInterval = min(minInterval, d)
		maxInterval = max(maxInterval, d)
	}
	mean := sum / float64(len(intervals))

	var variance float64
	for _, d := range intervals {
		diff := float64(d) - mean
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(intervals)))

	stability := 0.0
	if mean > 0 {
		stability = round1(clamp(100-(stdDev/mean)*100, 0, 100))
	}

	avg := time.Duration(mean)
	return models.Performance{
		AvgInterval:          avg,
		AvgIntervalFormatted: FormatDuration(avg),
		MinInterval:          minInterval,
		MinIntervalFormatted: FormatDuration(minInterval),
		MaxInterval:          maxInterval,
		MaxIntervalFormatted: FormatDuration(maxInterval),
		Stability:            stability,
		StabilityLevel:       scoreLevel(stability),
		StdDev:               time.Duration(stdDev),
	}
}

func network(logs []models.HeartbeatRecord) models.NetworkAnalysis {
	var order []string
	counts := make(map[string]int)
	failures := make(map[string]int)
	for _, r := range logs {
		t := r.NetworkType()
		if t == "" {
			t = constants.UnknownNetworkType
		}
		if _, seen := counts[t]; !seen {
			order = append(order, t)
		}
		counts[t]++
		if isFailure(r) {
			failures[t]++
		}
	}

	distribution := make([]models.NetworkShare, 0, len(order))
	for _, t := range order {
		distribution = append(distribution, models.NetworkShare{
			Type:         t,
			Count:        counts[t],
			Percentage:   percent(counts[t], len(logs)),
			FailureCount: failures[t],
			FailureRate:  percent(failures[t], counts[t]),
		})
	}
	slices.SortStableFunc(distribution, func(x, y models.NetworkShare) int { return cmp.Compare(y.Count, x.Count) })

	mostCommon := constants.UnknownNetworkType
	if len(distribution) > 0 {
		mostCommon = distribution[0].Type
	}
	return models.NetworkAnalysis{
		Distribution: distribution,
		MostCommon:   mostCommon,
		TotalTypes:   len(counts),
	}
}

func battery(logs []models.HeartbeatRecord) models.BatteryAnalysis {
	var levels []int
	for _, r := range logs {
		if level, ok := r.BatteryLevel(); ok {
			levels = append(levels, level)
		}
	}
	if len(levels) == 0 {
		return emptyBattery()
	}

	sum, low := 0, 0
	minLevel, maxLevel := levels[0], levels[0]
	for _, l := range levels {
		sum += l
		minLevel = min(minLevel, l)
		maxLevel = max(maxLevel, l)
		if l < lowBatteryLevel {
			low++
		}
	}

	change := levels[0] - levels[len(levels)-1]
	trend := "stable"
	switch {
	case change < -batteryDrift:
		trend = "decreasing"
	case change > batteryDrift:
		trend = "increasing"
	}

	return models.BatteryAnalysis{
		AvgLevel:             round1(float64(sum) / float64(len(levels))),
		MinLevel:             minLevel,
		MaxLevel:             maxLevel,
		Trend:                trend,
		BatteryChange:        change,
		LowBatteryCount:      low,
		LowBatteryPercentage: percent(low, len(levels)),
	}
}

func (a *Analyzer) anomalies(logs []models.HeartbeatRecord) []models.Anomaly {
	found := []models.Anomaly{}

	run, longest := 0, 0
	for _, r := range logs {
		if isFailure(r) {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	if longest >= 3 {
		found = append(found, models.Anomaly{
			Type:     "consecutive_failures",
			Severity: "high",
			Count:    longest,
			Message:  fmt.Sprintf("detected %d consecutive heartbeat failures", longest),
		})
	}

	threshold := a.opts.ExpectedInterval * longGapFactor
	for i, gap := range deltas(logs) {
		if gap <= threshold {
			continue
		}
		found = append(found, models.Anomaly{
			Type:              "long_gap",
			Severity:          "medium",
			Duration:          gap,
			DurationFormatted: FormatDuration(gap),
			StartTime:         logs[i+1].Timestamp,
			EndTime:           logs[i].Timestamp,
			Message:           fmt.Sprintf("heartbeats stopped for %s", FormatDuration(gap)),
		})
	}

	switches := 0
	for i := 0; i < len(logs)-1; i++ {
		if logs[i].NetworkType() != logs[i+1].NetworkType() {
			switches++
		}
	}
	if float64(switches) > float64(len(logs))*switchRatio {
		found = append(found, models.Anomaly{
			Type:     "frequent_network_switch",
			Severity: "low",
			Count:    switches,
			Message:  fmt.Sprintf("network type switched %d times", switches),
		})
	}

	return found
}

func (a *Analyzer) trends(logs []models.HeartbeatRecord) models.Trends {
	if len(logs) < minTrendRecords {
		return models.Trends{Available: false, Message: "not enough data to analyze trends"}
	}

	var buckets [24]models.HourlyStats
	for _, r := range logs {
		b := &buckets[r.Timestamp.In(a.opts.Location).Hour()]
		b.Total++
		switch {
		case r.Status == constants.StatusSuccess:
			b.Success++
		case isFailure(r):
			b.Failure++
		}
	}

	var hourly []models.HourlyStats
	for hour, b := range buckets {
		if b.Total == 0 {
			continue
		}
		b.Hour = hour
		b.SuccessRate = percent(b.Success, b.Total)
		hourly = append(hourly, b)
	}
	slices.SortStableFunc(hourly, func(x, y models.HourlyStats) int { return cmp.Compare(y.Total, x.Total) })

	most := hourly[0]
	least := hourly[len(hourly)-1]
	return models.Trends{
		Available:       true,
		HourlyData:      hourly,
		MostActiveHour:  &most,
		LeastActiveHour: &least,
		PeakHours:       hours(hourly[:min(rankedHours, len(hourly))]),
		LowHours:        hours(hourly[max(0, len(hourly)-rankedHours):]),
	}
}

func hours(stats []models.HourlyStats) []int {
	out := make([]int, len(stats))
	for i, s := range stats {
		out[i] = s.Hour
	}
	return out
}

func recommendations(analysis *models.Analysis) []models.Recommendation {
	recs := []models.Recommendation{}

	if analysis.Reliability.Score < 75 {
		recs = append(recs, models.Recommendation{
			Priority: "high",
			Category: "reliability",
			Title:    "Low keep-alive reliability",
			Message:  "Check the battery optimization settings and make sure the app is whitelisted",
			Action:   "check_battery_optimization",
		})
	}

	if analysis.Reliability.GapCount > 5 {
		recs = append(recs, models.Recommendation{
			Priority: "medium",
			Category: "reliability",
			Title:    "Repeated heartbeat interruptions",
			Message:  fmt.Sprintf("Found %d long heartbeat gaps that may weaken keep-alive", analysis.Reliability.GapCount),
			Action:   "review_gaps",
		})
	}

	if analysis.Performance.Stability < 70 {
		recs = append(recs, models.Recommendation{
			Priority: "medium",
			Category: "performance",
			Title:    "Unstable heartbeat interval",
			Message:  "Heartbeat intervals vary widely; check system resource usage",
			Action:   "check_system_resources",
		})
	}

	for _, share := range analysis.Network.Distribution {
		if share.Type == constants.NetworkTypeWifi && share.FailureRate > 20 {
			recs = append(recs, models.Recommendation{
				Priority: "low",
				Category: "network",
				Title:    "High failure rate on WiFi",
				Message:  fmt.Sprintf("Heartbeat failure rate on WiFi is %.1f%%; check network stability", share.FailureRate),
				Action:   "check_wifi_stability",
			})
			break
		}
	}

	if analysis.Battery.LowBatteryCount > 0 {
		recs = append(recs, models.Recommendation{
			Priority: "low",
			Category: "battery",
			Title:    "Running on low battery",
			Message:  fmt.Sprintf("Detected %d heartbeats on low battery; review battery usage", analysis.Battery.LowBatteryCount),
			Action:   "optimize_battery_usage",
		})
	}

	for _, anomaly := range analysis.Anomalies {
		if anomaly.Severity != "high" {
			continue
		}
		recs = append(recs, models.Recommendation{
			Priority: "high",
			Category: "anomaly",
			Title:    "Severe anomaly detected",
			Message:  anomaly.Message,
			Action:   "investigate_anomaly",
		})
	}

	return recs
}
