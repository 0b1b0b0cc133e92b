package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/keepalive-agent/internal/models"
)

// GenerateReport analyzes logs and wraps the result in a report.
func (a *Analyzer) GenerateReport(logs []models.HeartbeatRecord) models.Report {
	analysis := a.Analyze(logs)
	return models.Report{
		GeneratedAt: a.opts.Now(),
		Summary: models.ReportSummary{
			TotalHeartbeats:  analysis.Overview.TotalCount,
			SuccessRate:      analysis.Overview.SuccessRate,
			ReliabilityScore: analysis.Reliability.Score,
			ReliabilityLevel: analysis.Reliability.Level,
			TimeSpan:         analysis.Overview.TimeSpan.Formatted,
		},
		Details:         analysis,
		Conclusion:      Conclude(analysis),
		Recommendations: analysis.Recommendations,
	}
}

// Conclude derives the verdict from the reliability score and lists the
// outstanding issues.
func Conclude(analysis *models.Analysis) models.Conclusion {
	score := analysis.Reliability.Score

	var level, text string
	switch {
	case score >= 90:
		level, text = LevelExcellent, "Keep-alive is excellent; the service runs reliably."
	case score >= 75:
		level, text = LevelGood, "Keep-alive is good; occasional issues but stable overall."
	case score >= 60:
		level, text = LevelFair, "Keep-alive is fair; some stability issues should be addressed."
	default:
		level, text = LevelPoor, "Keep-alive is poor; serious stability issues need attention now."
	}

	var issues []string
	if n := analysis.Reliability.GapCount; n > 0 {
		issues = append(issues, fmt.Sprintf("%d heartbeat interruptions", n))
	}
	if n := len(analysis.Anomalies); n > 0 {
		issues = append(issues, fmt.Sprintf("%d anomalies", n))
	}
	if rate := analysis.Overview.SuccessRate; rate < 90 {
		issues = append(issues, fmt.Sprintf("success rate %.1f%%", rate))
	}
	if len(issues) > 0 {
		text += " Found " + strings.Join(issues, ", ") + "."
	}

	return models.Conclusion{Level: level, Text: text, Score: score}
}

// FormatDuration renders d as "1h5m", "2m30s" or "45s", truncating to whole
// seconds.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
