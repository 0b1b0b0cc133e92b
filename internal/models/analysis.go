package models

import "time"

// Analysis is the full derived view of a heartbeat log.
type Analysis struct {
	Overview        Overview         `json:"overview"`
	Reliability     Reliability      `json:"reliability"`
	Performance     Performance      `json:"performance"`
	Network         NetworkAnalysis  `json:"network"`
	Battery         BatteryAnalysis  `json:"battery"`
	Anomalies       []Anomaly        `json:"anomalies"`
	Trends          Trends           `json:"trends"`
	Recommendations []Recommendation `json:"recommendations"`
}

// TimeSpan is an elapsed duration with a broken-down form.
type TimeSpan struct {
	Milliseconds int64  `json:"milliseconds"`
	Hours        int64  `json:"hours"`
	Minutes      int64  `json:"minutes"`
	Formatted    string `json:"formatted"`
}

type Overview struct {
	TotalCount     int       `json:"totalCount"`
	SuccessCount   int       `json:"successCount"`
	FailureCount   int       `json:"failureCount"`
	SuccessRate    float64   `json:"successRate"` // percent, one decimal
	TimeSpan       TimeSpan  `json:"timeSpan"`
	FirstHeartbeat time.Time `json:"firstHeartbeat"`
	LastHeartbeat  time.Time `json:"lastHeartbeat"`
}

// Gap is an inter-heartbeat delta larger than expected.
type Gap struct {
	StartTime         time.Time     `json:"startTime"`
	EndTime           time.Time     `json:"endTime"`
	Duration          time.Duration `json:"duration"`
	DurationFormatted string        `json:"durationFormatted"`
}

type Reliability struct {
	Score           float64       `json:"score"`
	Level           string        `json:"level"`
	MaxGap          time.Duration `json:"maxGap"`
	MaxGapFormatted string        `json:"maxGapFormatted"`
	AvgGap          time.Duration `json:"avgGap"`
	AvgGapFormatted string        `json:"avgGapFormatted"`
	GapCount        int           `json:"gapCount"`
	LargeGaps       []Gap         `json:"largeGaps"`
}

type Performance struct {
	AvgInterval          time.Duration `json:"avgInterval"`
	AvgIntervalFormatted string        `json:"avgIntervalFormatted"`
	MinInterval          time.Duration `json:"minInterval"`
	MinIntervalFormatted string        `json:"minIntervalFormatted"`
	MaxInterval          time.Duration `json:"maxInterval"`
	MaxIntervalFormatted string        `json:"maxIntervalFormatted"`
	Stability            float64       `json:"stability"`
	StabilityLevel       string        `json:"stabilityLevel"`
	StdDev               time.Duration `json:"stdDev"`
}

// NetworkShare is the per-network-type slice of the log.
type NetworkShare struct {
	Type         string  `json:"type"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	FailureCount int     `json:"failureCount"`
	FailureRate  float64 `json:"failureRate"`
}

type NetworkAnalysis struct {
	Distribution []NetworkShare `json:"distribution"`
	MostCommon   string         `json:"mostCommon"`
	TotalTypes   int            `json:"totalTypes"`
}

type BatteryAnalysis struct {
	AvgLevel             float64 `json:"avgLevel"`
	MinLevel             int     `json:"minLevel"`
	MaxLevel             int     `json:"maxLevel"`
	Trend                string  `json:"trend"`
	BatteryChange        int     `json:"batteryChange"`
	LowBatteryCount      int     `json:"lowBatteryCount"`
	LowBatteryPercentage float64 `json:"lowBatteryPercentage"`
}

// Anomaly is a finding of one of the anomaly detectors.
type Anomaly struct {
	Type              string        `json:"type"`
	Severity          string        `json:"severity"`
	Count             int           `json:"count,omitempty"`
	Duration          time.Duration `json:"duration,omitempty"`
	DurationFormatted string        `json:"durationFormatted,omitempty"`
	StartTime         time.Time     `json:"startTime,omitempty"`
	EndTime           time.Time     `json:"endTime,omitempty"`
	Message           string        `json:"message"`
}

// HourlyStats aggregates the records of one hour of the day.
type HourlyStats struct {
	Hour        int     `json:"hour"`
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failure     int     `json:"failure"`
	SuccessRate float64 `json:"successRate"`
}

type Trends struct {
	Available       bool          `json:"available"`
	Message         string        `json:"message,omitempty"`
	HourlyData      []HourlyStats `json:"hourlyData,omitempty"`
	MostActiveHour  *HourlyStats  `json:"mostActiveHour,omitempty"`
	LeastActiveHour *HourlyStats  `json:"leastActiveHour,omitempty"`
	PeakHours       []int         `json:"peakHours,omitempty"`
	LowHours        []int         `json:"lowHours,omitempty"`
}

type Recommendation struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// Conclusion is the qualitative verdict of a report.
type Conclusion struct {
	Level string  `json:"level"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// ReportSummary is the headline numbers of a report.
type ReportSummary struct {
	TotalHeartbeats  int     `json:"totalHeartbeats"`
	SuccessRate      float64 `json:"successRate"`
	ReliabilityScore float64 `json:"reliabilityScore"`
	ReliabilityLevel string  `json:"reliabilityLevel"`
	TimeSpan         string  `json:"timeSpan"`
}

// Report is the human-readable keep-alive effectiveness report.
type Report struct {
	GeneratedAt     time.Time        `json:"generatedAt"`
	Summary         ReportSummary    `json:"summary"`
	Details         *Analysis        `json:"details"`
	Conclusion      Conclusion       `json:"conclusion"`
	Recommendations []Recommendation `json:"recommendations"`
}
