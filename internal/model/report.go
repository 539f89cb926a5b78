package model

// Aggregates holds the headline counts over a filtered table
type Aggregates struct {
	TotalRows int     `json:"total_rows"`
	Accidents float64 `json:"accidents"` // Weighted by the value column when present
	Incidents float64 `json:"incidents"`
}

// Report is the structured per-row tuple sent to severity ranking
type Report struct {
	Where    string  `json:"where"`
	What     string  `json:"what"`
	Category *string `json:"category"` // Lower-cased; nil when missing
}

// RankedReport is a Report with an AI-assessed severity (1-10)
type RankedReport struct {
	Report
	Severity int `json:"severity"`
}

// AggregateResult is everything the aggregator derives from one view
type AggregateResult struct {
	Aggregates     Aggregates     `json:"aggregates"`
	LocationCounts map[string]int `json:"location_counts"`
	Descriptions   []string       `json:"descriptions"`
	Reports        []Report       `json:"accident_reports"`
}

// HeatmapEntry is the per-location view over ranked reports
type HeatmapEntry struct {
	Location    string  `json:"location"`
	Count       int     `json:"count"`
	AvgSeverity float64 `json:"avg_severity"`
}
