package models

import "time"

// MetricPoint is a single KPI sample returned by the data gateway.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeries is the ordered sample set for one area/metric pair.
type TimeSeries struct {
	Area   string        `json:"area"`
	Metric string        `json:"metric"`
	Unit   string        `json:"unit,omitempty"`
	Points []MetricPoint `json:"points"`
}

// Latest returns the most recent sample, or false when the series is empty.
func (s TimeSeries) Latest() (MetricPoint, bool) {
	if len(s.Points) == 0 {
		return MetricPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}
