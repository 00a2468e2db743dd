package hierarchy

import (
	"fmt"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/org"
)

// Metric is a completion percentage ready to be recorded.
type Metric struct {
	Assigned int     `json:"assigned" yaml:"assigned"`
	Finished int     `json:"finished" yaml:"finished"`
	Value    float64 `json:"value" yaml:"value"`

	// Clamped is set when the raw percentage fell outside the measurement
	// range, which means the source counts are inconsistent.
	Clamped bool `json:"clamped,omitempty" yaml:"clamped,omitempty"`
}

// Value computes finished/assigned*100. A non-positive assigned count or a
// negative finished count is an InvalidMetricError.
func Value(assigned, finished int) (Metric, error) {
	if assigned <= 0 {
		return Metric{}, errors.NewInvalidMetricError(assigned, finished, "nobody is assigned to the course")
	}
	if finished < 0 {
		return Metric{}, errors.NewInvalidMetricError(assigned, finished, "finished count is negative")
	}

	m := Metric{
		Assigned: assigned,
		Finished: finished,
		Value:    float64(finished) / float64(assigned) * 100,
	}
	if m.Value > constants.MeasurementMaxValue {
		m.Value = constants.MeasurementMaxValue
		m.Clamped = true
	}
	return m, nil
}

// StatsValue computes the metric of a group's completion stats.
func StatsValue(stats org.CompletionStats) (Metric, error) {
	return Value(stats.Assigned, stats.Finished)
}

// Comment describes the counts behind a measurement value.
func (m Metric) Comment() string {
	return fmt.Sprintf("min: %d max(enrolled): %d completed: %d", constants.MeasurementMinValue, m.Assigned, m.Finished)
}
