package hierarchy

import (
	"github.com/agentstation/orgsync/internal/sources/reporting"
)

// Snapshot indexes the Reporting indices and measurements of one run by
// code. Nodes created during the run are added so a second lookup of the
// same code never creates it twice.
type Snapshot struct {
	indices      map[string]*reporting.Index
	measurements map[string]*reporting.Measurement
}

// NewSnapshot builds a snapshot. When two nodes share a code the first one
// listed wins.
func NewSnapshot(indices []reporting.Index, measurements []reporting.Measurement) *Snapshot {
	s := &Snapshot{
		indices:      make(map[string]*reporting.Index, len(indices)),
		measurements: make(map[string]*reporting.Measurement, len(measurements)),
	}
	for i := range indices {
		if _, exists := s.indices[indices[i].Code]; !exists && indices[i].Code != "" {
			s.indices[indices[i].Code] = &indices[i]
		}
	}
	for i := range measurements {
		if _, exists := s.measurements[measurements[i].Code]; !exists && measurements[i].Code != "" {
			s.measurements[measurements[i].Code] = &measurements[i]
		}
	}
	return s
}

// Index returns the index with code.
func (s *Snapshot) Index(code string) (*reporting.Index, bool) {
	index, ok := s.indices[code]
	return index, ok
}

// Measurement returns the measurement with code.
func (s *Snapshot) Measurement(code string) (*reporting.Measurement, bool) {
	m, ok := s.measurements[code]
	return m, ok
}

// Indices returns the number of indices.
func (s *Snapshot) Indices() int {
	return len(s.indices)
}

// Measurements returns the number of measurements.
func (s *Snapshot) Measurements() int {
	return len(s.measurements)
}

func (s *Snapshot) putIndex(index *reporting.Index) {
	s.indices[index.Code] = index
}

func (s *Snapshot) putMeasurement(m *reporting.Measurement) {
	s.measurements[m.Code] = m
}
