package hierarchy

import (
	"context"
	"strings"

	"github.com/agentstation/orgsync/internal/sources/reporting"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/org"
)

// Store is the part of the Reporting API the builder writes to.
type Store interface {
	CreateIndex(ctx context.Context, req reporting.IndexRequest) (*reporting.Index, error)
	CreateMeasurement(ctx context.Context, req reporting.MeasurementRequest) (*reporting.Measurement, error)
	CreateMeasurementValue(ctx context.Context, value reporting.MeasurementValue) (*reporting.MeasurementValue, error)
	ConnectMeasurement(ctx context.Context, indexID, measurementID int, percentage *float64) error
	ConnectIndex(ctx context.Context, parentID, childID int, percentage *float64) error
}

// Stats counts the writes made by a builder.
type Stats struct {
	IndicesCreated      int `json:"indices_created" yaml:"indices_created"`
	MeasurementsCreated int `json:"measurements_created" yaml:"measurements_created"`
	ValuesAppended      int `json:"values_appended" yaml:"values_appended"`
	LinksRepaired       int `json:"links_repaired" yaml:"links_repaired"`
}

func (s Stats) sub(o Stats) Stats {
	return Stats{
		IndicesCreated:      s.IndicesCreated - o.IndicesCreated,
		MeasurementsCreated: s.MeasurementsCreated - o.MeasurementsCreated,
		ValuesAppended:      s.ValuesAppended - o.ValuesAppended,
		LinksRepaired:       s.LinksRepaired - o.LinksRepaired,
	}
}

// Builder upserts hierarchy nodes against a snapshot. Every Ensure method
// looks the node up by code first and only writes on a miss, so running
// the same plan twice creates nothing new except measurement values.
type Builder struct {
	store    Store
	snapshot *Snapshot
	options  *options
	planned  int
	stats    Stats
}

// New creates a Builder. The store may be nil in dry-run mode.
func New(store Store, snapshot *Snapshot, opts ...Option) (*Builder, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if store == nil && !options.dryRun {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	if snapshot == nil {
		snapshot = NewSnapshot(nil, nil)
	}
	return &Builder{store: store, snapshot: snapshot, options: options}, nil
}

// Snapshot returns the snapshot the builder reads and extends.
func (b *Builder) Snapshot() *Snapshot {
	return b.snapshot
}

// Stats returns the writes made so far.
func (b *Builder) Stats() Stats {
	return b.stats
}

// placeholder returns a negative id for a node planned in dry-run mode.
func (b *Builder) placeholder() int {
	b.planned++
	return -b.planned
}

// EnsureIndex returns the index with req.Code, creating it on a miss.
func (b *Builder) EnsureIndex(ctx context.Context, req reporting.IndexRequest) (*reporting.Index, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, errors.NewValidationError("index_code", req.Code, "cannot be empty")
	}
	if index, ok := b.snapshot.Index(req.Code); ok {
		return index, nil
	}
	return b.createIndex(ctx, req)
}

func (b *Builder) createIndex(ctx context.Context, req reporting.IndexRequest) (*reporting.Index, error) {
	var index *reporting.Index
	if b.options.dryRun {
		index = &reporting.Index{
			ID:                     b.placeholder(),
			Code:                   req.Code,
			Name:                   req.Name,
			Description:            req.Description,
			ParentIndexConnections: req.ParentIndexConnections,
		}
	} else {
		created, err := b.store.CreateIndex(ctx, req)
		if err != nil {
			return nil, err
		}
		index = created
	}

	b.snapshot.putIndex(index)
	b.stats.IndicesCreated++
	logging.FromContext(ctx).Debug().
		Str("index_code", index.Code).
		Int("id", index.ID).
		Bool("dry_run", b.options.dryRun).
		Msg("Ensured index")
	return index, nil
}

// EnsureCompanyIndex returns the index of company under the course index
// parent. A missing index is created with an unweighted link to parent; an
// existing index that lost the link is reconnected.
func (b *Builder) EnsureCompanyIndex(ctx context.Context, parent *reporting.Index, company org.Company) (*reporting.Index, error) {
	code := companyCode(parentCode(parent), company.Mfld)
	if parent == nil {
		return nil, errors.NewParentNotFoundError("index", code, "course index")
	}

	if index, ok := b.snapshot.Index(code); ok {
		if !index.HasParent(parent.ID) {
			if err := b.connectIndex(ctx, parent, index, nil); err != nil {
				return nil, err
			}
		}
		return index, nil
	}

	return b.createIndex(ctx, reporting.IndexRequest{
		Code:        code,
		Name:        company.DisplayName(),
		Description: parent.Name,
		ParentIndexConnections: []reporting.ParentIndexConnection{
			{ParentIndexID: parent.ID},
		},
	})
}

// MeasurementSpec describes the measurement of one department.
type MeasurementSpec struct {
	Code        string
	Name        string
	Description string

	// Parent is the index the measurement rolls up into.
	Parent *reporting.Index

	// DepartmentID is the optional Reporting department.
	DepartmentID *int

	Metric Metric

	// Course labels value events.
	Course string
}

// MeasurementResult is the outcome of EnsureMeasurement.
type MeasurementResult struct {
	Measurement *reporting.Measurement
	Value       ValueEvent
	Created     bool
	Relinked    bool
}

// EnsureMeasurement records spec.Metric on the measurement with spec.Code.
// A missing measurement is created with the value as its first entry. An
// existing one gets a new value appended, and its link to the parent index
// is restored when missing.
func (b *Builder) EnsureMeasurement(ctx context.Context, spec MeasurementSpec) (*MeasurementResult, error) {
	if strings.TrimSpace(spec.Code) == "" {
		return nil, errors.NewValidationError("measurement_code", spec.Code, "cannot be empty")
	}
	if spec.Parent == nil {
		return nil, errors.NewParentNotFoundError("measurement", spec.Code, "company index")
	}

	value := reporting.MeasurementValue{
		Date:    b.options.now().Format(constants.MeasurementDateLayout),
		Value:   spec.Metric.Value,
		Comment: spec.Metric.Comment(),
	}
	result := &MeasurementResult{}

	m, ok := b.snapshot.Measurement(spec.Code)
	if ok {
		if !m.LinkedTo(spec.Parent.ID) {
			if err := b.connectMeasurement(ctx, spec.Parent, m, nil); err != nil {
				return nil, err
			}
			result.Relinked = true
		}
		value.MeasurementID = m.ID
		if !b.options.dryRun {
			if _, err := b.store.CreateMeasurementValue(ctx, value); err != nil {
				return nil, err
			}
		}
	} else {
		created, err := b.createMeasurement(ctx, spec, value)
		if err != nil {
			return nil, err
		}
		m = created
		value.MeasurementID = m.ID
		result.Created = true
	}

	b.stats.ValuesAppended++
	result.Measurement = m
	result.Value = ValueEvent{
		Course:        spec.Course,
		Code:          spec.Code,
		MeasurementID: m.ID,
		Date:          value.Date,
		Metric:        spec.Metric,
		Created:       result.Created,
		DryRun:        b.options.dryRun,
	}

	logging.FromContext(ctx).Info().
		Str("measurement_code", spec.Code).
		Float64("value", spec.Metric.Value).
		Bool("created", result.Created).
		Bool("dry_run", b.options.dryRun).
		Msg("Recorded measurement value")

	for _, observe := range b.options.observers {
		observe(ctx, result.Value)
	}
	return result, nil
}

func (b *Builder) createMeasurement(ctx context.Context, spec MeasurementSpec, value reporting.MeasurementValue) (*reporting.Measurement, error) {
	req := reporting.MeasurementRequest{
		Code:         spec.Code,
		Name:         spec.Name,
		Description:  spec.Description,
		MinValue:     constants.MeasurementMinValue,
		MaxValue:     constants.MeasurementMaxValue,
		DepartmentID: spec.DepartmentID,
		IndexConnections: []reporting.IndexConnection{
			{IndexID: spec.Parent.ID},
		},
		MeasurementValues: []reporting.MeasurementValue{value},
	}

	var m *reporting.Measurement
	if b.options.dryRun {
		m = &reporting.Measurement{
			ID:               b.placeholder(),
			Code:             req.Code,
			Name:             req.Name,
			MinValue:         req.MinValue,
			MaxValue:         req.MaxValue,
			DepartmentID:     req.DepartmentID,
			IndexConnections: req.IndexConnections,
		}
	} else {
		created, err := b.store.CreateMeasurement(ctx, req)
		if err != nil {
			return nil, err
		}
		m = created
	}

	b.snapshot.putMeasurement(m)
	b.stats.MeasurementsCreated++
	return m, nil
}

// Member is a weighted node of a combination index. A nil Percentage
// weights all members equally.
type Member struct {
	Code       string   `json:"code" yaml:"code"`
	Percentage *float64 `json:"percentage,omitempty" yaml:"percentage,omitempty"`
}

// EnsureCombinationIndex returns the index with req.Code combining the
// measurements named by members. The index is created with its
// connections on a miss; otherwise any missing connection is added.
func (b *Builder) EnsureCombinationIndex(ctx context.Context, req reporting.IndexRequest, members []Member) (*reporting.Index, error) {
	measurements := make([]*reporting.Measurement, len(members))
	for i, member := range members {
		m, ok := b.snapshot.Measurement(member.Code)
		if !ok {
			return nil, errors.NewNotFoundError("measurement", member.Code)
		}
		measurements[i] = m
	}

	if index, ok := b.snapshot.Index(req.Code); ok {
		for i, m := range measurements {
			if m.LinkedTo(index.ID) {
				continue
			}
			if err := b.connectMeasurement(ctx, index, m, members[i].Percentage); err != nil {
				return nil, err
			}
		}
		return index, nil
	}

	req.MeasurementConnections = make([]reporting.MeasurementConnection, len(members))
	for i, m := range measurements {
		req.MeasurementConnections[i] = reporting.MeasurementConnection{MeasurementID: m.ID, Percentage: members[i].Percentage}
	}
	index, err := b.EnsureIndex(ctx, req)
	if err != nil {
		return nil, err
	}
	for i, m := range measurements {
		m.IndexConnections = append(m.IndexConnections, reporting.IndexConnection{IndexID: index.ID, Percentage: members[i].Percentage})
	}
	return index, nil
}

// EnsureCombinationIndexIndex returns the index with req.Code combining the
// child indices named by children, adding any missing connection.
func (b *Builder) EnsureCombinationIndexIndex(ctx context.Context, req reporting.IndexRequest, children []Member) (*reporting.Index, error) {
	indices := make([]*reporting.Index, len(children))
	for i, child := range children {
		index, ok := b.snapshot.Index(child.Code)
		if !ok {
			return nil, errors.NewNotFoundError("index", child.Code)
		}
		indices[i] = index
	}

	if index, ok := b.snapshot.Index(req.Code); ok {
		for i, child := range indices {
			if child.HasParent(index.ID) {
				continue
			}
			if err := b.connectIndex(ctx, index, child, children[i].Percentage); err != nil {
				return nil, err
			}
		}
		return index, nil
	}

	req.ChildIndexConnections = make([]reporting.ChildIndexConnection, len(children))
	for i, child := range indices {
		req.ChildIndexConnections[i] = reporting.ChildIndexConnection{ChildIndexID: child.ID, Percentage: children[i].Percentage}
	}
	index, err := b.EnsureIndex(ctx, req)
	if err != nil {
		return nil, err
	}
	for i, child := range indices {
		child.ParentIndexConnections = append(child.ParentIndexConnections, reporting.ParentIndexConnection{ParentIndexID: index.ID, Percentage: children[i].Percentage})
	}
	return index, nil
}

func (b *Builder) connectMeasurement(ctx context.Context, index *reporting.Index, m *reporting.Measurement, percentage *float64) error {
	if !b.options.dryRun {
		if err := b.store.ConnectMeasurement(ctx, index.ID, m.ID, percentage); err != nil {
			return err
		}
	}
	m.IndexConnections = append(m.IndexConnections, reporting.IndexConnection{IndexID: index.ID, Percentage: percentage})
	b.stats.LinksRepaired++
	logging.FromContext(ctx).Warn().
		Str("measurement_code", m.Code).
		Str("index_code", index.Code).
		Msg("Connected measurement to index")
	return nil
}

func (b *Builder) connectIndex(ctx context.Context, parent, child *reporting.Index, percentage *float64) error {
	if !b.options.dryRun {
		if err := b.store.ConnectIndex(ctx, parent.ID, child.ID, percentage); err != nil {
			return err
		}
	}
	child.ParentIndexConnections = append(child.ParentIndexConnections, reporting.ParentIndexConnection{ParentIndexID: parent.ID, Percentage: percentage})
	b.stats.LinksRepaired++
	logging.FromContext(ctx).Warn().
		Str("index_code", child.Code).
		Str("parent_code", parent.Code).
		Msg("Connected index to parent")
	return nil
}

func parentCode(parent *reporting.Index) string {
	if parent == nil {
		return ""
	}
	return parent.Code
}
