package departments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/org"
)

// Creator creates LMS units.
type Creator interface {
	CreateUnit(ctx context.Context, req lms.CreateUnitRequest) (*lms.Unit, error)
}

// Resolver finds or creates the unit for a user's department.
type Resolver struct {
	creator Creator
	dryRun  bool

	mu       sync.Mutex
	planned  int
	created  []lms.Unit
	warnings []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDryRun plans creations without calling the LMS. Planned units get
// placeholder negative ids so later users in the same run resolve to them.
func WithDryRun(enabled bool) Option {
	return func(r *Resolver) {
		r.dryRun = enabled
	}
}

// NewResolver creates a Resolver creating units through creator.
func NewResolver(creator Creator, opts ...Option) *Resolver {
	r := &Resolver{creator: creator}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure returns the unit id of the user's department, creating the unit
// when neither its key nor an unclaimed unit of the same name is known. The division is resolved by
// name as the parent; an unknown division yields
// *errors.ParentNotFoundError. A user without a department resolves to
// NotFound with no error. Created units are added to index.
func (r *Resolver) Ensure(ctx context.Context, user *org.User, index *Index) (ID, error) {
	if user == nil || strings.TrimSpace(user.Department) == "" {
		return NotFound, nil
	}

	key := org.DepartmentKey(user.Mfld, user.Department)
	logger := logging.FromContext(ctx).With().Str("department", key).Logger()

	if id := Resolve(user, index); id.Found() {
		return id, nil
	}

	if m, ok := FindUnclaimed(index, user.Department, key); ok {
		r.reportDuplicates(ctx, user.Department, m)
		index.Alias(key, m.ID)
		logger.Debug().Int("unit_id", int(m.ID)).Msg("Department matched by name")
		return m.ID, nil
	}

	parent, ok := FindByName(index, user.Division)
	if !ok {
		return NotFound, errors.NewParentNotFoundError("department", key, user.Division)
	}
	r.reportDuplicates(ctx, user.Division, parent)
	parentID := int(parent.ID)

	req := lms.CreateUnitRequest{
		Name:     strings.TrimSpace(user.Department),
		ParentID: &parentID,
		Code:     key,
	}

	if r.dryRun {
		unit := r.plan(req)
		index.Add(unit)
		logger.Info().Int("parent_id", parentID).Msg("Would create department")
		return ID(unit.ID), nil
	}

	unit, err := r.creator.CreateUnit(ctx, req)
	if err != nil {
		return NotFound, err
	}
	if unit.Code == "" {
		unit.Code = key
	}
	index.Add(*unit)

	r.mu.Lock()
	r.created = append(r.created, *unit)
	r.mu.Unlock()

	logger.Info().Int("unit_id", unit.ID).Int("parent_id", parentID).Msg("Created department")
	return ID(unit.ID), nil
}

// Created returns the units created (or planned, in dry-run mode).
func (r *Resolver) Created() []lms.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lms.Unit(nil), r.created...)
}

// Warnings returns the data-quality warnings raised so far.
func (r *Resolver) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

func (r *Resolver) plan(req lms.CreateUnitRequest) lms.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planned++
	unit := lms.Unit{
		ID:       -1000 - r.planned,
		Name:     req.Name,
		Code:     req.Code,
		ParentID: req.ParentID,
	}
	r.created = append(r.created, unit)
	return unit
}

func (r *Resolver) reportDuplicates(ctx context.Context, name string, m Match) {
	if len(m.Duplicates) == 0 {
		return
	}
	msg := fmt.Sprintf("department name %q matches units %d and %v; using %d", name, m.ID, m.Duplicates, m.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.warnings {
		if w == msg {
			return
		}
	}
	r.warnings = append(r.warnings, msg)
	logging.FromContext(ctx).Warn().Str("name", name).Int("chosen", int(m.ID)).Msg("Duplicate department names")
}
