// Package departments maps HR departments onto LMS organizational units,
// creating units that do not exist yet.
package departments

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/agentstation/orgsync/internal/sources/lms"
	"github.com/agentstation/orgsync/pkg/org"
)

// ID is an LMS unit id.
type ID int

// NotFound is returned by Resolve when no unit matches.
const NotFound ID = -1

// Found reports whether id refers to a unit.
func (id ID) Found() bool {
	return id != NotFound
}

// Index is the in-memory snapshot of LMS units for one run, keyed by unit
// code.
type Index struct {
	byCode map[string]lms.Unit
	units  []lms.Unit // ascending by id
}

// NewIndex builds an index from the LMS unit list. When two units share a
// code the one with the lowest id is kept.
func NewIndex(units []lms.Unit) *Index {
	idx := &Index{byCode: make(map[string]lms.Unit, len(units))}
	sorted := append([]lms.Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, u := range sorted {
		idx.Add(u)
	}
	return idx
}

// Add inserts a unit. An existing unit with the same code is kept.
func (i *Index) Add(u lms.Unit) {
	code := strings.TrimSpace(u.Code)
	if code != "" {
		if _, exists := i.byCode[code]; !exists {
			i.byCode[code] = u
		}
	}
	pos := sort.Search(len(i.units), func(k int) bool { return i.units[k].ID >= u.ID })
	i.units = append(i.units, lms.Unit{})
	copy(i.units[pos+1:], i.units[pos:])
	i.units[pos] = u
}

// Alias maps code to the unit with id, so a unit matched by name resolves
// by key for the rest of the run. An existing code is kept. It reports
// whether the alias was added.
func (i *Index) Alias(code string, id ID) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if _, exists := i.byCode[code]; exists {
		return false
	}
	pos := sort.Search(len(i.units), func(k int) bool { return i.units[k].ID >= int(id) })
	if pos == len(i.units) || i.units[pos].ID != int(id) {
		return false
	}
	i.byCode[code] = i.units[pos]
	return true
}

// Lookup returns the unit with code.
func (i *Index) Lookup(code string) (lms.Unit, bool) {
	u, ok := i.byCode[strings.TrimSpace(code)]
	return u, ok
}

// Units returns the units ordered by id.
func (i *Index) Units() []lms.Unit {
	return append([]lms.Unit(nil), i.units...)
}

// Len returns the number of units.
func (i *Index) Len() int {
	return len(i.units)
}

// Resolve returns the unit id for the user's "{mfld}-{department}" key, or
// NotFound. A miss is never an error; callers decide whether to create.
func Resolve(user *org.User, index *Index) ID {
	if user == nil || strings.TrimSpace(user.Department) == "" {
		return NotFound
	}
	if u, ok := index.Lookup(org.DepartmentKey(user.Mfld, user.Department)); ok {
		return ID(u.ID)
	}
	return NotFound
}

// Match is the result of a name lookup.
type Match struct {
	ID   ID
	Name string

	// Duplicates lists the ids of other units with the same name. A
	// non-empty list is a data-quality problem worth reporting.
	Duplicates []ID
}

// FindByName scans the index for a unit whose case-folded, trimmed name
// equals name. The unit with the lowest id wins.
func FindByName(index *Index, name string) (Match, bool) {
	return findByName(index, name, nil)
}

// FindUnclaimed is FindByName restricted to units that carry no code or
// carry key itself. A unit whose code names another "{mfld}-{department}"
// key belongs to that company and never matches.
func FindUnclaimed(index *Index, name, key string) (Match, bool) {
	key = strings.TrimSpace(key)
	return findByName(index, name, func(u lms.Unit) bool {
		code := strings.TrimSpace(u.Code)
		return code == "" || code == key
	})
}

func findByName(index *Index, name string, accept func(lms.Unit) bool) (Match, bool) {
	want := fold(name)
	if want == "" {
		return Match{}, false
	}

	var m Match
	found := false
	for _, u := range index.units {
		if fold(u.Name) != want || (accept != nil && !accept(u)) {
			continue
		}
		if !found {
			m = Match{ID: ID(u.ID), Name: u.Name}
			found = true
			continue
		}
		m.Duplicates = append(m.Duplicates, ID(u.ID))
	}
	return m, found
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
