package manifest

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/solpm/internal/ir"
)

// Group is one of the two dependency groups.
type Group int

const (
	Regular Group = iota
	Development
)

// Groups lists both groups in output order.
var Groups = []Group{Regular, Development}

func (g Group) String() string {
	switch g {
	case Regular:
		return "regular"
	case Development:
		return "development"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// Key returns the document key of the group.
func (g Group) Key() string {
	if g == Development {
		return "devPrograms"
	}
	return "programs"
}

// GroupSelector picks the groups an operation applies to.
type GroupSelector int

const (
	SelectRegular GroupSelector = iota
	SelectDevelopment
	SelectBoth
)

// Groups returns the selected groups in output order.
func (s GroupSelector) Groups() []Group {
	switch s {
	case SelectRegular:
		return []Group{Regular}
	case SelectDevelopment:
		return []Group{Development}
	default:
		return Groups
	}
}

// Includes reports whether g is selected.
func (s GroupSelector) Includes(g Group) bool {
	return slices.Contains(s.Groups(), g)
}

func (s GroupSelector) String() string {
	switch s {
	case SelectRegular:
		return "regular"
	case SelectDevelopment:
		return "development"
	case SelectBoth:
		return "all"
	default:
		return fmt.Sprintf("GroupSelector(%d)", int(s))
	}
}

// Record is one dependency entry.
type Record struct {
	Version string     `json:"version" yaml:"version"`
	Address string     `json:"program_id" yaml:"program_id"`
	Network ir.Network `json:"network" yaml:"network"`
	// DocumentPath is where the interface document is cached, relative to
	// the project root. Empty means the default location.
	DocumentPath string `json:"idl_path,omitempty" yaml:"idl_path,omitempty"`
}

// Manifest is the in-memory dependency manifest.
type Manifest struct {
	Regular     map[string]Record
	Development map[string]Record
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{
		Regular:     make(map[string]Record),
		Development: make(map[string]Record),
	}
}

// Group returns the records of g, allocating the map if needed.
func (m *Manifest) Group(g Group) map[string]Record {
	if g == Development {
		if m.Development == nil {
			m.Development = make(map[string]Record)
		}
		return m.Development
	}
	if m.Regular == nil {
		m.Regular = make(map[string]Record)
	}
	return m.Regular
}

// Get returns the record of name in g.
func (m *Manifest) Get(g Group, name string) (Record, bool) {
	rec, ok := m.Group(g)[name]
	return rec, ok
}

// Set stores rec under name in g.
func (m *Manifest) Set(g Group, name string, rec Record) {
	m.Group(g)[name] = rec
}

// Delete removes name from g and reports whether it was present.
func (m *Manifest) Delete(g Group, name string) bool {
	group := m.Group(g)
	if _, ok := group[name]; !ok {
		return false
	}
	delete(group, name)
	return true
}

// Names returns the dependency names of g in sorted order.
func (m *Manifest) Names(g Group) []string {
	return slices.Sorted(maps.Keys(m.Group(g)))
}

// Len returns the number of records in both groups.
func (m *Manifest) Len() int {
	return len(m.Regular) + len(m.Development)
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	return &Manifest{
		Regular:     maps.Clone(m.Group(Regular)),
		Development: maps.Clone(m.Group(Development)),
	}
}

// Equal reports whether both manifests hold the same records.
func (m *Manifest) Equal(other *Manifest) bool {
	return maps.Equal(m.Group(Regular), other.Group(Regular)) &&
		maps.Equal(m.Group(Development), other.Group(Development))
}

// ChangeKind classifies one entry of a diff.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is the difference for one dependency.
type Change struct {
	Kind  ChangeKind
	Group Group
	Name  string
	Old   Record // zero for Added
	New   Record // zero for Removed
}

// Diff compares m with the target records. Only groups present in target
// are compared; a name missing from a target group is Removed. Changes are
// ordered by group, then name.
func (m *Manifest) Diff(target map[Group]map[string]Record) []Change {
	var changes []Change
	for _, g := range Groups {
		want, ok := target[g]
		if !ok {
			continue
		}
		have := m.Group(g)
		names := slices.Sorted(maps.Keys(want))
		for name := range have {
			if _, ok := want[name]; !ok {
				names = append(names, name)
			}
		}
		slices.Sort(names)

		for _, name := range names {
			old, had := have[name]
			rec, keep := want[name]
			switch {
			case !keep:
				changes = append(changes, Change{Kind: Removed, Group: g, Name: name, Old: old})
			case !had:
				changes = append(changes, Change{Kind: Added, Group: g, Name: name, New: rec})
			case old == rec:
				changes = append(changes, Change{Kind: Unchanged, Group: g, Name: name, Old: old, New: rec})
			default:
				changes = append(changes, Change{Kind: Updated, Group: g, Name: name, Old: old, New: rec})
			}
		}
	}
	return changes
}

// Apply applies changes to m.
func (m *Manifest) Apply(changes []Change) {
	for _, c := range changes {
		switch c.Kind {
		case Added, Updated:
			m.Set(c.Group, c.Name, c.New)
		case Removed:
			m.Delete(c.Group, c.Name)
		}
	}
}

// Changed reports whether any change modifies the manifest.
func Changed(changes []Change) bool {
	for _, c := range changes {
		if c.Kind != Unchanged {
			return true
		}
	}
	return false
}
