package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/ir"
)

func rec(version string) Record {
	return Record{Version: version, Address: "EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF", Network: ir.Devnet}
}

func TestGroupSelector(t *testing.T) {
	assert.Equal(t, []Group{Regular}, SelectRegular.Groups())
	assert.Equal(t, []Group{Development}, SelectDevelopment.Groups())
	assert.Equal(t, []Group{Regular, Development}, SelectBoth.Groups())

	assert.True(t, SelectBoth.Includes(Development))
	assert.False(t, SelectRegular.Includes(Development))
	assert.Equal(t, "all", SelectBoth.String())
	assert.Equal(t, "devPrograms", Development.Key())
}

func TestManifestAccessors(t *testing.T) {
	m := New()
	m.Set(Regular, "b", rec("1.0.0"))
	m.Set(Regular, "a", rec("2.0.0"))
	m.Set(Development, "a", rec("3.0.0"))

	assert.Equal(t, []string{"a", "b"}, m.Names(Regular))
	assert.Equal(t, 3, m.Len())

	got, ok := m.Get(Development, "a")
	require.True(t, ok)
	assert.Equal(t, "3.0.0", got.Version)

	clone := m.Clone()
	clone.Set(Regular, "c", rec("1.0.0"))
	assert.Equal(t, 3, m.Len())
	assert.False(t, m.Equal(clone))

	assert.True(t, m.Delete(Regular, "b"))
	assert.False(t, m.Delete(Regular, "b"))
	assert.Equal(t, []string{"a"}, m.Names(Regular))
}

func TestManifestZeroValue(t *testing.T) {
	var m Manifest
	_, ok := m.Get(Regular, "x")
	assert.False(t, ok)

	m.Set(Development, "x", rec("1.0.0"))
	assert.Equal(t, 1, m.Len())
	assert.True(t, New().Equal(&Manifest{}))
}

func TestDiff(t *testing.T) {
	m := New()
	m.Set(Regular, "keep", rec("1.0.0"))
	m.Set(Regular, "bump", rec("1.0.0"))
	m.Set(Regular, "drop", rec("1.0.0"))
	m.Set(Development, "untouched", rec("1.0.0"))

	changes := m.Diff(map[Group]map[string]Record{
		Regular: {
			"keep": rec("1.0.0"),
			"bump": rec("1.1.0"),
			"new":  rec("0.1.0"),
		},
	})

	type summary struct {
		Kind ChangeKind
		Name string
	}
	var got []summary
	for _, c := range changes {
		assert.Equal(t, Regular, c.Group)
		got = append(got, summary{c.Kind, c.Name})
	}
	assert.Equal(t, []summary{
		{Updated, "bump"},
		{Removed, "drop"},
		{Unchanged, "keep"},
		{Added, "new"},
	}, got)
	assert.True(t, Changed(changes))

	m.Apply(changes)
	assert.Equal(t, []string{"bump", "keep", "new"}, m.Names(Regular))
	bumped, _ := m.Get(Regular, "bump")
	assert.Equal(t, "1.1.0", bumped.Version)
	assert.Equal(t, []string{"untouched"}, m.Names(Development))
}

func TestDiffNoChanges(t *testing.T) {
	m := New()
	m.Set(Regular, "a", rec("1.0.0"))

	changes := m.Diff(map[Group]map[string]Record{Regular: {"a": rec("1.0.0")}})
	require.Len(t, changes, 1)
	assert.Equal(t, Unchanged, changes[0].Kind)
	assert.False(t, Changed(changes))
}
