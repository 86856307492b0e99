package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, name string) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), name))
}

func TestLoadMissing(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := s.LoadOrNew()
	require.NoError(t, err)
	assert.Zero(t, m.Len())
}

func TestLoadCorrupt(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"programs": [1, 2]}`), 0o644))

	_, err := s.Load()
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, CorruptDocument, merr.Kind)
	assert.Equal(t, s.Path(), merr.Path)
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"SolanaPrograms.json", "SolanaPrograms.yaml"} {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, name)
			require.NoError(t, s.Save(sampleManifest()))

			m, err := s.Load()
			require.NoError(t, err)
			assert.True(t, sampleManifest().Equal(m))

			info, err := os.Stat(s.Path())
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
		})
	}
}

func TestSaveEqualManifestLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")

	// Same records, different formatting from the canonical encoding.
	handWritten := `{"devPrograms":{"counter":{"network":"localnet","program_id":"EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF","version":"0.3.0","idl_path":"program/idl/counter.json"}},
"programs":{"vault":{"version":"1.2.3","program_id":"EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF","network":"mainnet-beta"},
"feedana":{"version":"0.1.0","program_id":"GYVb4hWw8D22pkScWSZZB1QjT7jmuFkPCR1a9DCe1GjY","network":"devnet","idl_path":"program/idl/feedana.json"}}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(handWritten), 0o644))
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(s.Path(), old, old))

	m, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(m))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, handWritten, string(data))
	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
}

func TestSaveFailureBeforeRenameKeepsOriginal(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")
	original := New()
	original.Set(Regular, "vault", rec("1.0.0"))
	require.NoError(t, s.Save(original))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	crash := errors.New("simulated crash")
	var tmpSeen string
	s.beforeRename = func(tmp string) error {
		tmpSeen = tmp
		return crash
	}

	err = s.Save(sampleManifest())
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, IoError, merr.Kind)
	assert.ErrorIs(t, err, crash)

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	assert.NotEmpty(t, tmpSeen)
	assert.NoFileExists(t, tmpSeen)
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestUpdateFailureWritesNothing(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(m *Manifest) error {
		m.Set(Regular, "vault", rec("1.0.0"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, s.Path())
}

func TestUpdateRefusesCorruptManifest(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.json")
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	err := s.Upsert(context.Background(), Regular, "vault", rec("1.0.0"))
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, CorruptDocument, merr.Kind)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestConcurrentUpserts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SolanaPrograms.json")
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate stores so only the file lock serializes them.
			s := NewStore(path)
			errs <- s.Upsert(ctx, Regular, fmt.Sprintf("program%02d", i), rec("1.0.0"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	m, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Len(t, m.Names(Regular), writers)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, "SolanaPrograms.yaml")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Development, "counter", rec("1.0.0")))
	require.NoError(t, s.Upsert(ctx, Regular, "vault", rec("1.0.0")))
	require.NoError(t, s.Remove(ctx, Development, "counter"))
	require.NoError(t, s.Remove(ctx, Development, "missing"))

	m, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, m.Names(Development))
	assert.Equal(t, []string{"vault"}, m.Names(Regular))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program", "idl", "vault.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomicSyncsDirectoryAfterRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SolanaPrograms.json")

	var synced []string
	orig := syncDir
	syncDir = func(dir string) error {
		_, err := os.Stat(path)
		require.NoError(t, err, "directory synced before rename")
		synced = append(synced, dir)
		return orig(dir)
	}
	t.Cleanup(func() { syncDir = orig })

	require.NoError(t, WriteFileAtomic(path, []byte("{}")))
	assert.Equal(t, []string{filepath.Dir(path)}, synced)

	syncDir = func(string) error { return errors.New("disk gone") }
	err := WriteFileAtomic(path, []byte("[]"))
	assert.ErrorContains(t, err, "disk gone")
}
