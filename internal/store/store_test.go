package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "image_properties.json"))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		validate func(t *testing.T, records Records)
	}{
		{
			name:    "missing file returns empty and creates it",
			content: nil,
			validate: func(t *testing.T, records Records) {
				assert.Empty(t, records)
			},
		},
		{
			name:    "corrupt file returns empty",
			content: strPtr("{not json"),
			validate: func(t *testing.T, records Records) {
				assert.Empty(t, records)
			},
		},
		{
			name:    "empty file returns empty",
			content: strPtr(""),
			validate: func(t *testing.T, records Records) {
				assert.Empty(t, records)
			},
		},
		{
			name:    "missing keys are back-filled",
			content: strPtr(`{"/img/a.png": {"pinned": true}}`),
			validate: func(t *testing.T, records Records) {
				require.Contains(t, records, "/img/a.png")
				rec := records["/img/a.png"]
				assert.True(t, rec.Pinned)
				assert.True(t, rec.AttemptDownload)
				assert.False(t, rec.Hidden)
				assert.False(t, rec.IsSet)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(s.Path(), []byte(*tt.content), 0644))
			}

			records, err := s.Load()
			require.NoError(t, err)
			require.NotNil(t, records)
			tt.validate(t, records)

			_, err = os.Stat(s.Path())
			assert.NoError(t, err)
		})
	}
}

func TestLoad_NoPath(t *testing.T) {
	s := New("")
	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not set")
}

func TestUpdate_PartialMerge(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{Pinned: Bool(true)})
	require.NoError(t, err)
	rec, err := s.Update("/img/a.png", Fields{Hidden: Bool(true)})
	require.NoError(t, err)

	assert.True(t, rec.Pinned)
	assert.True(t, rec.Hidden)
	assert.True(t, rec.AttemptDownload)

	records, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Record{Hidden: true, Pinned: true, AttemptDownload: true}, records["/img/a.png"])
}

func TestUpdate_CreatesWithDefaults(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Update("/img/new.png", Fields{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRecord(), rec)
}

func TestUpdate_DoesNotShareDefaults(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{Pinned: Bool(true)})
	require.NoError(t, err)
	_, err = s.Update("/img/b.png", Fields{})
	require.NoError(t, err)

	records, err := s.Load()
	require.NoError(t, err)
	assert.True(t, records["/img/a.png"].Pinned)
	assert.False(t, records["/img/b.png"].Pinned)
}

func TestSavedFormat(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{Pinned: Bool(true)})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n        \"attempt_download\": true")

	var raw map[string]map[string]bool
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]bool{
		"hidden":           false,
		"pinned":           true,
		"attempt_download": true,
		"is_set":           false,
	}, raw["/img/a.png"])
}

func TestMarkCurrent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.MarkCurrent("/img/a.png"))
	require.NoError(t, s.MarkCurrent("/img/b.png"))

	records, err := s.Load()
	require.NoError(t, err)
	assert.False(t, records["/img/a.png"].IsSet)
	assert.True(t, records["/img/b.png"].IsSet)

	current, ok, err := s.Current()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/img/b.png", current)
}

func TestMarkCurrent_AtMostOne(t *testing.T) {
	s := newTestStore(t)

	// A hand-edited file with two holders is repaired on the next set.
	content := `{"/img/a.png": {"is_set": true}, "/img/b.png": {"is_set": true}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))

	sequence := []string{"/img/c.png", "/img/a.png", "/img/a.png", "/img/d.png", "/img/b.png"}
	for _, p := range sequence {
		require.NoError(t, s.MarkCurrent(p))

		records, err := s.Load()
		require.NoError(t, err)
		assert.Len(t, records.Match(Fields{IsSet: Bool(true)}), 1)
		assert.True(t, records[p].IsSet)
	}
}

func TestMarkCurrent_KeepsOtherFlags(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{Pinned: Bool(true)})
	require.NoError(t, err)
	require.NoError(t, s.MarkCurrent("/img/a.png"))

	records, err := s.Load()
	require.NoError(t, err)
	assert.True(t, records["/img/a.png"].Pinned)
	assert.True(t, records["/img/a.png"].IsSet)
}

func TestCurrent_None(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Current()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsure(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{Pinned: Bool(true)})
	require.NoError(t, err)

	created, err := s.Ensure("/img/a.png")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = s.Ensure("/img/b.png")
	require.NoError(t, err)
	assert.True(t, created)

	records, err := s.Load()
	require.NoError(t, err)
	assert.True(t, records["/img/a.png"].Pinned)
	assert.Equal(t, DefaultRecord(), records["/img/b.png"])
}

func TestForget(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update("/img/a.png", Fields{})
	require.NoError(t, err)

	existed, err := s.Forget("/img/a.png")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Forget("/img/a.png")
	require.NoError(t, err)
	assert.False(t, existed)

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "state.json"))

	present := filepath.Join(dir, "present.png")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing.png")

	_, err := s.Update(present, Fields{})
	require.NoError(t, err)
	_, err = s.Update(missing, Fields{Pinned: Bool(true)})
	require.NoError(t, err)

	removed, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, removed)

	records, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, records, present)
	assert.NotContains(t, records, missing)
}

func TestScanAndReconcile(t *testing.T) {
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(imageDir, 0755))

	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(imageDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(imageDir, "nested.png"), 0755))

	s := New(filepath.Join(dir, "state.json"))
	pinnedPath := filepath.Join(imageDir, "a.png")
	_, err := s.Update(pinnedPath, Fields{Pinned: Bool(true), IsSet: Bool(true)})
	require.NoError(t, err)

	added, err := s.ScanAndReconcile(imageDir)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	records, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.True(t, records[pinnedPath].Pinned)
	assert.True(t, records[pinnedPath].IsSet)
	assert.Equal(t, DefaultRecord(), records[filepath.Join(imageDir, "b.JPG")])
	assert.NotContains(t, records, filepath.Join(imageDir, "notes.txt"))

	added, err = s.ScanAndReconcile(imageDir)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestScanAndReconcile_BackFillsOnDisk(t *testing.T) {
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	s := New(filepath.Join(dir, "state.json"))

	content := `{"/img/a.png": {"pinned": true}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))

	_, err := s.ScanAndReconcile(imageDir)
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"attempt_download": true`)

	_, err = os.Stat(imageDir)
	assert.NoError(t, err)
}

func TestConcurrentUpdates(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := filepath.Join("/img", string(rune('a'+i))+".png")
			_, err := s.Update(path, Fields{Pinned: Bool(true)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("/a/b.png"))
	assert.True(t, IsImage("/a/b.JPEG"))
	assert.False(t, IsImage("/a/b.gif"))
	assert.False(t, IsImage("/a/b"))
}

func strPtr(s string) *string {
	return &s
}
