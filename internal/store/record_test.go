package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Merge(t *testing.T) {
	rec := DefaultRecord().Merge(Fields{Pinned: Bool(true)})
	assert.Equal(t, Record{Pinned: true, AttemptDownload: true}, rec)

	rec = rec.Merge(Fields{AttemptDownload: Bool(false), IsSet: Bool(true)})
	assert.Equal(t, Record{Pinned: true, IsSet: true}, rec)

	assert.Equal(t, rec, rec.Merge(Fields{}))
}

func TestRecord_Matches(t *testing.T) {
	rec := Record{Pinned: true, AttemptDownload: true}

	tests := []struct {
		name   string
		fields Fields
		want   bool
	}{
		{"empty filter", Fields{}, true},
		{"single match", Fields{Pinned: Bool(true)}, true},
		{"single mismatch", Fields{Pinned: Bool(false)}, false},
		{"subset match", Fields{Pinned: Bool(true), IsSet: Bool(false)}, true},
		{"subset mismatch", Fields{Pinned: Bool(true), Hidden: Bool(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.Matches(tt.fields))
		})
	}
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"hidden": true}`), &rec))
	assert.Equal(t, Record{Hidden: true, AttemptDownload: true}, rec)

	require.NoError(t, json.Unmarshal([]byte(`{"attempt_download": false}`), &rec))
	assert.Equal(t, Record{}, rec)
}

func TestRecords_Current(t *testing.T) {
	_, ok := Records{"/a": {}}.Current()
	assert.False(t, ok)

	path, ok := Records{"/a": {}, "/b": {IsSet: true}}.Current()
	assert.True(t, ok)
	assert.Equal(t, "/b", path)
}

func TestRecords_Match(t *testing.T) {
	records := Records{
		"/c": {Pinned: true},
		"/a": {Pinned: true},
		"/b": {},
	}

	assert.Equal(t, []string{"/a", "/c"}, records.Match(Fields{Pinned: Bool(true)}))
	assert.Equal(t, []string{"/a", "/b", "/c"}, records.Paths())
	assert.Empty(t, records.Match(Fields{Hidden: Bool(true)}))
}
