package selector

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallgarden/wallgarden/internal/store"
)

type fakeLoader struct {
	records store.Records
	err     error
}

func (f fakeLoader) Load() (store.Records, error) {
	return f.records, f.err
}

func rec(pinned, hidden, isSet bool) store.Record {
	r := store.DefaultRecord()
	r.Pinned = pinned
	r.Hidden = hidden
	r.IsSet = isSet
	return r
}

func TestPickRandom_PinnedRotation(t *testing.T) {
	// A is set, B is pinned, C is neither.
	src := fakeLoader{records: store.Records{
		"/img/A.png": rec(false, false, true),
		"/img/B.png": rec(true, false, false),
		"/img/C.png": rec(false, false, false),
	}}

	s := New(src, WithRand(rand.New(rand.NewPCG(7, 7))))
	for i := 0; i < 20; i++ {
		path, ok, err := s.PickRandom(PinnedRotation())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "/img/B.png", path)
	}
}

func TestPickRandom_Rotation(t *testing.T) {
	src := fakeLoader{records: store.Records{
		"/img/A.png": rec(false, false, true),
		"/img/B.png": rec(true, false, false),
		"/img/C.png": rec(false, false, false),
		"/img/D.png": rec(false, true, false),
	}}
	rejected := store.DefaultRecord()
	rejected.AttemptDownload = false
	src.records["/img/E.png"] = rejected

	s := New(src, WithRand(rand.New(rand.NewPCG(1, 2))))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		path, ok, err := s.PickRandom(Rotation())
		require.NoError(t, err)
		require.True(t, ok)
		seen[path] = true
	}
	assert.Equal(t, map[string]bool{"/img/B.png": true, "/img/C.png": true}, seen)
}

func TestPickRandom_NoMatch(t *testing.T) {
	s := New(fakeLoader{records: store.Records{"/img/A.png": rec(false, false, true)}})

	path, ok, err := s.PickRandom(PinnedRotation())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, path)

	_, ok, err = New(fakeLoader{records: store.Records{}}).PickRandom(store.Fields{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPickRandom_EmptyFilterMatchesAll(t *testing.T) {
	s := New(fakeLoader{records: store.Records{"/img/A.png": rec(false, true, true)}})

	path, ok, err := s.PickRandom(store.Fields{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/img/A.png", path)
}

func TestPickRandom_LoadError(t *testing.T) {
	s := New(fakeLoader{err: errors.New("disk on fire")})
	_, _, err := s.PickRandom(Rotation())
	assert.EqualError(t, err, "disk on fire")
}
