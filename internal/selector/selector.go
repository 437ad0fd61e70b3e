// Package selector picks a stored wallpaper at random.
package selector

import (
	"math/rand/v2"
	"time"

	"github.com/wallgarden/wallgarden/internal/store"
)

// Loader is the read side of the property store.
type Loader interface {
	Load() (store.Records, error)
}

type Selector struct {
	source Loader
	rng    *rand.Rand
}

type Option func(*Selector)

func WithRand(rng *rand.Rand) Option {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

func New(source Loader, opts ...Option) *Selector {
	seed := uint64(time.Now().UnixNano())
	s := &Selector{
		source: source,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rotation matches every image that may replace the current background.
func Rotation() store.Fields {
	return store.Fields{
		IsSet:           store.Bool(false),
		Hidden:          store.Bool(false),
		AttemptDownload: store.Bool(true),
	}
}

// PinnedRotation is Rotation restricted to pinned images.
func PinnedRotation() store.Fields {
	f := Rotation()
	f.Pinned = store.Bool(true)
	return f
}

// PickRandom returns a uniformly chosen path among the records matching
// filter. ok is false when nothing matches.
func (s *Selector) PickRandom(filter store.Fields) (path string, ok bool, err error) {
	records, err := s.source.Load()
	if err != nil {
		return "", false, err
	}

	matches := records.Match(filter)
	if len(matches) == 0 {
		return "", false, nil
	}
	return matches[s.rng.IntN(len(matches))], true, nil
}
