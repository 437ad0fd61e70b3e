package store

import (
	"encoding/json"
	"sort"
)

// Record holds the persisted flags of a single image.
type Record struct {
	Hidden          bool `json:"hidden"`
	Pinned          bool `json:"pinned"`
	AttemptDownload bool `json:"attempt_download"`
	IsSet           bool `json:"is_set"`
}

// DefaultRecord returns the record assigned to a path the first time it is seen.
func DefaultRecord() Record {
	return Record{AttemptDownload: true}
}

// UnmarshalJSON starts from DefaultRecord so keys missing from the file are back-filled.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	rec := plain(DefaultRecord())
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*r = Record(rec)
	return nil
}

// Fields is a partial view of a Record. A nil field is left alone by Merge
// and ignored by Matches.
type Fields struct {
	Hidden          *bool
	Pinned          *bool
	AttemptDownload *bool
	IsSet           *bool
}

// Bool returns a pointer to v, for building Fields literals.
func Bool(v bool) *bool {
	return &v
}

// Merge returns r with every non-nil field of f applied.
func (r Record) Merge(f Fields) Record {
	if f.Hidden != nil {
		r.Hidden = *f.Hidden
	}
	if f.Pinned != nil {
		r.Pinned = *f.Pinned
	}
	if f.AttemptDownload != nil {
		r.AttemptDownload = *f.AttemptDownload
	}
	if f.IsSet != nil {
		r.IsSet = *f.IsSet
	}
	return r
}

// Matches reports whether every non-nil field of f equals the record's value.
func (r Record) Matches(f Fields) bool {
	if f.Hidden != nil && r.Hidden != *f.Hidden {
		return false
	}
	if f.Pinned != nil && r.Pinned != *f.Pinned {
		return false
	}
	if f.AttemptDownload != nil && r.AttemptDownload != *f.AttemptDownload {
		return false
	}
	if f.IsSet != nil && r.IsSet != *f.IsSet {
		return false
	}
	return true
}

// Records maps absolute image paths to their record.
type Records map[string]Record

// Current returns the path marked is_set. If the file was edited by hand and
// holds several, the lexically smallest one wins.
func (rs Records) Current() (string, bool) {
	var current string
	found := false
	for path, rec := range rs {
		if !rec.IsSet {
			continue
		}
		if !found || path < current {
			current = path
			found = true
		}
	}
	return current, found
}

// Match returns the sorted paths whose record matches f.
func (rs Records) Match(f Fields) []string {
	var paths []string
	for path, rec := range rs {
		if rec.Matches(f) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Paths returns every tracked path, sorted.
func (rs Records) Paths() []string {
	return rs.Match(Fields{})
}
