package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	for _, s := range Sorts {
		got, err := ParseSort(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSort("Top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hot, new, rising, controversial, top, best")
}

func TestParseTimeframe(t *testing.T) {
	for _, tf := range Timeframes {
		got, err := ParseTimeframe(string(tf))
		require.NoError(t, err)
		assert.Equal(t, tf, got)
	}

	_, err := ParseTimeframe("decade")
	assert.Error(t, err)
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(q *Query)
		wantErr string
	}{
		{"valid", func(q *Query) {}, ""},
		{"empty community", func(q *Query) { q.Community = " " }, "community is required"},
		{"community with slash", func(q *Query) { q.Community = "a/b" }, "invalid community"},
		{"bad sort", func(q *Query) { q.Sort = "" }, "invalid sort"},
		{"bad timeframe", func(q *Query) { q.Timeframe = "never" }, "invalid timeframe"},
		{"zero limit", func(q *Query) { q.Limit = 0 }, "limit must be a positive integer"},
		{"negative limit", func(q *Query) { q.Limit = -3 }, "limit must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.modify(&q)
			err := q.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
