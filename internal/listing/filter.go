package listing

import (
	"strings"

	"github.com/wallgarden/wallgarden/internal/transform"
)

// Candidate is an eligible post that has not been downloaded yet.
type Candidate struct {
	URL    string
	Width  int
	Height int
	Title  string
}

// FilterCandidates keeps posts with an image URL whose first preview is
// strictly larger than target on both axes. Posts lacking a URL or preview
// are skipped. A URL seen twice keeps its first position and the later data.
func FilterCandidates(l *Listing, target transform.Resolution) []Candidate {
	if l == nil {
		return nil
	}

	var candidates []Candidate
	index := make(map[string]int)

	for _, child := range l.Data.Children {
		post := child.Data
		if post.URL == "" || post.Preview == nil || len(post.Preview.Images) == 0 {
			continue
		}

		source := post.Preview.Images[0].Source
		if source.Width <= target.Width || source.Height <= target.Height {
			continue
		}

		c := Candidate{
			URL:    post.URL,
			Width:  source.Width,
			Height: source.Height,
			Title:  TitleFromPermalink(post.Permalink),
		}
		if i, ok := index[c.URL]; ok {
			candidates[i] = c
			continue
		}
		index[c.URL] = len(candidates)
		candidates = append(candidates, c)
	}

	return candidates
}

// TitleFromPermalink returns the last path segment of a permalink,
// e.g. "/r/x/comments/id/misty_forest/" -> "misty_forest".
func TitleFromPermalink(permalink string) string {
	trimmed := strings.TrimRight(permalink, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
