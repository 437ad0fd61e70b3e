// Package pipeline turns a community listing into a processed wallpaper on disk.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/wallgarden/wallgarden/internal/listing"
	"github.com/wallgarden/wallgarden/internal/store"
	"github.com/wallgarden/wallgarden/internal/transform"
)

const (
	processedExt = ".png"
	originalExt  = ".original.png"
	untitled     = "untitled"
)

// Status describes how FetchRandomWallpaper finished.
type Status string

const (
	StatusDownloaded   Status = "downloaded"
	StatusExisting     Status = "existing"
	StatusNoCandidates Status = "no-candidates"
	StatusRejected     Status = "rejected"
)

// Lister fetches a community listing.
type Lister interface {
	Query(ctx context.Context, q listing.Query) (*listing.Listing, error)
}

// Downloader fetches raw image bytes.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Store is the subset of store.Store the pipeline reads and writes.
type Store interface {
	Load() (store.Records, error)
	Update(path string, fields store.Fields) (store.Record, error)
	Ensure(path string) (bool, error)
}

// Config holds the output directories.
type Config struct {
	ImagesDir    string
	OriginalsDir string

	// UniqueNames appends a short hash of the image URL to every stem so
	// distinct posts with the same title do not collide.
	UniqueNames bool
}

// Request selects the listing to draw from and the target size.
type Request struct {
	Query      listing.Query
	Resolution transform.Resolution
}

// Result is returned for every non-error outcome. Path is empty for
// StatusNoCandidates and holds the would-be path for StatusRejected.
type Result struct {
	Status       Status
	Path         string
	OriginalPath string
	Title        string
	URL          string
	Candidates   int
}

// Pipeline downloads one random candidate, crops it and records it.
type Pipeline struct {
	cfg        Config
	lister     Lister
	downloader Downloader
	store      Store
	rng        *rand.Rand
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRand sets the random source used to pick a candidate.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) {
		if rng != nil {
			p.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline writing into the directories of cfg.
func New(cfg Config, lister Lister, downloader Downloader, st Store, opts ...Option) *Pipeline {
	seed := uint64(time.Now().UnixNano())
	p := &Pipeline{
		cfg:        cfg,
		lister:     lister,
		downloader: downloader,
		store:      st,
		rng:        rand.New(rand.NewPCG(seed, seed>>1)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchRandomWallpaper queries the listing, picks one eligible candidate at
// random and makes sure a processed copy of it exists on disk.
func (p *Pipeline) FetchRandomWallpaper(ctx context.Context, req Request) (*Result, error) {
	if req.Resolution.IsZero() {
		return nil, fmt.Errorf("invalid resolution %s", req.Resolution)
	}

	l, err := p.lister.Query(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	candidates := listing.FilterCandidates(l, req.Resolution)
	p.logger.Debug("filtered listing",
		zap.String("community", req.Query.Community),
		zap.Int("posts", len(l.Data.Children)),
		zap.Int("candidates", len(candidates)))

	candidates, err = p.dropBlocked(candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{Status: StatusNoCandidates}, nil
	}

	c := candidates[p.rng.IntN(len(candidates))]
	stem := p.Stem(c)
	result := &Result{
		Path:         p.ProcessedPath(stem),
		OriginalPath: p.OriginalPath(stem),
		Title:        c.Title,
		URL:          c.URL,
		Candidates:   len(candidates),
	}

	if _, err := os.Stat(result.Path); err == nil {
		p.logger.Debug("image already downloaded", zap.String("path", result.Path))
		result.Status = StatusExisting
		return result, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", result.Path, err)
	}

	if err := p.process(ctx, c, req.Resolution, result); err != nil {
		if errors.Is(err, transform.ErrSourceTooSmall) {
			p.logger.Info("candidate rejected", zap.String("url", c.URL), zap.Error(err))
			if _, err := p.store.Update(result.Path, store.Fields{AttemptDownload: store.Bool(false)}); err != nil {
				return nil, err
			}
			result.Status = StatusRejected
			return result, nil
		}
		return nil, err
	}

	if _, err := p.store.Ensure(result.Path); err != nil {
		return nil, err
	}
	result.Status = StatusDownloaded
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, c listing.Candidate, res transform.Resolution, result *Result) error {
	data, err := p.downloader.Download(ctx, c.URL)
	if err != nil {
		return err
	}

	img, err := transform.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.URL, err)
	}

	if err := transform.SavePNG(img, result.OriginalPath); err != nil {
		return err
	}

	processed, err := transform.ScaleAndCrop(img, res.Width, res.Height)
	if err != nil {
		return err
	}
	return transform.SavePNG(processed, result.Path)
}

// dropBlocked removes candidates whose processed path was previously rejected.
func (p *Pipeline) dropBlocked(candidates []listing.Candidate) ([]listing.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	records, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	kept := candidates[:0:0]
	for _, c := range candidates {
		path := p.ProcessedPath(p.Stem(c))
		if rec, ok := records[path]; ok && !rec.AttemptDownload {
			p.logger.Debug("skipping blocked candidate", zap.String("path", path))
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// Stem returns the file name stem for c.
func (p *Pipeline) Stem(c listing.Candidate) string {
	stem := SanitizeTitle(c.Title)
	if stem == "" {
		stem = untitled
	}
	if p.cfg.UniqueNames {
		sum := sha1.Sum([]byte(c.URL))
		stem += "-" + hex.EncodeToString(sum[:])[:8]
	}
	return stem
}

// ProcessedPath is the absolute path of the cropped PNG for stem.
func (p *Pipeline) ProcessedPath(stem string) string {
	return filepath.Join(absDir(p.cfg.ImagesDir), stem+processedExt)
}

// OriginalPath is the absolute path of the uncropped copy for stem.
func (p *Pipeline) OriginalPath(stem string) string {
	return filepath.Join(absDir(p.cfg.OriginalsDir), stem+originalExt)
}

// SanitizeTitle keeps letters, digits, spaces, hyphens and underscores and
// trims trailing whitespace.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
