package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wallgarden/wallgarden/internal/background"
	"github.com/wallgarden/wallgarden/internal/config"
	"github.com/wallgarden/wallgarden/internal/listing"
	"github.com/wallgarden/wallgarden/internal/pipeline"
	"github.com/wallgarden/wallgarden/internal/platform"
	"github.com/wallgarden/wallgarden/internal/selector"
	"github.com/wallgarden/wallgarden/internal/store"
	"github.com/wallgarden/wallgarden/internal/transform"
	"github.com/wallgarden/wallgarden/internal/watch"
)

// Engine is the main wallpaper management engine.
type Engine struct {
	config   *config.Config
	store    *store.Store
	platform platform.Platform
	client   *listing.Client
	pipeline *pipeline.Pipeline
	selector *selector.Selector
	applier  *background.Applier

	// Options
	logger     *zap.Logger
	rng        *rand.Rand
	resolution transform.Resolution
	dryRun     bool
}

// Option is a function that configures the Engine.
type Option func(*Engine)

// WithPlatform replaces the detected platform.
func WithPlatform(p platform.Platform) Option {
	return func(e *Engine) {
		if p != nil {
			e.platform = p
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDryRun enables dry-run mode: the desktop background and the scheduler
// are left untouched.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithResolution overrides both the configured and the detected resolution.
// A zero value is ignored.
func WithResolution(res transform.Resolution) Option {
	return func(e *Engine) {
		e.resolution = res
	}
}

// WithRand sets the random source shared by candidate and rotation picks.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// New creates a new Engine instance and reconciles the image directory with
// the property store.
func New(configPath string, opts ...Option) (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	seed := uint64(time.Now().UnixNano())
	e := &Engine{
		config:   cfg,
		platform: platform.Current(),
		logger:   zap.NewNop(),
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.store = store.New(cfg.StatePath(), store.WithLogger(e.logger))
	e.client = listing.NewClient(cfg.ListingClient())
	e.pipeline = pipeline.New(
		pipeline.Config{
			ImagesDir:    cfg.ImagesDir(),
			OriginalsDir: cfg.OriginalsDir(),
			UniqueNames:  cfg.Download.UniqueNames,
		},
		e.client, e.client, e.store,
		pipeline.WithRand(e.rng),
		pipeline.WithLogger(e.logger),
	)
	e.selector = selector.New(e.store, selector.WithRand(e.rng))
	e.applier = background.New(e.platform.Wallpaper(), e.store, e.logger)

	added, err := e.store.ScanAndReconcile(cfg.ImagesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to scan images: %w", err)
	}
	if added > 0 {
		e.logger.Debug("registered images found on disk", zap.Int("count", added))
	}

	return e, nil
}

// Resolution returns the target size for processed images: the explicit
// override, then the config, then the largest connected display mode, then
// config.DefaultResolution.
func (e *Engine) Resolution() transform.Resolution {
	if !e.resolution.IsZero() {
		return e.resolution
	}
	if res := e.config.Resolution(); !res.IsZero() {
		return res
	}

	detected, err := e.platform.Display().Resolution()
	if err == nil && detected.Width > 0 && detected.Height > 0 {
		return transform.Resolution{Width: detected.Width, Height: detected.Height}
	}
	if err != nil {
		e.logger.Debug("display detection failed, using default resolution", zap.Error(err))
	}
	return config.DefaultResolution
}

// Download fetches a random image from the community listing and sets it as
// the background unless req.NoSet is true.
func (e *Engine) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	query, err := e.query(req)
	if err != nil {
		return nil, err
	}

	res := e.Resolution()
	e.logger.Debug("fetching listing",
		zap.String("community", query.Community),
		zap.String("sort", string(query.Sort)),
		zap.String("timeframe", string(query.Timeframe)),
		zap.Int("limit", query.Limit),
		zap.Stringer("resolution", res),
	)

	out, err := e.pipeline.FetchRandomWallpaper(ctx, pipeline.Request{Query: query, Resolution: res})
	if err != nil {
		return nil, err
	}

	result := &DownloadResult{
		Status:       out.Status,
		Path:         out.Path,
		OriginalPath: out.OriginalPath,
		Title:        out.Title,
		URL:          out.URL,
		Candidates:   out.Candidates,
		Resolution:   res,
	}

	switch out.Status {
	case pipeline.StatusDownloaded, pipeline.StatusExisting:
	default:
		return result, nil
	}

	if req.NoSet || e.dryRun {
		return result, nil
	}

	applied, err := e.applier.Apply(out.Path)
	result.Applied = applied
	if err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) query(req DownloadRequest) (listing.Query, error) {
	q := e.config.DefaultQuery(req.Community)
	if req.Sort != "" {
		s, err := listing.ParseSort(req.Sort)
		if err != nil {
			return q, err
		}
		q.Sort = s
	}
	if req.Timeframe != "" {
		t, err := listing.ParseTimeframe(req.Timeframe)
		if err != nil {
			return q, err
		}
		q.Timeframe = t
	}
	if req.Limit != 0 {
		q.Limit = req.Limit
	}
	return q, q.Validate()
}

// Random sets a random image from the rotation. With pinned only pinned
// images are eligible. ErrNoImages is returned when nothing matches.
func (e *Engine) Random(pinned bool) (*WallpaperResult, error) {
	filter := selector.Rotation()
	if pinned {
		filter = selector.PinnedRotation()
	}

	path, ok, err := e.selector.PickRandom(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to pick image: %w", err)
	}
	if !ok {
		return nil, ErrNoImages
	}

	return e.apply(path)
}

// Set sets the image at path as the background. The image is registered in
// the property store if it is not known yet.
func (e *Engine) Set(path string) (*WallpaperResult, error) {
	abs, err := e.existing(path)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Ensure(abs); err != nil {
		return nil, fmt.Errorf("failed to register image: %w", err)
	}
	return e.apply(abs)
}

func (e *Engine) apply(path string) (*WallpaperResult, error) {
	result := &WallpaperResult{Path: path, SetAt: time.Now()}
	if e.dryRun {
		return result, nil
	}

	applied, err := e.applier.Apply(path)
	result.Applied = applied
	if err != nil {
		return result, err
	}
	return result, nil
}

// Pin marks path as pinned or clears the mark.
func (e *Engine) Pin(path string, on bool) (*ImageInfo, error) {
	return e.update(path, store.Fields{Pinned: store.Bool(on)})
}

// Hide excludes path from the rotation or brings it back.
func (e *Engine) Hide(path string, on bool) (*ImageInfo, error) {
	return e.update(path, store.Fields{Hidden: store.Bool(on)})
}

func (e *Engine) update(path string, fields store.Fields) (*ImageInfo, error) {
	abs, err := e.existing(path)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.Update(abs, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", abs, err)
	}
	return &ImageInfo{Path: abs, Record: rec, Exists: true}, nil
}

// existing resolves path and requires that the file exists.
func (e *Engine) existing(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// Delete removes an image from the collection. Images inside the images
// directory are deleted together with their original copy. Images outside it,
// registered through Set, are only forgotten and their file is left alone.
func (e *Engine) Delete(path string) (*DeleteResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	imagesDir, err := filepath.Abs(e.config.ImagesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", e.config.ImagesDir(), err)
	}

	records, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	_, tracked := records[abs]
	managed := filepath.Dir(abs) == imagesDir

	if !managed && !tracked {
		return nil, fmt.Errorf("%w: %s is not in the collection", ErrNotFound, abs)
	}

	result := &DeleteResult{Path: abs}
	if managed {
		stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		for _, p := range []string{abs, e.pipeline.OriginalPath(stem)} {
			err := os.Remove(p)
			if err == nil {
				result.RemovedFiles = append(result.RemovedFiles, p)
				continue
			}
			if !os.IsNotExist(err) {
				return result, fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}

	result.Forgotten, err = e.store.Forget(abs)
	if err != nil {
		return result, fmt.Errorf("failed to forget %s: %w", abs, err)
	}

	if len(result.RemovedFiles) == 0 && !result.Forgotten {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	return result, nil
}

// List returns every record matching filter, sorted by path.
func (e *Engine) List(filter store.Fields) ([]ImageInfo, error) {
	records, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	paths := records.Match(filter)
	infos := make([]ImageInfo, 0, len(paths))
	for _, p := range paths {
		infos = append(infos, ImageInfo{Path: p, Record: records[p], Exists: fileExists(p)})
	}
	return infos, nil
}

// Current returns the image marked as the current background, or nil when no
// image is marked.
func (e *Engine) Current() (*WallpaperInfo, error) {
	records, err := e.store.Load()
	if err != nil {
		return nil, err
	}

	path, ok := records.Current()
	if !ok {
		return nil, nil
	}

	info := &WallpaperInfo{
		ImageInfo: ImageInfo{Path: path, Record: records[path], Exists: fileExists(path)},
	}
	if desktop, err := e.platform.Wallpaper().Get(); err == nil {
		info.Desktop = desktop
	}
	return info, nil
}

// Scan registers every image in the images directory.
func (e *Engine) Scan() (*ScanResult, error) {
	dir := e.config.ImagesDir()
	added, err := e.store.ScanAndReconcile(dir)
	if err != nil {
		return nil, err
	}
	records, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	return &ScanResult{Dir: dir, Added: added, Total: len(records)}, nil
}

// Prune forgets records whose file is gone.
func (e *Engine) Prune() ([]string, error) {
	return e.store.Prune()
}

// Open opens the current wallpaper in the default viewer.
func (e *Engine) Open() error {
	path, err := e.currentPath()
	if err != nil {
		return err
	}
	return e.platform.FileManager().Open(path)
}

// Reveal shows the current wallpaper in the file manager.
func (e *Engine) Reveal() error {
	path, err := e.currentPath()
	if err != nil {
		return err
	}
	return e.platform.FileManager().Reveal(path)
}

// currentPath prefers the recorded background and falls back to the one the
// desktop reports.
func (e *Engine) currentPath() (string, error) {
	path, ok, err := e.store.Current()
	if err != nil {
		return "", err
	}
	if ok {
		return path, nil
	}

	path, err = e.platform.Wallpaper().Get()
	if err != nil {
		return "", fmt.Errorf("failed to get current wallpaper: %w", err)
	}
	return path, nil
}

// Slideshow methods

// StartSlideshow installs and starts a timer that runs "random" every
// interval. A zero interval uses the configured one.
func (e *Engine) StartSlideshow(interval time.Duration, pinned bool) (*SlideshowStatus, error) {
	scheduler := e.platform.Scheduler()
	if !scheduler.IsSupported() {
		return nil, fmt.Errorf("scheduler not supported on %s", e.platform.Name())
	}

	if interval <= 0 {
		interval = e.config.SlideshowInterval()
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("interval must be at least one minute, got %s", interval)
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable path: %w", err)
	}

	label := e.config.Slideshow.Label
	cfg := platform.SchedulerConfig{
		Label:       label,
		Description: "wallgarden slideshow",
		Command:     execPath,
		Args:        e.slideshowArgs(pinned),
		Interval:    interval,
		RunAtLoad:   true,
	}

	if e.dryRun {
		return &SlideshowStatus{Supported: true, Interval: interval, Label: label}, nil
	}

	if err := scheduler.Install(cfg); err != nil {
		return nil, fmt.Errorf("failed to install slideshow: %w", err)
	}
	if err := scheduler.Start(label); err != nil {
		return nil, fmt.Errorf("failed to start slideshow: %w", err)
	}
	e.logger.Debug("slideshow started", zap.String("label", label), zap.Duration("interval", interval))

	return e.SlideshowStatus()
}

func (e *Engine) slideshowArgs(pinned bool) []string {
	var args []string
	if path := e.config.ConfigPath(); path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		args = append(args, "--config", path)
	}
	args = append(args, "random")
	if pinned {
		args = append(args, "--pinned")
	}
	return args
}

// StopSlideshow stops the timer and removes it.
func (e *Engine) StopSlideshow() error {
	scheduler := e.platform.Scheduler()
	if !scheduler.IsSupported() {
		return fmt.Errorf("scheduler not supported on %s", e.platform.Name())
	}
	if e.dryRun {
		return nil
	}
	return scheduler.Uninstall(e.config.Slideshow.Label)
}

// SlideshowStatus returns the status of the slideshow timer.
func (e *Engine) SlideshowStatus() (*SlideshowStatus, error) {
	scheduler := e.platform.Scheduler()

	status := &SlideshowStatus{
		Supported: scheduler.IsSupported(),
		Label:     e.config.Slideshow.Label,
	}

	if !status.Supported {
		return status, nil
	}

	platformStatus, err := scheduler.Status(status.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to get slideshow status: %w", err)
	}

	status.Installed = platformStatus.Installed
	status.Running = platformStatus.Running
	status.Interval = platformStatus.Interval
	status.UnitPath = platformStatus.UnitPath

	return status, nil
}

// Watch keeps the property store in sync with the images directory until ctx
// is done. onChange may be nil.
func (e *Engine) Watch(ctx context.Context, onChange func(watch.Change)) error {
	opts := []watch.Option{watch.WithLogger(e.logger)}
	if onChange != nil {
		opts = append(opts, watch.OnChange(onChange))
	}

	w, err := watch.New(e.config.ImagesDir(), e.store, opts...)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", e.config.ImagesDir(), err)
	}
	e.logger.Debug("watching images", zap.String("dir", w.Dir()))

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Platform returns the current platform.
func (e *Engine) Platform() platform.Platform {
	return e.platform
}

// Config returns the current config.
func (e *Engine) Config() *config.Config {
	return e.config
}

// DryRun reports whether dry-run mode is enabled.
func (e *Engine) DryRun() bool {
	return e.dryRun
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
