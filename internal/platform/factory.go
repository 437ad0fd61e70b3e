package platform

import (
	"errors"
	"runtime"
	"sync"
)

// ErrUnsupported is wrapped by every service that has no implementation on
// the running system.
var ErrUnsupported = errors.New("operation not supported on this platform")

// Builder constructs the Platform for one GOOS.
type Builder func() Platform

type builders struct {
	mu    sync.RWMutex
	byOS  map[string]Builder
	once  sync.Once
	built Platform
}

var active = &builders{byOS: make(map[string]Builder)}

// Register binds a Builder to a GOOS value. Platform packages call it from init.
func Register(goos string, b Builder) {
	active.mu.Lock()
	active.byOS[goos] = b
	active.mu.Unlock()
}

// Current returns the Platform for runtime.GOOS, building it on first use.
func Current() Platform {
	active.once.Do(func() {
		active.built = active.build(runtime.GOOS)
	})
	return active.built
}

func (b *builders) build(goos string) Platform {
	b.mu.RLock()
	fn, ok := b.byOS[goos]
	b.mu.RUnlock()
	if !ok {
		return fallback(goos)
	}
	return fn()
}

// SetPlatform replaces the Platform returned by Current. Used by tests.
func SetPlatform(p Platform) {
	active.once.Do(func() {})
	active.built = p
}

// ResetPlatform forgets the cached Platform so the next Current rebuilds it.
func ResetPlatform() {
	active.once = sync.Once{}
	active.built = nil
}

// fallback is returned when nothing is registered for the running GOOS. The
// single value serves as the platform and as each of its services.
type fallback string

func (f fallback) Name() string                    { return string(f) }
func (f fallback) IsSupported() bool               { return false }
func (f fallback) Wallpaper() WallpaperService     { return f }
func (f fallback) Display() DisplayService         { return f }
func (f fallback) Scheduler() SchedulerService     { return f }
func (f fallback) FileManager() FileManagerService { return f }

func (fallback) Set(string) error                       { return ErrUnsupported }
func (fallback) Get() (string, error)                   { return "", ErrUnsupported }
func (fallback) Resolution() (Resolution, error)        { return Resolution{}, ErrUnsupported }
func (fallback) Install(SchedulerConfig) error          { return ErrUnsupported }
func (fallback) Uninstall(string) error                 { return ErrUnsupported }
func (fallback) Start(string) error                     { return ErrUnsupported }
func (fallback) Stop(string) error                      { return ErrUnsupported }
func (fallback) Status(string) (SchedulerStatus, error) { return SchedulerStatus{}, ErrUnsupported }
func (fallback) Reveal(string) error                    { return ErrUnsupported }
func (fallback) Open(string) error                      { return ErrUnsupported }
