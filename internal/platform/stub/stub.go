// Package stub provides a fallback platform for systems without a desktop
// integration. Every service reports platform.ErrUnsupported.
package stub

import (
	"fmt"
	"runtime"

	"github.com/wallgarden/wallgarden/internal/platform"
)

func init() {
	for _, os := range []string{"darwin", "windows", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "aix"} {
		platform.Register(os, func() platform.Platform {
			return New()
		})
	}
}

// Platform implements platform.Platform as a fallback for unsupported systems.
type Platform struct {
	name string
}

func New() *Platform {
	return &Platform{
		name: runtime.GOOS,
	}
}

func (p *Platform) Name() string {
	return p.name
}

func (p *Platform) IsSupported() bool {
	return false
}

func (p *Platform) Wallpaper() platform.WallpaperService {
	return &stubWallpaperService{name: p.name}
}

func (p *Platform) Display() platform.DisplayService {
	return &stubDisplayService{name: p.name}
}

func (p *Platform) Scheduler() platform.SchedulerService {
	return &stubSchedulerService{name: p.name}
}

func (p *Platform) FileManager() platform.FileManagerService {
	return &stubFileManagerService{name: p.name}
}

var _ platform.Platform = (*Platform)(nil)

func unsupported(what, osName string) error {
	return fmt.Errorf("%s on %s: %w", what, osName, platform.ErrUnsupported)
}

type stubWallpaperService struct{ name string }

func (s *stubWallpaperService) Set(path string) error {
	return unsupported("wallpaper setting", s.name)
}

func (s *stubWallpaperService) Get() (string, error) {
	return "", unsupported("wallpaper detection", s.name)
}

type stubDisplayService struct{ name string }

func (s *stubDisplayService) Resolution() (platform.Resolution, error) {
	return platform.Resolution{}, unsupported("display detection", s.name)
}

type stubSchedulerService struct{ name string }

func (s *stubSchedulerService) Install(config platform.SchedulerConfig) error {
	return unsupported("scheduler", s.name)
}

func (s *stubSchedulerService) Uninstall(label string) error {
	return unsupported("scheduler", s.name)
}

func (s *stubSchedulerService) Start(label string) error {
	return unsupported("scheduler", s.name)
}

func (s *stubSchedulerService) Stop(label string) error {
	return unsupported("scheduler", s.name)
}

func (s *stubSchedulerService) Status(label string) (platform.SchedulerStatus, error) {
	return platform.SchedulerStatus{}, unsupported("scheduler", s.name)
}

func (s *stubSchedulerService) IsSupported() bool {
	return false
}

type stubFileManagerService struct{ name string }

func (s *stubFileManagerService) Reveal(path string) error {
	return unsupported("file manager", s.name)
}

func (s *stubFileManagerService) Open(path string) error {
	return unsupported("file manager", s.name)
}
