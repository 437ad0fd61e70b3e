//go:build linux

// Package linux provides GNOME/systemd platform implementations.
package linux

import (
	"os"
	"os/exec"

	"github.com/wallgarden/wallgarden/internal/platform"
)

func init() {
	platform.Register("linux", func() platform.Platform {
		return New()
	})
}

// flatpakInfo exists inside a flatpak sandbox.
const flatpakInfo = "/.flatpak-info"

// Platform implements platform.Platform for GNOME desktops with a systemd user session.
type Platform struct {
	wallpaper   *WallpaperService
	display     *DisplayService
	scheduler   *SchedulerService
	fileManager *FileManagerService
}

func New() *Platform {
	return &Platform{
		wallpaper:   NewWallpaperService(),
		display:     NewDisplayService(),
		scheduler:   NewSchedulerService(),
		fileManager: NewFileManagerService(),
	}
}

func (p *Platform) Name() string {
	return "linux"
}

func (p *Platform) IsSupported() bool {
	return true
}

func (p *Platform) Wallpaper() platform.WallpaperService {
	return p.wallpaper
}

func (p *Platform) Display() platform.DisplayService {
	return p.display
}

func (p *Platform) Scheduler() platform.SchedulerService {
	return p.scheduler
}

func (p *Platform) FileManager() platform.FileManagerService {
	return p.fileManager
}

var _ platform.Platform = (*Platform)(nil)

// Runner runs an external command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// InFlatpak reports whether the process runs inside a flatpak sandbox.
func InFlatpak() bool {
	_, err := os.Stat(flatpakInfo)
	return err == nil
}

// hostCommand prefixes name with flatpak-spawn when running sandboxed so the
// command reaches the host session.
func hostCommand(flatpak bool, name string, args ...string) (string, []string) {
	if !flatpak {
		return name, args
	}
	return "flatpak-spawn", append([]string{"--host", name}, args...)
}
