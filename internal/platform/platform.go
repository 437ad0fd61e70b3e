// Package platform provides OS-agnostic abstractions for desktop integration.
package platform

import "time"

// Resolution is a display size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// Platform provides access to OS-specific services.
type Platform interface {
	// Name returns the platform identifier (e.g., "linux").
	Name() string

	// IsSupported returns true if this platform is fully supported.
	IsSupported() bool

	// Wallpaper returns the desktop background service.
	Wallpaper() WallpaperService

	// Display returns the display detection service.
	Display() DisplayService

	// Scheduler returns the periodic task scheduler service.
	Scheduler() SchedulerService

	// FileManager returns the file manager service.
	FileManager() FileManagerService
}

// WallpaperService manages the desktop background.
type WallpaperService interface {
	// Set sets the background to the image at path, for both the light and
	// dark variants of the desktop theme.
	Set(path string) error

	// Get returns the current background path.
	Get() (string, error)
}

// DisplayService reports the connected display geometry.
type DisplayService interface {
	// Resolution returns the largest resolution any connected output supports.
	Resolution() (Resolution, error)
}

// SchedulerService manages a periodic background task.
type SchedulerService interface {
	// Install writes the task definition and enables it.
	Install(config SchedulerConfig) error

	// Uninstall stops the task and removes its definition.
	Uninstall(label string) error

	// Start starts an installed task.
	Start(label string) error

	// Stop stops a running task without removing it.
	Stop(label string) error

	// Status returns the current status of the task.
	Status(label string) (SchedulerStatus, error)

	// IsSupported returns true if scheduling is supported on this platform.
	IsSupported() bool
}

// SchedulerConfig holds configuration for a scheduled task.
type SchedulerConfig struct {
	// Label is the unique identifier for the task.
	Label string

	// Description is a human readable summary.
	Description string

	// Command is the executable path.
	Command string

	// Args are the command arguments.
	Args []string

	// Interval is the time between executions.
	Interval time.Duration

	// RunAtLoad indicates whether to run immediately when started.
	RunAtLoad bool
}

// SchedulerStatus represents the current state of a scheduled task.
type SchedulerStatus struct {
	// Installed indicates whether the task definition exists.
	Installed bool

	// Running indicates whether the task is currently active.
	Running bool

	// Interval is the configured interval between executions.
	Interval time.Duration

	// UnitPath is where the task definition lives.
	UnitPath string
}

// FileManagerService provides file manager operations.
type FileManagerService interface {
	// Reveal opens the file manager and highlights the specified path.
	Reveal(path string) error

	// Open opens the file with the default application.
	Open(path string) error
}
