// Package core provides the main business logic for wallgarden.
package core

import (
	"errors"
	"time"

	"github.com/wallgarden/wallgarden/internal/pipeline"
	"github.com/wallgarden/wallgarden/internal/store"
	"github.com/wallgarden/wallgarden/internal/transform"
)

var (
	// ErrNoImages is returned by Random when no record matches the rotation.
	ErrNoImages = errors.New("no eligible images")

	// ErrNotFound is returned when a path has neither a file nor a record.
	ErrNotFound = errors.New("image not found")
)

// DownloadRequest selects the listing to fetch from. Zero fields fall back
// to the configured defaults.
type DownloadRequest struct {
	Community string
	Sort      string
	Timeframe string
	Limit     int

	// NoSet keeps the downloaded image out of the desktop background.
	NoSet bool
}

// DownloadResult represents the outcome of a download.
type DownloadResult struct {
	// Status is the pipeline outcome.
	Status pipeline.Status

	// Path is the processed image path. Empty when there were no candidates.
	Path string

	// OriginalPath is where the untransformed copy is stored.
	OriginalPath string

	// Title is the post title the file was named after.
	Title string

	// URL is the image source.
	URL string

	// Candidates is the size of the eligible pool.
	Candidates int

	// Resolution is the target size the image was cropped to.
	Resolution transform.Resolution

	// Applied reports whether the image became the desktop background.
	Applied bool
}

// WallpaperResult represents the result of setting a background.
type WallpaperResult struct {
	// Path is the absolute path to the image.
	Path string

	// Applied is false when the desktop refused the image or in dry-run mode.
	Applied bool

	// SetAt is when the operation ran.
	SetAt time.Time
}

// ImageInfo describes one record of the property store.
type ImageInfo struct {
	Path string
	store.Record

	// Exists indicates if the file is still on disk.
	Exists bool
}

// WallpaperInfo contains information about the current wallpaper.
type WallpaperInfo struct {
	ImageInfo

	// Desktop is the background the desktop reports. It may differ from Path
	// when the background was changed outside wallgarden.
	Desktop string
}

// ScanResult summarizes a directory reconciliation.
type ScanResult struct {
	Dir   string
	Added int
	Total int
}

// DeleteResult lists what Delete removed.
type DeleteResult struct {
	Path         string
	RemovedFiles []string
	Forgotten    bool
}

// SlideshowStatus represents the status of the scheduled rotation.
type SlideshowStatus struct {
	// Supported indicates if scheduling is available on this platform.
	Supported bool

	// Installed indicates if the timer is installed.
	Installed bool

	// Running indicates if the timer is active.
	Running bool

	// Interval is the time between wallpaper changes.
	Interval time.Duration

	// Label is the scheduler unit name.
	Label string

	// UnitPath is where the timer definition lives.
	UnitPath string
}
