//go:build linux

package linux

import (
	"fmt"
	"net/url"
	"strings"
)

const backgroundSchema = "org.gnome.desktop.background"

// backgroundKeys are the light and dark variants; both are set so the
// background survives a theme switch.
var backgroundKeys = []string{"picture-uri", "picture-uri-dark"}

// WallpaperService implements platform.WallpaperService through gsettings.
type WallpaperService struct {
	run     Runner
	flatpak bool
}

func NewWallpaperService() *WallpaperService {
	return &WallpaperService{
		run:     execRunner,
		flatpak: InFlatpak(),
	}
}

// Set points both background keys at path.
func (s *WallpaperService) Set(path string) error {
	uri := fileURI(path)
	for _, key := range backgroundKeys {
		name, args := hostCommand(s.flatpak, "gsettings", "set", backgroundSchema, key, uri)
		if output, err := s.run(name, args...); err != nil {
			return fmt.Errorf("failed to set %s: %w (output: %s)", key, err, strings.TrimSpace(string(output)))
		}
	}
	return nil
}

// Get returns the path of the light variant background.
func (s *WallpaperService) Get() (string, error) {
	name, args := hostCommand(s.flatpak, "gsettings", "get", backgroundSchema, backgroundKeys[0])
	output, err := s.run(name, args...)
	if err != nil {
		return "", fmt.Errorf("failed to get wallpaper: %w", err)
	}
	return parseURI(string(output))
}

func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// parseURI turns gsettings output like 'file:///a/b.png' into a path.
func parseURI(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "'\"")
	if raw == "" {
		return "", fmt.Errorf("wallpaper not set")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid wallpaper uri %q: %w", raw, err)
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("unsupported wallpaper uri %q", raw)
	}
	return u.Path, nil
}
