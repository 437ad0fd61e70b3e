//go:build linux

package linux

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/wallgarden/wallgarden/internal/platform"
)

const drmRoot = "/sys/class/drm"

var modeRe = regexp.MustCompile(`^(\d+)x(\d+)`)

// DisplayService reads connector modes from the DRM sysfs tree.
type DisplayService struct {
	root string
}

func NewDisplayService() *DisplayService {
	return &DisplayService{root: drmRoot}
}

// Resolution returns the mode with the largest area across all connectors.
func (s *DisplayService) Resolution() (platform.Resolution, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return platform.Resolution{}, fmt.Errorf("failed to read %s: %w", s.root, err)
	}

	var best platform.Resolution
	for _, entry := range entries {
		modes, err := readModes(filepath.Join(s.root, entry.Name(), "modes"))
		if err != nil {
			continue
		}
		for _, m := range modes {
			if m.Width*m.Height > best.Width*best.Height {
				best = m
			}
		}
	}

	if best.Width == 0 || best.Height == 0 {
		return platform.Resolution{}, fmt.Errorf("no display modes found under %s", s.root)
	}
	return best, nil
}

func readModes(path string) ([]platform.Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var modes []platform.Resolution
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := modeRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		modes = append(modes, platform.Resolution{Width: w, Height: h})
	}
	return modes, scanner.Err()
}
