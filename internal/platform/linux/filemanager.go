//go:build linux

package linux

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	fileManagerDest = "org.freedesktop.FileManager1"
	fileManagerPath = dbus.ObjectPath("/org/freedesktop/FileManager1")
)

// FileManagerService implements platform.FileManagerService with the
// FileManager1 D-Bus interface and xdg-open.
type FileManagerService struct {
	run       Runner
	flatpak   bool
	showItems func(uris []string) error
}

func NewFileManagerService() *FileManagerService {
	return &FileManagerService{
		run:       execRunner,
		flatpak:   InFlatpak(),
		showItems: dbusShowItems,
	}
}

// Reveal highlights path in the file manager, falling back to opening its
// directory when no FileManager1 implementation is available.
func (s *FileManagerService) Reveal(path string) error {
	if err := s.showItems([]string{fileURI(path)}); err == nil {
		return nil
	}
	return s.Open(filepath.Dir(path))
}

// Open opens path with the default application.
func (s *FileManagerService) Open(path string) error {
	name, args := hostCommand(s.flatpak, "xdg-open", path)
	if output, err := s.run(name, args...); err != nil {
		return fmt.Errorf("failed to open %s: %w (output: %s)", path, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func dbusShowItems(uris []string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	call := conn.Object(fileManagerDest, fileManagerPath).Call(fileManagerDest+".ShowItems", 0, uris, "")
	if call.Err != nil {
		return fmt.Errorf("ShowItems: %w", call.Err)
	}
	return nil
}
