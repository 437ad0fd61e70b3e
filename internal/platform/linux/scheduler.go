//go:build linux

package linux

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/wallgarden/wallgarden/internal/platform"
)

var serviceTemplate = template.Must(template.New("service").Parse(`[Unit]
Description={{.Description}}

[Service]
Type=oneshot
ExecStart={{.ExecStart}}
`))

var timerTemplate = template.Must(template.New("timer").Parse(`[Unit]
Description={{.Description}} timer

[Timer]
OnActiveSec={{.FirstRun}}s
OnUnitActiveSec={{.Seconds}}s
Unit={{.Label}}.service

[Install]
WantedBy=timers.target
`))

var intervalRe = regexp.MustCompile(`(?m)^OnUnitActiveSec=(\d+)s\s*$`)

type unitData struct {
	Label       string
	Description string
	ExecStart   string
	Seconds     int
	FirstRun    int
}

// SchedulerService runs a command periodically with a systemd user timer.
type SchedulerService struct {
	unitDir string
	connect func() (unitManager, error)
}

func NewSchedulerService() *SchedulerService {
	return &SchedulerService{
		unitDir: userUnitDir(),
		connect: connectUserManager,
	}
}

func userUnitDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "systemd", "user")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "systemd", "user")
	}
	return filepath.Join(home, ".config", "systemd", "user")
}

func (s *SchedulerService) IsSupported() bool {
	return true
}

// Install writes <label>.service and <label>.timer, reloads the user manager
// and enables the timer. It does not start it.
func (s *SchedulerService) Install(config platform.SchedulerConfig) error {
	if config.Label == "" || config.Command == "" {
		return fmt.Errorf("scheduler label and command are required")
	}
	seconds := int(config.Interval.Seconds())
	if seconds <= 0 {
		return fmt.Errorf("invalid interval: %s", config.Interval)
	}

	data := unitData{
		Label:       config.Label,
		Description: config.Description,
		ExecStart:   execStart(config.Command, config.Args),
		Seconds:     seconds,
		FirstRun:    seconds,
	}
	if data.Description == "" {
		data.Description = config.Label
	}
	if config.RunAtLoad {
		data.FirstRun = 1
	}

	if err := os.MkdirAll(s.unitDir, 0755); err != nil {
		return fmt.Errorf("failed to create unit directory: %w", err)
	}
	if err := s.render(serviceTemplate, s.servicePath(config.Label), data); err != nil {
		return err
	}
	if err := s.render(timerTemplate, s.timerPath(config.Label), data); err != nil {
		return err
	}

	m, err := s.connect()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Reload(); err != nil {
		return err
	}
	return m.EnableUnitFiles([]string{timerUnit(config.Label)})
}

// Uninstall stops and disables the timer and removes both unit files.
func (s *SchedulerService) Uninstall(label string) error {
	if _, err := os.Stat(s.timerPath(label)); os.IsNotExist(err) {
		return nil
	}

	m, err := s.connect()
	if err != nil {
		return err
	}
	defer m.Close()

	_ = m.StopUnit(timerUnit(label))
	_ = m.DisableUnitFiles([]string{timerUnit(label)})

	for _, path := range []string{s.timerPath(label), s.servicePath(label)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return m.Reload()
}

func (s *SchedulerService) Start(label string) error {
	return s.withManager(func(m unitManager) error {
		return m.StartUnit(timerUnit(label))
	})
}

func (s *SchedulerService) Stop(label string) error {
	return s.withManager(func(m unitManager) error {
		return m.StopUnit(timerUnit(label))
	})
}

// Status reports whether the timer is installed and active. A missing user
// manager is reported as not running rather than as an error.
func (s *SchedulerService) Status(label string) (platform.SchedulerStatus, error) {
	path := s.timerPath(label)
	status := platform.SchedulerStatus{UnitPath: path}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("failed to read %s: %w", path, err)
	}
	status.Installed = true
	status.Interval = parseInterval(string(content))

	m, err := s.connect()
	if err != nil {
		return status, nil
	}
	defer m.Close()

	state, err := m.ActiveState(timerUnit(label))
	status.Running = err == nil && state == "active"
	return status, nil
}

func (s *SchedulerService) withManager(fn func(unitManager) error) error {
	m, err := s.connect()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func (s *SchedulerService) render(tmpl *template.Template, path string, data unitData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *SchedulerService) servicePath(label string) string {
	return filepath.Join(s.unitDir, label+".service")
}

func (s *SchedulerService) timerPath(label string) string {
	return filepath.Join(s.unitDir, timerUnit(label))
}

func timerUnit(label string) string {
	return label + ".timer"
}

func parseInterval(content string) time.Duration {
	m := intervalRe.FindStringSubmatch(content)
	if len(m) < 2 {
		return 0
	}
	seconds, _ := strconv.Atoi(m[1])
	return time.Duration(seconds) * time.Second
}

// execStart builds an ExecStart= value, quoting words with spaces and
// escaping specifiers.
func execStart(command string, args []string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{command}, args...) {
		words = append(words, quoteWord(w))
	}
	return strings.Join(words, " ")
}

func quoteWord(w string) string {
	w = strings.ReplaceAll(w, "%", "%%")
	if w != "" && !strings.ContainsAny(w, " \t\"'\\") {
		return w
	}
	w = strings.ReplaceAll(w, `\`, `\\`)
	w = strings.ReplaceAll(w, `"`, `\"`)
	return `"` + w + `"`
}
