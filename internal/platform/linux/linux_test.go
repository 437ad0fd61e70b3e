//go:build linux

package linux

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallgarden/wallgarden/internal/platform"
)

type recorder struct {
	calls  [][]string
	output string
	err    error
}

func (r *recorder) run(name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return []byte(r.output), r.err
}

func TestPlatform(t *testing.T) {
	p := New()
	var _ platform.Platform = p

	assert.Equal(t, "linux", p.Name())
	assert.True(t, p.IsSupported())
	assert.True(t, p.Scheduler().IsSupported())
}

func TestWallpaperService_Set(t *testing.T) {
	r := &recorder{}
	s := &WallpaperService{run: r.run}

	require.NoError(t, s.Set("/home/me/images/Quiet Lake.png"))

	uri := "file:///home/me/images/Quiet%20Lake.png"
	assert.Equal(t, [][]string{
		{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", uri},
		{"gsettings", "set", "org.gnome.desktop.background", "picture-uri-dark", uri},
	}, r.calls)
}

func TestWallpaperService_SetFlatpak(t *testing.T) {
	r := &recorder{}
	s := &WallpaperService{run: r.run, flatpak: true}

	require.NoError(t, s.Set("/a.png"))
	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"flatpak-spawn", "--host", "gsettings", "set"}, r.calls[0][:4])
}

func TestWallpaperService_SetFailure(t *testing.T) {
	r := &recorder{err: errors.New("exit status 1"), output: "No such schema\n"}
	s := &WallpaperService{run: r.run}

	err := s.Set("/a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "picture-uri")
	assert.Contains(t, err.Error(), "No such schema")
	assert.Len(t, r.calls, 1)
}

func TestWallpaperService_Get(t *testing.T) {
	tests := []struct {
		output  string
		want    string
		wantErr bool
	}{
		{"'file:///home/me/a.png'\n", "/home/me/a.png", false},
		{"'file:///home/me/Quiet%20Lake.png'\n", "/home/me/Quiet Lake.png", false},
		{"'/plain/path.png'", "/plain/path.png", false},
		{"''\n", "", true},
		{"'https://example.com/a.png'", "", true},
	}

	for _, tt := range tests {
		r := &recorder{output: tt.output}
		got, err := (&WallpaperService{run: r.run}).Get()
		if tt.wantErr {
			assert.Error(t, err, tt.output)
			continue
		}
		require.NoError(t, err, tt.output)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, []string{"gsettings", "get", "org.gnome.desktop.background", "picture-uri"}, r.calls[0])
	}
}

func writeModes(t *testing.T, root, connector string, modes ...string) {
	t.Helper()
	dir := filepath.Join(root, connector)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modes"), []byte(strings.Join(modes, "\n")+"\n"), 0644))
}

func TestDisplayService_Resolution(t *testing.T) {
	root := t.TempDir()
	writeModes(t, root, "card0-eDP-1", "1920x1080", "1280x720")
	writeModes(t, root, "card0-HDMI-A-1", "2560x1440", "3840x1600", "1920x1200")
	writeModes(t, root, "card0-DP-1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "card0"), 0755))

	res, err := (&DisplayService{root: root}).Resolution()
	require.NoError(t, err)
	assert.Equal(t, platform.Resolution{Width: 3840, Height: 1600}, res)
}

func TestDisplayService_NoModes(t *testing.T) {
	root := t.TempDir()
	writeModes(t, root, "card0-DP-1")

	_, err := (&DisplayService{root: root}).Resolution()
	assert.Error(t, err)

	_, err = (&DisplayService{root: filepath.Join(root, "missing")}).Resolution()
	assert.Error(t, err)
}

type fakeManager struct {
	calls  []string
	state  string
	closed int
	err    error
}

func (m *fakeManager) Reload() error {
	m.calls = append(m.calls, "Reload")
	return m.err
}

func (m *fakeManager) EnableUnitFiles(files []string) error {
	m.calls = append(m.calls, "Enable "+strings.Join(files, ","))
	return m.err
}

func (m *fakeManager) DisableUnitFiles(files []string) error {
	m.calls = append(m.calls, "Disable "+strings.Join(files, ","))
	return m.err
}

func (m *fakeManager) StartUnit(name string) error {
	m.calls = append(m.calls, "Start "+name)
	return m.err
}

func (m *fakeManager) StopUnit(name string) error {
	m.calls = append(m.calls, "Stop "+name)
	return m.err
}

func (m *fakeManager) ActiveState(name string) (string, error) {
	return m.state, m.err
}

func (m *fakeManager) Close() error {
	m.closed++
	return nil
}

func newTestScheduler(t *testing.T, m *fakeManager) *SchedulerService {
	t.Helper()
	return &SchedulerService{
		unitDir: filepath.Join(t.TempDir(), "systemd", "user"),
		connect: func() (unitManager, error) { return m, nil },
	}
}

func TestScheduler_Install(t *testing.T) {
	m := &fakeManager{}
	s := newTestScheduler(t, m)

	err := s.Install(platform.SchedulerConfig{
		Label:       "wallgarden",
		Description: "Rotate wallpaper",
		Command:     "/opt/my apps/wallgarden",
		Args:        []string{"random", "--pinned"},
		Interval:    15 * time.Minute,
	})
	require.NoError(t, err)

	service, err := os.ReadFile(filepath.Join(s.unitDir, "wallgarden.service"))
	require.NoError(t, err)
	assert.Contains(t, string(service), "Description=Rotate wallpaper\n")
	assert.Contains(t, string(service), `ExecStart="/opt/my apps/wallgarden" random --pinned`)
	assert.Contains(t, string(service), "Type=oneshot")

	timer, err := os.ReadFile(filepath.Join(s.unitDir, "wallgarden.timer"))
	require.NoError(t, err)
	assert.Contains(t, string(timer), "OnUnitActiveSec=900s\n")
	assert.Contains(t, string(timer), "OnActiveSec=900s\n")
	assert.Contains(t, string(timer), "Unit=wallgarden.service")
	assert.Contains(t, string(timer), "WantedBy=timers.target")

	assert.Equal(t, []string{"Reload", "Enable wallgarden.timer"}, m.calls)
	assert.Equal(t, 1, m.closed)
}

func TestScheduler_InstallRunAtLoad(t *testing.T) {
	s := newTestScheduler(t, &fakeManager{})

	require.NoError(t, s.Install(platform.SchedulerConfig{
		Label: "wallgarden", Command: "/bin/wallgarden", Interval: time.Minute, RunAtLoad: true,
	}))

	timer, err := os.ReadFile(filepath.Join(s.unitDir, "wallgarden.timer"))
	require.NoError(t, err)
	assert.Contains(t, string(timer), "OnActiveSec=1s\n")
	assert.Contains(t, string(timer), "OnUnitActiveSec=60s\n")
}

func TestScheduler_InstallInvalid(t *testing.T) {
	s := newTestScheduler(t, &fakeManager{})

	assert.Error(t, s.Install(platform.SchedulerConfig{Label: "x", Command: "/bin/x"}))
	assert.Error(t, s.Install(platform.SchedulerConfig{Command: "/bin/x", Interval: time.Minute}))
}

func TestScheduler_StatusStartStop(t *testing.T) {
	m := &fakeManager{state: "active"}
	s := newTestScheduler(t, m)

	status, err := s.Status("wallgarden")
	require.NoError(t, err)
	assert.False(t, status.Installed)
	assert.False(t, status.Running)

	require.NoError(t, s.Install(platform.SchedulerConfig{
		Label: "wallgarden", Command: "/bin/wallgarden", Interval: 10 * time.Minute,
	}))
	require.NoError(t, s.Start("wallgarden"))

	status, err = s.Status("wallgarden")
	require.NoError(t, err)
	assert.True(t, status.Installed)
	assert.True(t, status.Running)
	assert.Equal(t, 10*time.Minute, status.Interval)
	assert.Equal(t, filepath.Join(s.unitDir, "wallgarden.timer"), status.UnitPath)

	require.NoError(t, s.Stop("wallgarden"))
	m.state = "inactive"

	status, err = s.Status("wallgarden")
	require.NoError(t, err)
	assert.False(t, status.Running)

	assert.Contains(t, m.calls, "Start wallgarden.timer")
	assert.Contains(t, m.calls, "Stop wallgarden.timer")
}

func TestScheduler_StatusWithoutManager(t *testing.T) {
	s := newTestScheduler(t, &fakeManager{})
	require.NoError(t, s.Install(platform.SchedulerConfig{
		Label: "wallgarden", Command: "/bin/wallgarden", Interval: time.Minute,
	}))
	s.connect = func() (unitManager, error) { return nil, errors.New("no session bus") }

	status, err := s.Status("wallgarden")
	require.NoError(t, err)
	assert.True(t, status.Installed)
	assert.False(t, status.Running)

	assert.Error(t, s.Start("wallgarden"))
}

func TestScheduler_Uninstall(t *testing.T) {
	m := &fakeManager{}
	s := newTestScheduler(t, m)

	require.NoError(t, s.Uninstall("wallgarden"))
	assert.Empty(t, m.calls)

	require.NoError(t, s.Install(platform.SchedulerConfig{
		Label: "wallgarden", Command: "/bin/wallgarden", Interval: time.Minute,
	}))
	m.calls = nil

	require.NoError(t, s.Uninstall("wallgarden"))
	assert.Equal(t, []string{"Stop wallgarden.timer", "Disable wallgarden.timer", "Reload"}, m.calls)

	_, err := os.Stat(filepath.Join(s.unitDir, "wallgarden.timer"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(s.unitDir, "wallgarden.service"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecStart(t *testing.T) {
	assert.Equal(t, "/bin/wallgarden random", execStart("/bin/wallgarden", []string{"random"}))
	assert.Equal(t, `"/a b/c" "--config=/x y.toml"`, execStart("/a b/c", []string{"--config=/x y.toml"}))
	assert.Equal(t, `/bin/x 100%%`, execStart("/bin/x", []string{"100%"}))
	assert.Equal(t, `/bin/x "say \"hi\""`, execStart("/bin/x", []string{`say "hi"`}))
	assert.Equal(t, `/bin/x ""`, execStart("/bin/x", []string{""}))
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, parseInterval("[Timer]\nOnActiveSec=1s\nOnUnitActiveSec=300s\n"))
	assert.Equal(t, time.Duration(0), parseInterval("[Timer]\n"))
}

func TestFileManagerService(t *testing.T) {
	t.Run("reveal over dbus", func(t *testing.T) {
		r := &recorder{}
		var got []string
		s := &FileManagerService{run: r.run, showItems: func(uris []string) error {
			got = uris
			return nil
		}}

		require.NoError(t, s.Reveal("/data/images/a.png"))
		assert.Equal(t, []string{"file:///data/images/a.png"}, got)
		assert.Empty(t, r.calls)
	})

	t.Run("reveal falls back to xdg-open", func(t *testing.T) {
		r := &recorder{}
		s := &FileManagerService{run: r.run, showItems: func([]string) error {
			return errors.New("service unknown")
		}}

		require.NoError(t, s.Reveal("/data/images/a.png"))
		assert.Equal(t, [][]string{{"xdg-open", "/data/images"}}, r.calls)
	})

	t.Run("open failure", func(t *testing.T) {
		r := &recorder{err: errors.New("exit status 4")}
		s := &FileManagerService{run: r.run, flatpak: true}

		err := s.Open("/a.png")
		require.Error(t, err)
		assert.Equal(t, []string{"flatpak-spawn", "--host", "xdg-open", "/a.png"}, r.calls[0])
	})
}
