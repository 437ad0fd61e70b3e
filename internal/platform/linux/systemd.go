//go:build linux

package linux

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	systemdDest      = "org.freedesktop.systemd1"
	systemdPath      = dbus.ObjectPath("/org/freedesktop/systemd1")
	systemdManager   = "org.freedesktop.systemd1.Manager"
	systemdUnit      = "org.freedesktop.systemd1.Unit"
	errNoSuchUnit    = "org.freedesktop.systemd1.NoSuchUnit"
	unitStateUnknown = "inactive"
)

// unitManager is the subset of the systemd manager API the scheduler drives.
type unitManager interface {
	Reload() error
	EnableUnitFiles(files []string) error
	DisableUnitFiles(files []string) error
	StartUnit(name string) error
	StopUnit(name string) error
	ActiveState(name string) (string, error)
	Close() error
}

// dbusManager talks to the systemd user instance over the session bus.
type dbusManager struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func connectUserManager() (unitManager, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &dbusManager{
		conn: conn,
		obj:  conn.Object(systemdDest, systemdPath),
	}, nil
}

func (m *dbusManager) Reload() error {
	return m.call("Reload")
}

func (m *dbusManager) EnableUnitFiles(files []string) error {
	// runtime=false, force=true
	return m.call("EnableUnitFiles", files, false, true)
}

func (m *dbusManager) DisableUnitFiles(files []string) error {
	return m.call("DisableUnitFiles", files, false)
}

func (m *dbusManager) StartUnit(name string) error {
	return m.call("StartUnit", name, "replace")
}

func (m *dbusManager) StopUnit(name string) error {
	return m.call("StopUnit", name, "replace")
}

func (m *dbusManager) ActiveState(name string) (string, error) {
	var unitPath dbus.ObjectPath
	err := m.obj.Call(systemdManager+".GetUnit", 0, name).Store(&unitPath)
	if err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == errNoSuchUnit {
			return unitStateUnknown, nil
		}
		return "", fmt.Errorf("GetUnit %s: %w", name, err)
	}

	v, err := m.conn.Object(systemdDest, unitPath).GetProperty(systemdUnit + ".ActiveState")
	if err != nil {
		return "", fmt.Errorf("read ActiveState of %s: %w", name, err)
	}
	state, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState type %s", v.Signature())
	}
	return state, nil
}

func (m *dbusManager) Close() error {
	return m.conn.Close()
}

func (m *dbusManager) call(method string, args ...interface{}) error {
	if call := m.obj.Call(systemdManager+"."+method, 0, args...); call.Err != nil {
		return fmt.Errorf("systemd %s: %w", method, call.Err)
	}
	return nil
}
