// Package background applies an image as the desktop background and records
// it as the current one.
package background

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Setter is the OS mechanism that changes the desktop background. It must set
// both the light and dark variants.
type Setter interface {
	Set(path string) error
}

// Marker records the current background.
type Marker interface {
	MarkCurrent(path string) error
}

type Applier struct {
	setter Setter
	store  Marker
	logger *zap.Logger
}

func New(setter Setter, st Marker, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{setter: setter, store: st, logger: logger}
}

// Apply sets path as the background. A setter failure is logged and reported
// as applied=false with a nil error, leaving the store untouched. Store
// errors after a successful set are returned.
func (a *Applier) Apply(path string) (applied bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	if err := a.setter.Set(abs); err != nil {
		a.logger.Error("failed to set background", zap.String("path", abs), zap.Error(err))
		return false, nil
	}

	if err := a.store.MarkCurrent(abs); err != nil {
		return true, fmt.Errorf("background set but state not saved: %w", err)
	}
	a.logger.Debug("background applied", zap.String("path", abs))
	return true, nil
}
