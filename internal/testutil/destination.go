package testutil

import (
	"errors"

	"victory-go/internal/victory"
)

// ErrInjected is returned by FaultyDestination for the paths it is told to fail.
var ErrInjected = errors.New("injected failure")

// FaultyDestination wraps a Destination and fails selected calls.
type FaultyDestination struct {
	victory.Destination

	// FailRead and FailWrite hold relative paths whose ReadFile or WriteFile
	// returns ErrInjected.
	FailRead  map[string]bool
	FailWrite map[string]bool
	// FailListAfter makes ListFilesNext fail once it has been called this
	// many times. Zero never fails.
	FailListAfter int

	listCalls int
}

// NewFaultyDestination wraps d without any faults configured.
func NewFaultyDestination(d victory.Destination) *FaultyDestination {
	return &FaultyDestination{
		Destination: d,
		FailRead:    make(map[string]bool),
		FailWrite:   make(map[string]bool),
	}
}

func (f *FaultyDestination) ListFilesNext(count int) ([]*victory.FileRecord, error) {
	f.listCalls++
	if f.FailListAfter > 0 && f.listCalls > f.FailListAfter {
		return nil, ErrInjected
	}
	return f.Destination.ListFilesNext(count)
}

func (f *FaultyDestination) ReadFile(rec *victory.FileRecord) error {
	if f.FailRead[rec.RelativePath] {
		return ErrInjected
	}
	return f.Destination.ReadFile(rec)
}

func (f *FaultyDestination) WriteFile(rec *victory.FileRecord) error {
	if f.FailWrite[rec.RelativePath] {
		return ErrInjected
	}
	return f.Destination.WriteFile(rec)
}

var _ victory.Destination = (*FaultyDestination)(nil)
