// SPDX-License-Identifier: MPL-2.0

package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/runnerd/runnerd/internal/session"
)

// MaskedValue replaces the value of masked variables.
const MaskedValue = "********"

const (
	StatusUnspecified Status = iota
	// StatusLiteral shows values as they are.
	StatusLiteral
	// StatusHidden omits values.
	StatusHidden
	// StatusMasked replaces values with MaskedValue.
	StatusMasked
)

type (
	// Status is the redaction applied to a record.
	Status int32

	// Source is the session store surface the monitor reads from.
	Source interface {
		Vars(id string) ([]session.Var, error)
		Subscribe(id string) (<-chan struct{}, func(), error)
	}

	// Record is the redacted view of one variable.
	Record struct {
		Name          string
		Spec          string
		Origin        string
		OriginalValue string
		ResolvedValue string
		Status        Status
		CreateTime    time.Time
		UpdateTime    time.Time
		Errors        []session.VarError
	}

	// Snapshot is every variable of a session at one point in time, sorted
	// by name.
	Snapshot struct {
		SessionID string
		Records   []Record
	}

	// Monitor builds snapshots from a Source.
	Monitor struct {
		src    Source
		logger *log.Logger
	}
)

func (s Status) String() string {
	switch s {
	case StatusLiteral:
		return "literal"
	case StatusHidden:
		return "hidden"
	case StatusMasked:
		return "masked"
	default:
		return "unspecified"
	}
}

// New creates a Monitor reading from src.
func New(src Source, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Monitor{src: src, logger: logger}
}

// StatusFor maps a variable spec to its redaction.
func StatusFor(spec session.Spec) Status {
	switch spec {
	case session.SpecSecret, session.SpecPassword:
		return StatusMasked
	case session.SpecOpaque:
		return StatusHidden
	default:
		return StatusLiteral
	}
}

// Redact returns the record of v with its values hidden according to its
// spec.
func Redact(v session.Var) Record {
	r := Record{
		Name:       v.Name,
		Spec:       v.Spec.String(),
		Origin:     v.Origin,
		Status:     StatusFor(v.Spec),
		CreateTime: v.CreateTime,
		UpdateTime: v.UpdateTime,
		Errors:     append([]session.VarError(nil), v.Errors...),
	}
	switch r.Status {
	case StatusLiteral:
		r.OriginalValue = v.OriginalValue
		r.ResolvedValue = v.Value
	case StatusMasked:
		r.ResolvedValue = MaskedValue
	}
	return r
}

// Snapshot returns the current redacted state of a session.
func (m *Monitor) Snapshot(id string) (Snapshot, error) {
	vars, err := m.src.Vars(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{SessionID: id, Records: make([]Record, 0, len(vars))}
	for _, v := range vars {
		snap.Records = append(snap.Records, Redact(v))
	}
	return snap, nil
}

// Watch streams the current snapshot and then a new one after each change.
// Changes that arrive while the caller is still reading coalesce into one
// snapshot of the latest state. The channel is closed when ctx is done or
// the session is deleted.
func (m *Monitor) Watch(ctx context.Context, id string) (<-chan Snapshot, error) {
	changes, cancel, err := m.src.Subscribe(id)
	if err != nil {
		return nil, err
	}
	first, err := m.Snapshot(id)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to take initial snapshot: %w", err)
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer cancel()

		snap := first
		for {
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-changes:
				if !ok {
					m.logger.Debug("session gone, closing monitor", "session", id)
					return
				}
			case <-ctx.Done():
				return
			}

			if snap, err = m.Snapshot(id); err != nil {
				m.logger.Debug("closing monitor", "session", id, "error", err)
				return
			}
		}
	}()
	return out, nil
}
