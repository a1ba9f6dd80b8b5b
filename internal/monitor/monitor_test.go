// SPDX-License-Identifier: MPL-2.0

package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/runnerd/runnerd/internal/session"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    session.Var
		want Record
	}{
		{
			name: "plain",
			v:    session.Var{Name: "A", OriginalValue: "a", Value: "a", Spec: session.SpecPlain, Origin: "session"},
			want: Record{Name: "A", Spec: "Plain", Origin: "session", OriginalValue: "a", ResolvedValue: "a", Status: StatusLiteral},
		},
		{
			name: "no spec",
			v:    session.Var{Name: "A", Value: "a"},
			want: Record{Name: "A", Spec: "Plain", ResolvedValue: "a", Status: StatusLiteral},
		},
		{
			name: "secret",
			v:    session.Var{Name: "TOKEN", OriginalValue: "t", Value: "t", Spec: session.SpecSecret},
			want: Record{Name: "TOKEN", Spec: "Secret", ResolvedValue: MaskedValue, Status: StatusMasked},
		},
		{
			name: "password",
			v:    session.Var{Name: "PW", OriginalValue: "p", Value: "p", Spec: session.SpecPassword},
			want: Record{Name: "PW", Spec: "Password", ResolvedValue: MaskedValue, Status: StatusMasked},
		},
		{
			name: "opaque",
			v:    session.Var{Name: "BLOB", OriginalValue: "b", Value: "b", Spec: session.SpecOpaque},
			want: Record{Name: "BLOB", Spec: "Opaque", Status: StatusHidden},
		},
		{
			name: "errors are kept",
			v: session.Var{Name: "PW", Spec: session.SpecPassword, Errors: []session.VarError{
				{Code: session.ErrCodeValueMissing, Message: "value missing"},
			}},
			want: Record{Name: "PW", Spec: "Password", ResolvedValue: MaskedValue, Status: StatusMasked, Errors: []session.VarError{
				{Code: session.ErrCodeValueMissing, Message: "value missing"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, Redact(tt.v)); diff != "" {
				t.Errorf("Redact() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	sess, err := store.Create(t.Context(), session.CreateOptions{Env: []string{"ZED=1", "ALPHA=2"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	snap, err := New(store, nil).Snapshot(sess.ID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	var names []string
	for _, r := range snap.Records {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"ALPHA", "ZED"}, names); diff != "" {
		t.Errorf("record order mismatch (-want +got):\n%s", diff)
	}
	if snap.SessionID != sess.ID {
		t.Errorf("SessionID = %q, want %q", snap.SessionID, sess.ID)
	}
}

func TestSnapshotUnknownSession(t *testing.T) {
	t.Parallel()

	_, err := New(session.NewStore(), nil).Snapshot("missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Snapshot() error = %v, want ErrSessionNotFound", err)
	}
}

func receive(t *testing.T, ch <-chan Snapshot) (Snapshot, bool) {
	t.Helper()

	select {
	case snap, ok := <-ch:
		return snap, ok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}, false
	}
}

func TestWatch(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	sess, _ := store.Create(t.Context(), session.CreateOptions{Env: []string{"A=1"}})
	ch, err := New(store, nil).Watch(t.Context(), sess.ID)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	first, ok := receive(t, ch)
	if !ok || len(first.Records) != 1 {
		t.Fatalf("first snapshot = %+v, want one record", first)
	}

	if err := store.SetEnv(sess.ID, []session.Assignment{{Name: "B", Value: "2"}}, nil); err != nil {
		t.Fatalf("SetEnv() error = %v", err)
	}
	second, ok := receive(t, ch)
	if !ok || len(second.Records) != 2 {
		t.Fatalf("second snapshot = %+v, want two records", second)
	}

	if err := store.Delete(t.Context(), sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := receive(t, ch); ok {
		t.Error("channel still open after session delete")
	}
}

func TestWatchCoalescesChanges(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	sess, _ := store.Create(t.Context(), session.CreateOptions{})
	ch, err := New(store, nil).Watch(t.Context(), sess.ID)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	receive(t, ch)

	for _, name := range []string{"A", "B", "C"} {
		if err := store.SetEnv(sess.ID, []session.Assignment{{Name: name, Value: "x"}}, nil); err != nil {
			t.Fatalf("SetEnv() error = %v", err)
		}
	}

	// A burst yields at most one snapshot per change and always ends on the
	// latest state.
	for i := range 3 {
		snap, ok := receive(t, ch)
		if !ok {
			t.Fatal("channel closed")
		}
		if len(snap.Records) == 3 {
			return
		}
		if i == 2 {
			t.Errorf("no snapshot with the latest state, last had %d records", len(snap.Records))
		}
	}
}

func TestWatchCancel(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	sess, _ := store.Create(t.Context(), session.CreateOptions{})
	ctx, cancel := context.WithCancel(t.Context())
	ch, err := New(store, nil).Watch(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	receive(t, ch)

	cancel()
	if _, ok := receive(t, ch); ok {
		t.Error("channel still open after cancel")
	}
}

func TestWatchUnknownSession(t *testing.T) {
	t.Parallel()

	if _, err := New(session.NewStore(), nil).Watch(t.Context(), "missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Watch() error = %v, want ErrSessionNotFound", err)
	}
}
