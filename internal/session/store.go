// SPDX-License-Identifier: MPL-2.0

package session

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/runnerd/runnerd/internal/envfile"
)

type (
	// DeleteHook runs before a session is removed from the store.
	DeleteHook func(ctx context.Context, id string)

	// EnvLoader reads a project's env files in load order.
	EnvLoader interface {
		LoadProject(ctx context.Context, root string, files []string) ([]envfile.Entry, error)
	}

	// Option configures a Store.
	Option func(*Store)

	// Store is the in-memory session registry. It is safe for concurrent use.
	// Lock order is Store.mu before entry.mu, never the reverse.
	Store struct {
		mu         sync.RWMutex
		sessions   map[string]*entry
		mostRecent string
		seq        uint64
		hooks      []DeleteHook

		loader EnvLoader
		now    func() time.Time
		logger *log.Logger
	}

	entry struct {
		// mu serializes every mutation of this session.
		mu sync.Mutex

		id         string
		seq        uint64
		createTime time.Time
		storeType  StoreType
		metadata   map[string]string
		project    *Project
		vars       *varStore
		subs       map[int]chan struct{}
		nextSub    int
		deleted    bool
	}
)

// WithEnvLoader sets the loader used for project env files.
func WithEnvLoader(l EnvLoader) Option {
	return func(s *Store) { s.loader = l }
}

// WithClock overrides the time source for variable timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithDeleteHook registers a hook that runs before any session is deleted.
func WithDeleteHook(h DeleteHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		now:      time.Now,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnDelete registers a delete hook after construction.
func (s *Store) OnDelete(h DeleteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Create adds a new session and makes it the most recent one.
func (s *Store) Create(ctx context.Context, opts CreateOptions) (Session, error) {
	assignments, err := ParseEnv(opts.Env, OriginSession)
	if err != nil {
		return Session{}, err
	}

	e := &entry{
		id:         uuid.NewString(),
		createTime: s.now(),
		storeType:  opts.StoreType,
		metadata:   maps.Clone(opts.Metadata),
		project:    opts.Project.clone(),
		vars:       newVarStore(opts.StoreType == StoreTypeOwl),
		subs:       make(map[int]chan struct{}),
	}
	e.vars.reset(assignments, e.createTime)

	if opts.Project != nil {
		projectVars, err := s.readProject(ctx, opts.Project)
		if err != nil {
			return Session{}, err
		}
		for _, a := range projectVars {
			e.vars.set(a, e.createTime)
		}
	}

	s.mu.Lock()
	s.seq++
	e.seq = s.seq
	s.sessions[e.id] = e
	s.mostRecent = e.id
	s.mu.Unlock()

	s.logger.Debug("session created", "id", e.id, "store", e.storeType)

	return e.copy(), nil
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return Session{}, notFound(id)
	}
	return e.copy(), nil
}

// List returns copies of all sessions in creation order.
func (s *Store) List() []Session {
	s.mu.RLock()
	entries := slices.Collect(maps.Values(s.sessions))
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.copy())
		}
		e.mu.Unlock()
	}
	return out
}

// Update replaces the non-nil fields of a session. Env replaces the whole
// variable store; a new project is loaded into the store after it.
func (s *Store) Update(ctx context.Context, id string, fields UpdateFields) (Session, error) {
	var assignments []Assignment
	if fields.Env != nil {
		var err error
		if assignments, err = ParseEnv(fields.Env, OriginSession); err != nil {
			return Session{}, err
		}
	}

	var projectVars []Assignment
	if fields.Project != nil {
		var err error
		if projectVars, err = s.readProject(ctx, fields.Project); err != nil {
			return Session{}, err
		}
	}

	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return Session{}, notFound(id)
	}
	now := s.now()
	if fields.Metadata != nil {
		e.metadata = maps.Clone(fields.Metadata)
	}
	if fields.Env != nil {
		e.vars.reset(assignments, now)
		e.notify()
	}
	if fields.Project != nil {
		e.project = fields.Project.clone()
		if len(fields.Project.EnvLoadOrder) == 0 && fields.Project.Root == "" {
			e.project = nil
		}
		for _, a := range projectVars {
			e.vars.set(a, now)
		}
		e.notify()
	}
	out := e.copy()
	e.mu.Unlock()

	s.Touch(id)
	return out, nil
}

// Delete runs the delete hooks, removes the session and closes its
// subscriptions.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}

	s.mu.RLock()
	hooks := slices.Clone(s.hooks)
	s.mu.RUnlock()
	for _, h := range hooks {
		h(ctx, id)
	}

	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	delete(s.sessions, id)
	if s.mostRecent == id {
		s.mostRecent = ""
	}
	s.mu.Unlock()

	e.mu.Lock()
	e.deleted = true
	for key, ch := range e.subs {
		close(ch)
		delete(e.subs, key)
	}
	e.mu.Unlock()

	s.logger.Debug("session deleted", "id", id)
	return nil
}

// MostRecent returns the most recently touched session, if any.
func (s *Store) MostRecent() (Session, bool) {
	s.mu.RLock()
	id := s.mostRecent
	s.mu.RUnlock()
	if id == "" {
		return Session{}, false
	}
	sess, err := s.Get(id)
	if err != nil {
		return Session{}, false
	}
	return sess, true
}

// Touch marks a session as the most recent one. Unknown ids are ignored.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		s.mostRecent = id
	}
}

// Environ returns the session env as NAME=VALUE entries.
func (s *Store) Environ(id string) ([]string, error) {
	var env []string
	err := s.withEntry(id, func(e *entry) { env = e.vars.environ() })
	return env, err
}

// Lookup returns the current value of one variable.
func (s *Store) Lookup(id, name string) (value string, ok bool, err error) {
	err = s.withEntry(id, func(e *entry) { value, ok = e.vars.get(name) })
	return value, ok, err
}

// Vars returns copies of the session's variables sorted by name.
func (s *Store) Vars(id string) ([]Var, error) {
	var vars []Var
	err := s.withEntry(id, func(e *entry) { vars = e.vars.snapshot() })
	return vars, err
}

// SetEnv applies assignments and removals atomically and notifies
// subscribers when anything changed.
func (s *Store) SetEnv(id string, set []Assignment, unset []string) error {
	return s.withEntry(id, func(e *entry) {
		now := s.now()
		changed := false
		for _, a := range set {
			changed = e.vars.set(a, now) || changed
		}
		for _, name := range unset {
			changed = e.vars.unset(name) || changed
		}
		if changed {
			e.notify()
		}
	})
}

// LoadProject loads a project's env files into the session store. Later
// files override earlier ones.
func (s *Store) LoadProject(ctx context.Context, id string, project *Project) error {
	if project == nil {
		return nil
	}
	assignments, err := s.readProject(ctx, project)
	if err != nil {
		return err
	}
	if err := s.SetEnv(id, assignments, nil); err != nil {
		return err
	}
	return s.withEntry(id, func(e *entry) { e.project = project.clone() })
}

// Subscribe returns a channel that receives a value after every env
// mutation of the session. Notifications coalesce: a slow reader sees one
// pending signal. The channel is closed when the session is deleted or
// cancel is called.
func (s *Store) Subscribe(id string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	var (
		owner *entry
		key   int
	)
	err := s.withEntry(id, func(e *entry) {
		owner = e
		key = e.nextSub
		e.nextSub++
		e.subs[key] = ch
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e := owner
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[key]; ok {
				close(sub)
				delete(e.subs, key)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Store) readProject(ctx context.Context, project *Project) ([]Assignment, error) {
	if s.loader == nil || project.Root == "" {
		return nil, nil
	}
	entries, err := s.loader.LoadProject(ctx, project.Root, project.EnvLoadOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", project.Root, err)
	}

	out := make([]Assignment, 0, len(entries))
	for _, ent := range entries {
		if _, err := ParseEnv([]string{ent.Name + "=" + ent.Value}, ""); err != nil {
			return nil, fmt.Errorf("%s: %w", ent.Origin, err)
		}
		spec, _ := ParseSpec(ent.Spec)
		out = append(out, Assignment{Name: ent.Name, Value: ent.Value, Spec: spec, Origin: ent.Origin})
	}
	return out, nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, notFound(id)
	}
	return e, nil
}

func (s *Store) withEntry(id string, fn func(*entry)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return notFound(id)
	}
	fn(e)
	return nil
}

// copy must be called with e.mu held.
func (e *entry) copy() Session {
	return Session{
		ID:         e.id,
		Env:        e.vars.environ(),
		Metadata:   maps.Clone(e.metadata),
		Project:    e.project.clone(),
		StoreType:  e.storeType,
		CreateTime: e.createTime,
	}
}

// notify must be called with e.mu held.
func (e *entry) notify() {
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}
