package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrKeyNotFound is returned by [KeyValue] implementations for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// KeyValue is the client-local persistence used by the [Store].
type KeyValue interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error
}

// EventKind describes what changed the session.
type EventKind int

const (
	EventSet EventKind = iota
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventSet:
		return "set"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers once per Set or Clear call.
type Event struct {
	Kind          EventKind
	Authenticated bool
}

// Listener receives session events. It runs on the goroutine that called Set or Clear.
type Listener func(Event)

// Store holds the credential pair and notifies subscribers of changes.
type Store struct {
	mu        sync.RWMutex
	kv        KeyValue
	cred      models.Credential
	listeners map[int]Listener
	nextID    int
	logger    *log.Logger
}

// NewStore creates a store backed by kv and hydrates it from persisted values.
func NewStore(kv KeyValue, logger *log.Logger) (*Store, error) {
	if kv == nil {
		kv = NewMemoryKV()
	}
	if logger == nil {
		logger = shared.NopLogger()
	}

	s := &Store{kv: kv, listeners: make(map[int]Listener), logger: logger}

	access, err := lookup(kv, AccessTokenKey)
	if err != nil {
		return nil, err
	}
	refresh, err := lookup(kv, RefreshTokenKey)
	if err != nil {
		return nil, err
	}
	s.cred = models.Credential{AccessToken: access, RefreshToken: refresh}

	return s, nil
}

func lookup(kv KeyValue, key string) (string, error) {
	v, err := kv.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

// Get returns the current credential and whether it carries an access token.
func (s *Store) Get() (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.cred.Authenticated()
}

// Set persists both tokens and notifies subscribers.
//
// An empty refresh token removes the persisted one.
func (s *Store) Set(cred models.Credential) error {
	s.mu.Lock()
	err := s.persist(cred)
	if err == nil {
		s.cred = cred
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.logger.Debug("session updated", "authenticated", cred.Authenticated())
	s.broadcast(listeners, Event{Kind: EventSet, Authenticated: cred.Authenticated()})
	return nil
}

// Clear removes both tokens and notifies subscribers.
//
// The in-memory credential is dropped even if the backend fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cred = models.Credential{}
	err := errors.Join(s.remove(AccessTokenKey), s.remove(RefreshTokenKey))
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Debug("session cleared")
	s.broadcast(listeners, Event{Kind: EventCleared})
	return err
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) persist(cred models.Credential) error {
	if err := s.kv.Put(AccessTokenKey, cred.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if cred.RefreshToken == "" {
		return s.remove(RefreshTokenKey)
	}
	if err := s.kv.Put(RefreshTokenKey, cred.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return nil
}

func (s *Store) remove(key string) error {
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// snapshotListeners copies the listener set in subscription order. Callers hold s.mu.
func (s *Store) snapshotListeners() []Listener {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = s.listeners[id]
	}
	return out
}

func (s *Store) broadcast(listeners []Listener, e Event) {
	for _, l := range listeners {
		l(e)
	}
}
