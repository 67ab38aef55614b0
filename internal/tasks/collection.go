package tasks

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/google/uuid"
)

// Mutation describes one optimistic change to a [Collection].
type Mutation[E models.Entity[E]] struct {
	Name string

	// Local computes the post-mutation state from a copy of the current state. An error
	// rejects the mutation before anything changes.
	Local func(prev []E) ([]E, error)

	// Remote persists the change. It returns the entities the server sent back, which
	// may be nil.
	Remote func(ctx context.Context, next []E) ([]E, error)

	// Reconcile folds the server entities into the current state. Defaults to
	// [ReplaceByKey].
	Reconcile func(current, server []E) []E

	// BestEffort keeps the local state when Remote fails instead of rolling back.
	BestEffort bool
}

// PendingMutation is an in-flight optimistic change. Snapshot holds the state from just
// before the change and is what a failure restores.
type PendingMutation[E any] struct {
	ID       string
	Name     string
	Snapshot []E

	done chan struct{}
	err  error
}

// Done is closed once the remote call has resolved and the outcome has been applied.
func (p *PendingMutation[E]) Done() <-chan struct{} { return p.done }

// Wait blocks until the mutation resolves and returns the remote error, if any.
func (p *PendingMutation[E]) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReplaceByKey swaps every current entity that has a server counterpart for the server
// copy, keeping known display fields.
func ReplaceByKey[E models.Entity[E]](current, server []E) []E {
	if len(server) == 0 {
		return current
	}
	byKey := make(map[int64]E, len(server))
	for _, item := range server {
		byKey[item.Key()] = item
	}
	for i, item := range current {
		if s, ok := byKey[item.Key()]; ok {
			current[i] = s.MergeDisplay(item)
		}
	}
	return current
}

// CollectionOpts configures a [Collection].
type CollectionOpts[E any] struct {
	Progress chan<- ProgressUpdate
	Logger   *log.Logger
	OnChange func(items []E) // called with a copy after every state change
}

// Collection owns an ordered set of collaborative entities and applies optimistic
// mutations to it.
//
// State changes immediately on Apply. The remote call runs in the background; success
// reconciles the server's entities, failure restores the pre-mutation snapshot in full.
type Collection[E models.Entity[E]] struct {
	mu       sync.Mutex
	items    []E
	pending  map[string]*PendingMutation[E]
	detached bool
	wg       sync.WaitGroup
	progress chan<- ProgressUpdate
	onChange func([]E)
	logger   *log.Logger
}

func NewCollection[E models.Entity[E]](items []E, opts CollectionOpts[E]) *Collection[E] {
	c := &Collection[E]{
		items:    slices.Clone(items),
		pending:  make(map[string]*PendingMutation[E]),
		progress: opts.Progress,
		onChange: opts.OnChange,
		logger:   opts.Logger,
	}
	if c.logger == nil {
		c.logger = shared.NopLogger()
	}
	return c
}

// Items returns a copy of the current state.
func (c *Collection[E]) Items() []E {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Replace installs authoritative server state, keeping known display fields.
func (c *Collection[E]) Replace(items []E) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return
	}
	c.items = models.MergeCollection(c.items, items)
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	c.changed(snapshot)
}

// Update applies a local-only change with no remote call.
func (c *Collection[E]) Update(fn func(prev []E) ([]E, error)) error {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return shared.ErrDetached
	}
	next, err := fn(slices.Clone(c.items))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.items = next
	snapshot := slices.Clone(next)
	c.mu.Unlock()

	c.changed(snapshot)
	return nil
}

// Apply runs m.Local, replaces the state with its result and starts m.Remote in the
// background. The returned mutation resolves once the outcome has been applied.
func (c *Collection[E]) Apply(ctx context.Context, m Mutation[E]) (*PendingMutation[E], error) {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return nil, shared.ErrDetached
	}

	prev := slices.Clone(c.items)
	next, err := m.Local(slices.Clone(prev))
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	pm := &PendingMutation[E]{
		ID:       uuid.NewString(),
		Name:     m.Name,
		Snapshot: prev,
		done:     make(chan struct{}),
	}
	c.items = next
	c.pending[pm.ID] = pm
	c.wg.Add(1)
	snapshot := slices.Clone(next)
	c.mu.Unlock()

	c.logger.Debug("mutation applied", "name", m.Name, "id", pm.ID)
	sendProgress(c.progress, mutationAppliedUpdate(m.Name, pm.ID))
	c.changed(snapshot)

	go c.commit(ctx, m, pm, slices.Clone(next))
	return pm, nil
}

func (c *Collection[E]) commit(ctx context.Context, m Mutation[E], pm *PendingMutation[E], next []E) {
	defer c.wg.Done()
	defer close(pm.done)

	var (
		server []E
		err    = shared.ErrNotImplemented
	)
	if m.Remote != nil {
		server, err = m.Remote(ctx, next)
	}

	c.mu.Lock()
	delete(c.pending, pm.ID)
	pm.err = err

	if c.detached {
		c.mu.Unlock()
		return
	}

	var update ProgressUpdate
	switch {
	case err == nil:
		reconcile := m.Reconcile
		if reconcile == nil {
			reconcile = ReplaceByKey[E]
		}
		c.items = reconcile(c.items, server)
		update = mutationConfirmedUpdate(m.Name, pm.ID)
	case m.BestEffort:
		// local state stands; the caller reports the failure
	default:
		c.items = slices.Clone(pm.Snapshot)
		update = mutationRolledBackUpdate(m.Name, pm.ID, err)
	}
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("mutation failed", "name", m.Name, "id", pm.ID, "rolled_back", !m.BestEffort, "error", err)
	}
	if update.Message != "" {
		sendProgress(c.progress, update)
	}
	c.changed(snapshot)
}

func (c *Collection[E]) changed(items []E) {
	if c.onChange != nil {
		c.onChange(items)
	}
}

// Pending returns how many mutations are still waiting on the server.
func (c *Collection[E]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Wait blocks until every started remote call has resolved.
func (c *Collection[E]) Wait() {
	c.wg.Wait()
}

// Detach stops applying outcomes. In-flight remote calls still resolve their
// PendingMutation but leave the state alone.
func (c *Collection[E]) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}
