package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
)

const DefaultReorderDelay = 600 * time.Millisecond

// WatchlistAPI is the subset of services.WatchlistService a [WatchlistSession] needs.
type WatchlistAPI interface {
	Items(ctx context.Context, listID int64) ([]models.WatchlistItem, error)
	AddItem(ctx context.Context, listID int64, item services.NewWatchlistItem) (models.WatchlistItem, error)
	UpdateStatus(ctx context.Context, listID, itemID int64, status models.WatchStatus) (models.WatchlistItem, error)
	RemoveItem(ctx context.Context, listID, itemID int64) error
	Reorder(ctx context.Context, listID int64, itemIDs []int64) error
}

// WatchlistOpts configures a [WatchlistSession].
type WatchlistOpts struct {
	ReorderDelay time.Duration // zero uses DefaultReorderDelay
	Progress     chan<- ProgressUpdate
	Logger       *log.Logger
	OnChange     func(items []models.WatchlistItem)
}

// WatchlistSession edits one watchlist optimistically.
//
// Status changes, additions and removals roll back on failure. Manual reordering is
// applied locally and committed after ReorderDelay; a failed commit keeps the local order
// and is reported as a [ReorderFailed] update.
type WatchlistSession struct {
	api    WatchlistAPI
	listID int64
	items  *Collection[models.WatchlistItem]

	mu       sync.Mutex
	timer    *time.Timer
	tempID   int64
	delay    time.Duration
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

func NewWatchlistSession(api WatchlistAPI, listID int64, opts WatchlistOpts) *WatchlistSession {
	s := &WatchlistSession{
		api:      api,
		listID:   listID,
		delay:    opts.ReorderDelay,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
	if s.delay <= 0 {
		s.delay = DefaultReorderDelay
	}
	if s.logger == nil {
		s.logger = shared.NopLogger()
	}
	s.logger = shared.WithLogger(s.logger, "watchlist", listID)
	s.items = NewCollection(nil, CollectionOpts[models.WatchlistItem]{
		Progress: opts.Progress,
		Logger:   s.logger,
		OnChange: opts.OnChange,
	})
	return s
}

// Load replaces the local items with the server's.
func (s *WatchlistSession) Load(ctx context.Context) error {
	items, err := s.api.Items(ctx, s.listID)
	if err != nil {
		return err
	}
	s.items.Replace(items)
	sendProgress(s.progress, sessionLoadedUpdate("watchlist items", len(items)))
	return nil
}

// Items returns the current local state.
func (s *WatchlistSession) Items() []models.WatchlistItem {
	return s.items.Items()
}

func (s *WatchlistSession) nextTempID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempID--
	return s.tempID
}

func indexOf[E models.Entity[E]](items []E, key int64) (int, error) {
	i := slices.IndexFunc(items, func(e E) bool { return e.Key() == key })
	if i < 0 {
		return -1, fmt.Errorf("%w: item %d", shared.ErrNotFound, key)
	}
	return i, nil
}

// Add appends a placeholder for item and swaps it for the created entry once the server
// confirms. Adding a title already on the list fails with [shared.ErrDuplicate].
func (s *WatchlistSession) Add(ctx context.Context, item services.NewWatchlistItem) (*PendingMutation[models.WatchlistItem], error) {
	if item.MovieID <= 0 {
		return nil, fmt.Errorf("%w: movie id must be positive", shared.ErrInvalidArgument)
	}
	tmp := s.nextTempID()

	return s.items.Apply(ctx, Mutation[models.WatchlistItem]{
		Name: "add to watchlist",
		Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) {
			for _, existing := range prev {
				if existing.MovieID == item.MovieID {
					return nil, fmt.Errorf("%w: %q is already on this watchlist", shared.ErrDuplicate, existing.Title)
				}
			}
			return append(prev, models.WatchlistItem{
				ID:         tmp,
				MovieID:    item.MovieID,
				Title:      item.Title,
				PosterPath: item.PosterPath,
				MediaType:  item.MediaType,
				Status:     models.StatusPlanned,
				Position:   len(prev),
			}), nil
		},
		Remote: func(ctx context.Context, _ []models.WatchlistItem) ([]models.WatchlistItem, error) {
			created, err := s.api.AddItem(ctx, s.listID, item)
			if err != nil {
				return nil, err
			}
			return []models.WatchlistItem{created}, nil
		},
		Reconcile: func(current, server []models.WatchlistItem) []models.WatchlistItem {
			return swapPlaceholder(current, tmp, server)
		},
	})
}

// swapPlaceholder replaces the entry keyed tmp with the server's copy.
func swapPlaceholder[E models.Entity[E]](current []E, tmp int64, server []E) []E {
	if len(server) == 0 {
		return current
	}
	i, err := indexOf(current, tmp)
	if err != nil {
		return current
	}
	current[i] = server[0].MergeDisplay(current[i])
	return current
}

// SetStatus changes an item's status.
func (s *WatchlistSession) SetStatus(ctx context.Context, itemID int64, status models.WatchStatus) (*PendingMutation[models.WatchlistItem], error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}

	return s.items.Apply(ctx, Mutation[models.WatchlistItem]{
		Name: "status change",
		Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) {
			i, err := indexOf(prev, itemID)
			if err != nil {
				return nil, err
			}
			prev[i].Status = status
			return prev, nil
		},
		Remote: func(ctx context.Context, _ []models.WatchlistItem) ([]models.WatchlistItem, error) {
			updated, err := s.api.UpdateStatus(ctx, s.listID, itemID, status)
			if err != nil {
				return nil, err
			}
			return []models.WatchlistItem{updated}, nil
		},
	})
}

// Remove drops an item from the list.
func (s *WatchlistSession) Remove(ctx context.Context, itemID int64) (*PendingMutation[models.WatchlistItem], error) {
	return s.items.Apply(ctx, Mutation[models.WatchlistItem]{
		Name: "remove from watchlist",
		Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) {
			i, err := indexOf(prev, itemID)
			if err != nil {
				return nil, err
			}
			return slices.Delete(prev, i, i+1), nil
		},
		Remote: func(ctx context.Context, _ []models.WatchlistItem) ([]models.WatchlistItem, error) {
			return nil, s.api.RemoveItem(ctx, s.listID, itemID)
		},
	})
}

// Move places itemID at index to (clamped to the list bounds) and renumbers positions.
//
// The new order is committed after the reorder delay; further moves restart the delay.
// ctx bounds the eventual commit.
func (s *WatchlistSession) Move(ctx context.Context, itemID int64, to int) error {
	err := s.items.Update(func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) {
		from, err := indexOf(prev, itemID)
		if err != nil {
			return nil, err
		}
		to = min(max(to, 0), len(prev)-1)
		item := prev[from]
		next := slices.Insert(slices.Delete(prev, from, from+1), to, item)
		for i := range next {
			next[i].Position = i
		}
		return next, nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if _, err := s.FlushOrder(ctx); err != nil {
			s.logger.Debug("reorder not committed", "error", err)
		}
	})
	return nil
}

// FlushOrder commits the local order now, cancelling any pending delayed commit.
//
// The commit is best-effort: on failure the local order is kept and a [ReorderFailed]
// update is sent.
func (s *WatchlistSession) FlushOrder(ctx context.Context) (*PendingMutation[models.WatchlistItem], error) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.items.Apply(ctx, Mutation[models.WatchlistItem]{
		Name:       "reorder",
		BestEffort: true,
		Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) {
			return prev, nil
		},
		Remote: func(ctx context.Context, next []models.WatchlistItem) ([]models.WatchlistItem, error) {
			ids := make([]int64, 0, len(next))
			for _, item := range next {
				if item.ID > 0 {
					ids = append(ids, item.ID)
				}
			}
			if err := s.api.Reorder(ctx, s.listID, ids); err != nil {
				sendProgress(s.progress, reorderFailedUpdate(s.listID, err))
				return nil, err
			}
			return nil, nil
		},
	})
}

// Wait blocks until every started remote call has resolved. A delayed reorder that has
// not fired yet is not waited for.
func (s *WatchlistSession) Wait() {
	s.items.Wait()
}

// Detach drops the pending reorder and stops applying remote outcomes.
func (s *WatchlistSession) Detach() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.items.Detach()
}
