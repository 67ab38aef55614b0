package tasks

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
)

type fakeWatchlistAPI struct {
	mu         sync.Mutex
	items      []models.WatchlistItem
	err        error
	reorderErr error
	reordered  [][]int64
	blank      bool
	gate       chan struct{}
	nextID     int64
}

func (f *fakeWatchlistAPI) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeWatchlistAPI) respond(item models.WatchlistItem) models.WatchlistItem {
	if f.blank {
		item.Title = ""
		item.PosterPath = ""
	}
	return item
}

func (f *fakeWatchlistAPI) Items(context.Context, int64) ([]models.WatchlistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items), nil
}

func (f *fakeWatchlistAPI) AddItem(_ context.Context, _ int64, item services.NewWatchlistItem) (models.WatchlistItem, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.WatchlistItem{}, f.err
	}
	f.nextID++
	return f.respond(models.WatchlistItem{
		ID:      100 + f.nextID,
		MovieID: item.MovieID,
		Title:   item.Title,
		Status:  models.StatusPlanned,
	}), nil
}

func (f *fakeWatchlistAPI) UpdateStatus(_ context.Context, _, itemID int64, status models.WatchStatus) (models.WatchlistItem, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.WatchlistItem{}, f.err
	}
	for _, item := range f.items {
		if item.ID == itemID {
			item.Status = status
			return f.respond(item), nil
		}
	}
	return models.WatchlistItem{}, shared.ErrNotFound
}

func (f *fakeWatchlistAPI) RemoveItem(context.Context, int64, int64) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeWatchlistAPI) Reorder(_ context.Context, _ int64, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reordered = append(f.reordered, slices.Clone(ids))
	return f.reorderErr
}

func (f *fakeWatchlistAPI) Reordered() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.reordered)
}

func sampleItems() []models.WatchlistItem {
	return []models.WatchlistItem{
		{ID: 1, MovieID: 11, Title: "Heat", PosterPath: "/heat.jpg", Status: models.StatusPlanned, Position: 0},
		{ID: 2, MovieID: 22, Title: "Inception", PosterPath: "/inception.jpg", Status: models.StatusPlanned, Position: 1},
		{ID: 3, MovieID: 33, Title: "Alien", PosterPath: "/alien.jpg", Status: models.StatusWatching, Position: 2},
	}
}

func itemIDs(items []models.WatchlistItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func loadedWatchlist(t *testing.T, api *fakeWatchlistAPI, opts WatchlistOpts) *WatchlistSession {
	t.Helper()
	if api.items == nil {
		api.items = sampleItems()
	}
	s := NewWatchlistSession(api, 1, opts)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func TestWatchlistSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Failed status change restores the snapshot exactly", func(t *testing.T) {
		api := &fakeWatchlistAPI{err: errors.New("server unavailable"), gate: make(chan struct{})}
		s := loadedWatchlist(t, api, WatchlistOpts{})
		before := s.Items()

		pm, err := s.SetStatus(ctx, 2, models.StatusWatched)
		if err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		if got := s.Items()[1].Status; got != models.StatusWatched {
			t.Errorf("optimistic status = %q, want watched", got)
		}
		if !slices.Equal(pm.Snapshot, before) {
			t.Error("Snapshot does not match pre-mutation state")
		}

		close(api.gate)
		if err := pm.Wait(ctx); err == nil {
			t.Fatal("Wait() error = nil, want remote failure")
		}
		if after := s.Items(); !slices.Equal(after, before) {
			t.Errorf("Items() after rollback = %+v, want %+v", after, before)
		}
	})

	t.Run("Server response with blank display fields keeps local ones", func(t *testing.T) {
		api := &fakeWatchlistAPI{blank: true}
		s := loadedWatchlist(t, api, WatchlistOpts{})

		pm, err := s.SetStatus(ctx, 2, models.StatusWatched)
		if err != nil {
			t.Fatal(err)
		}
		if err := pm.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}

		item := s.Items()[1]
		if item.Title != "Inception" || item.PosterPath != "/inception.jpg" {
			t.Errorf("display fields = %q, %q", item.Title, item.PosterPath)
		}
		if item.Status != models.StatusWatched {
			t.Errorf("Status = %q, want watched", item.Status)
		}
	})

	t.Run("Rejects invalid input before changing anything", func(t *testing.T) {
		api := &fakeWatchlistAPI{}
		s := loadedWatchlist(t, api, WatchlistOpts{})
		before := s.Items()

		if _, err := s.SetStatus(ctx, 2, "binged"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("SetStatus(invalid) error = %v, want ErrValidation", err)
		}
		if _, err := s.SetStatus(ctx, 99, models.StatusWatched); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("SetStatus(unknown) error = %v, want ErrNotFound", err)
		}
		if _, err := s.Add(ctx, services.NewWatchlistItem{MovieID: 22, Title: "Inception"}); !errors.Is(err, shared.ErrDuplicate) {
			t.Errorf("Add(duplicate) error = %v, want ErrDuplicate", err)
		}
		if _, err := s.Add(ctx, services.NewWatchlistItem{}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Add(no id) error = %v, want ErrInvalidArgument", err)
		}
		if !slices.Equal(s.Items(), before) {
			t.Error("state changed on rejected input")
		}
	})

	t.Run("Add swaps the placeholder for the created item", func(t *testing.T) {
		api := &fakeWatchlistAPI{blank: true, gate: make(chan struct{})}
		s := loadedWatchlist(t, api, WatchlistOpts{})

		pm, err := s.Add(ctx, services.NewWatchlistItem{MovieID: 44, Title: "Arrival", PosterPath: "/arrival.jpg"})
		if err != nil {
			t.Fatal(err)
		}
		placeholder := s.Items()[3]
		if placeholder.ID >= 0 || placeholder.Title != "Arrival" {
			t.Errorf("placeholder = %+v", placeholder)
		}

		close(api.gate)
		if err := pm.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		created := s.Items()[3]
		if created.ID != 101 {
			t.Errorf("ID = %d, want 101", created.ID)
		}
		if created.Title != "Arrival" || created.PosterPath != "/arrival.jpg" {
			t.Errorf("display fields regressed: %+v", created)
		}
	})

	t.Run("Failed removal puts the item back in place", func(t *testing.T) {
		api := &fakeWatchlistAPI{err: errors.New("forbidden")}
		progress := make(chan ProgressUpdate, 8)
		s := loadedWatchlist(t, api, WatchlistOpts{Progress: progress})
		before := s.Items()

		pm, err := s.Remove(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if pm.Wait(ctx) == nil {
			t.Fatal("Wait() error = nil")
		}
		if !slices.Equal(s.Items(), before) {
			t.Errorf("Items() = %v, want %v", itemIDs(s.Items()), itemIDs(before))
		}

		var rolledBack bool
		for len(progress) > 0 {
			if u := <-progress; u.Phase == MutationRolledBack {
				rolledBack = true
			}
		}
		if !rolledBack {
			t.Error("no rollback update sent")
		}
	})

	t.Run("Move renumbers and FlushOrder commits", func(t *testing.T) {
		api := &fakeWatchlistAPI{}
		s := loadedWatchlist(t, api, WatchlistOpts{ReorderDelay: time.Hour})

		if err := s.Move(ctx, 3, 0); err != nil {
			t.Fatal(err)
		}
		items := s.Items()
		if got := itemIDs(items); !slices.Equal(got, []int64{3, 1, 2}) {
			t.Errorf("order = %v, want [3 1 2]", got)
		}
		for i, item := range items {
			if item.Position != i {
				t.Errorf("item %d Position = %d, want %d", item.ID, item.Position, i)
			}
		}

		pm, err := s.FlushOrder(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := pm.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if got := api.Reordered(); len(got) != 1 || !slices.Equal(got[0], []int64{3, 1, 2}) {
			t.Errorf("Reorder calls = %v", got)
		}
	})

	t.Run("Failed reorder keeps the local order", func(t *testing.T) {
		api := &fakeWatchlistAPI{reorderErr: errors.New("boom")}
		progress := make(chan ProgressUpdate, 8)
		s := loadedWatchlist(t, api, WatchlistOpts{ReorderDelay: time.Hour, Progress: progress})

		s.Move(ctx, 1, 10)
		pm, _ := s.FlushOrder(ctx)
		if pm.Wait(ctx) == nil {
			t.Fatal("Wait() error = nil, want reorder failure")
		}
		if got := itemIDs(s.Items()); !slices.Equal(got, []int64{2, 3, 1}) {
			t.Errorf("order = %v, want [2 3 1]", got)
		}

		var reported bool
		for len(progress) > 0 {
			u := <-progress
			if u.Phase == MutationRolledBack {
				t.Error("reorder failure should not roll back")
			}
			if u.Phase == ReorderFailed {
				reported = true
			}
		}
		if !reported {
			t.Error("no reorder failure update sent")
		}
	})

	t.Run("Consecutive moves commit once after the delay", func(t *testing.T) {
		api := &fakeWatchlistAPI{}
		s := loadedWatchlist(t, api, WatchlistOpts{ReorderDelay: 20 * time.Millisecond})

		s.Move(ctx, 3, 0)
		s.Move(ctx, 2, 0)

		waitFor(t, func() bool { return len(api.Reordered()) > 0 })
		s.Wait()
		time.Sleep(40 * time.Millisecond)

		got := api.Reordered()
		if len(got) != 1 {
			t.Fatalf("Reorder calls = %d, want 1", len(got))
		}
		if !slices.Equal(got[0], []int64{2, 3, 1}) {
			t.Errorf("committed order = %v, want [2 3 1]", got[0])
		}
	})

	t.Run("Detached session ignores late outcomes", func(t *testing.T) {
		api := &fakeWatchlistAPI{err: errors.New("late failure"), gate: make(chan struct{})}
		s := loadedWatchlist(t, api, WatchlistOpts{})

		pm, err := s.SetStatus(ctx, 1, models.StatusWatched)
		if err != nil {
			t.Fatal(err)
		}
		s.Detach()
		close(api.gate)
		s.Wait()

		if pm.Wait(ctx) == nil {
			t.Error("Wait() error = nil, want remote failure")
		}
		if got := s.Items()[0].Status; got != models.StatusWatched {
			t.Errorf("Status = %q, detached state should not roll back", got)
		}
		if _, err := s.Remove(ctx, 1); !errors.Is(err, shared.ErrDetached) {
			t.Errorf("Remove() after detach error = %v, want ErrDetached", err)
		}
	})
}

func TestCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("Tracks pending mutations", func(t *testing.T) {
		gate := make(chan struct{})
		c := NewCollection(sampleItems(), CollectionOpts[models.WatchlistItem]{})

		pm, err := c.Apply(ctx, Mutation[models.WatchlistItem]{
			Name:  "noop",
			Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) { return prev, nil },
			Remote: func(context.Context, []models.WatchlistItem) ([]models.WatchlistItem, error) {
				<-gate
				return nil, nil
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if pm.ID == "" {
			t.Error("PendingMutation ID is empty")
		}
		if c.Pending() != 1 {
			t.Errorf("Pending() = %d, want 1", c.Pending())
		}

		close(gate)
		<-pm.Done()
		if c.Pending() != 0 {
			t.Errorf("Pending() = %d, want 0", c.Pending())
		}
	})

	t.Run("Replace keeps known display fields", func(t *testing.T) {
		var changes int
		c := NewCollection(sampleItems(), CollectionOpts[models.WatchlistItem]{
			OnChange: func([]models.WatchlistItem) { changes++ },
		})
		c.Replace([]models.WatchlistItem{{ID: 2, Status: models.StatusWatched}, {ID: 9, Title: "New"}})

		items := c.Items()
		if len(items) != 2 || items[0].Title != "Inception" || items[1].Title != "New" {
			t.Errorf("Items() = %+v", items)
		}
		if changes != 1 {
			t.Errorf("OnChange calls = %d, want 1", changes)
		}
	})

	t.Run("Wait times out with the context", func(t *testing.T) {
		gate := make(chan struct{})
		defer close(gate)
		c := NewCollection(sampleItems(), CollectionOpts[models.WatchlistItem]{})
		pm, _ := c.Apply(ctx, Mutation[models.WatchlistItem]{
			Name:  "slow",
			Local: func(prev []models.WatchlistItem) ([]models.WatchlistItem, error) { return prev, nil },
			Remote: func(context.Context, []models.WatchlistItem) ([]models.WatchlistItem, error) {
				<-gate
				return nil, nil
			},
		})

		wctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		if err := pm.Wait(wctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() error = %v, want deadline exceeded", err)
		}
	})
}

type fakeRoomAPI struct {
	mu     sync.Mutex
	movies []models.RoomMovie
	err    error
	votes  int
}

func (f *fakeRoomAPI) Room(_ context.Context, id int64) (models.Room, error) {
	return models.Room{ID: id, Name: "Friday", Code: "ABC123"}, nil
}

func (f *fakeRoomAPI) Members(context.Context, int64) ([]models.Member, error) {
	return []models.Member{{ID: 1, Username: "ana", IsOwner: true}, {ID: 2, Username: "kai"}}, nil
}

func (f *fakeRoomAPI) Movies(context.Context, int64) ([]models.RoomMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.movies), nil
}

func (f *fakeRoomAPI) AddMovie(_ context.Context, _ int64, m services.NewRoomMovie) (models.RoomMovie, error) {
	if f.err != nil {
		return models.RoomMovie{}, f.err
	}
	return models.RoomMovie{ID: 500, MovieID: m.MovieID}, nil
}

func (f *fakeRoomAPI) Vote(_ context.Context, _, movieID int64, value int) (models.RoomMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes++
	if f.err != nil {
		return models.RoomMovie{}, f.err
	}
	for _, m := range f.movies {
		if m.ID == movieID {
			m.Score += value - m.UserVote
			m.UserVote = value
			m.Title = ""
			return m, nil
		}
	}
	return models.RoomMovie{}, shared.ErrNotFound
}

func (f *fakeRoomAPI) RemoveMovie(context.Context, int64, int64) error {
	return f.err
}

func sampleRoomMovies() []models.RoomMovie {
	return []models.RoomMovie{
		{ID: 1, MovieID: 11, Title: "Heat", Score: 1},
		{ID: 2, MovieID: 22, Title: "Inception", Score: 3, UserVote: 1},
		{ID: 3, MovieID: 33, Title: "Alien", Score: 1},
	}
}

func TestRoomSession(t *testing.T) {
	ctx := context.Background()

	load := func(t *testing.T, api *fakeRoomAPI) *RoomSession {
		t.Helper()
		api.movies = sampleRoomMovies()
		s := NewRoomSession(api, 7, RoomOpts{})
		if err := s.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return s
	}

	t.Run("Load fills room, members and queue", func(t *testing.T) {
		s := load(t, &fakeRoomAPI{})
		if s.Room().Code != "ABC123" {
			t.Errorf("Room() = %+v", s.Room())
		}
		if len(s.Members()) != 2 || len(s.Movies()) != 3 {
			t.Errorf("members = %d, movies = %d", len(s.Members()), len(s.Movies()))
		}
	})

	t.Run("Ranked orders by score with stable ties", func(t *testing.T) {
		s := load(t, &fakeRoomAPI{})
		var ids []int64
		for _, m := range s.Ranked() {
			ids = append(ids, m.ID)
		}
		if !slices.Equal(ids, []int64{2, 1, 3}) {
			t.Errorf("Ranked() = %v, want [2 1 3]", ids)
		}
	})

	t.Run("Vote confirms without losing the title", func(t *testing.T) {
		s := load(t, &fakeRoomAPI{})
		pm, err := s.Vote(ctx, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.Movies()[0]; got.Score != 2 || got.UserVote != 1 {
			t.Errorf("optimistic vote = %+v", got)
		}
		if err := pm.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if got := s.Movies()[0]; got.Title != "Heat" || got.Score != 2 {
			t.Errorf("confirmed vote = %+v", got)
		}
	})

	t.Run("Failed vote rolls back score and vote", func(t *testing.T) {
		api := &fakeRoomAPI{}
		s := load(t, api)
		api.err = errors.New("closed")
		before := s.Movies()

		pm, err := s.Vote(ctx, 2, -1)
		if err != nil {
			t.Fatal(err)
		}
		if pm.Wait(ctx) == nil {
			t.Fatal("Wait() error = nil")
		}
		if !slices.Equal(s.Movies(), before) {
			t.Errorf("Movies() = %+v, want %+v", s.Movies(), before)
		}
	})

	t.Run("Invalid vote never reaches the server", func(t *testing.T) {
		api := &fakeRoomAPI{}
		s := load(t, api)
		if _, err := s.Vote(ctx, 1, 2); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("Vote(2) error = %v, want ErrValidation", err)
		}
		if api.votes != 0 {
			t.Errorf("server votes = %d, want 0", api.votes)
		}
	})

	t.Run("Add and remove", func(t *testing.T) {
		s := load(t, &fakeRoomAPI{})

		if _, err := s.Add(ctx, services.NewRoomMovie{MovieID: 11}); !errors.Is(err, shared.ErrDuplicate) {
			t.Errorf("Add(duplicate) error = %v, want ErrDuplicate", err)
		}

		pm, err := s.Add(ctx, services.NewRoomMovie{MovieID: 44, Title: "Arrival"})
		if err != nil {
			t.Fatal(err)
		}
		pm.Wait(ctx)
		added := s.Movies()[3]
		if added.ID != 500 || added.Title != "Arrival" {
			t.Errorf("added = %+v", added)
		}

		pm, err = s.Remove(ctx, 500)
		if err != nil {
			t.Fatal(err)
		}
		pm.Wait(ctx)
		if len(s.Movies()) != 3 {
			t.Errorf("Movies() len = %d, want 3", len(s.Movies()))
		}

		s.Detach()
		if _, err := s.Vote(ctx, 1, 1); !errors.Is(err, shared.ErrDetached) {
			t.Errorf("Vote() after detach error = %v, want ErrDetached", err)
		}
	})
}
