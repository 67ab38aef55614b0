package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/sync/errgroup"
)

// RoomAPI is the subset of services.RoomService a [RoomSession] needs.
type RoomAPI interface {
	Room(ctx context.Context, roomID int64) (models.Room, error)
	Members(ctx context.Context, roomID int64) ([]models.Member, error)
	Movies(ctx context.Context, roomID int64) ([]models.RoomMovie, error)
	AddMovie(ctx context.Context, roomID int64, movie services.NewRoomMovie) (models.RoomMovie, error)
	Vote(ctx context.Context, roomID, movieID int64, value int) (models.RoomMovie, error)
	RemoveMovie(ctx context.Context, roomID, movieID int64) error
}

// RoomOpts configures a [RoomSession].
type RoomOpts struct {
	Progress chan<- ProgressUpdate
	Logger   *log.Logger
	OnChange func(movies []models.RoomMovie)
}

// RoomSession edits one watch-party room's queue optimistically.
type RoomSession struct {
	api    RoomAPI
	roomID int64
	movies *Collection[models.RoomMovie]

	mu       sync.Mutex
	room     models.Room
	members  []models.Member
	tempID   int64
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

func NewRoomSession(api RoomAPI, roomID int64, opts RoomOpts) *RoomSession {
	s := &RoomSession{api: api, roomID: roomID, progress: opts.Progress, logger: opts.Logger}
	if s.logger == nil {
		s.logger = shared.NopLogger()
	}
	s.logger = shared.WithLogger(s.logger, "room", roomID)
	s.movies = NewCollection(nil, CollectionOpts[models.RoomMovie]{
		Progress: opts.Progress,
		Logger:   s.logger,
		OnChange: opts.OnChange,
	})
	return s
}

// Load fetches the room, its members and its queue in parallel.
func (s *RoomSession) Load(ctx context.Context) error {
	var (
		room    models.Room
		members []models.Member
		movies  []models.RoomMovie
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		room, err = s.api.Room(gctx, s.roomID)
		return err
	})
	g.Go(func() (err error) {
		members, err = s.api.Members(gctx, s.roomID)
		return err
	})
	g.Go(func() (err error) {
		movies, err = s.api.Movies(gctx, s.roomID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.room = room
	s.members = members
	s.mu.Unlock()

	s.movies.Replace(movies)
	sendProgress(s.progress, sessionLoadedUpdate("room movies", len(movies)))
	return nil
}

// Room returns the last loaded room record.
func (s *RoomSession) Room() models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Members returns the last loaded participants.
func (s *RoomSession) Members() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// Movies returns the queue in server order.
func (s *RoomSession) Movies() []models.RoomMovie {
	return s.movies.Items()
}

// Ranked returns the queue ordered by score, highest first. Ties keep queue order.
func (s *RoomSession) Ranked() []models.RoomMovie {
	movies := s.movies.Items()
	slices.SortStableFunc(movies, func(a, b models.RoomMovie) int { return b.Score - a.Score })
	return movies
}

// Add proposes a title. Proposing a title already queued fails with [shared.ErrDuplicate].
func (s *RoomSession) Add(ctx context.Context, movie services.NewRoomMovie) (*PendingMutation[models.RoomMovie], error) {
	if movie.MovieID <= 0 {
		return nil, fmt.Errorf("%w: movie id must be positive", shared.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.tempID--
	tmp := s.tempID
	s.mu.Unlock()

	return s.movies.Apply(ctx, Mutation[models.RoomMovie]{
		Name: "add to room",
		Local: func(prev []models.RoomMovie) ([]models.RoomMovie, error) {
			for _, existing := range prev {
				if existing.MovieID == movie.MovieID {
					return nil, fmt.Errorf("%w: %q is already in the queue", shared.ErrDuplicate, existing.Title)
				}
			}
			return append(prev, models.RoomMovie{
				ID:         tmp,
				MovieID:    movie.MovieID,
				Title:      movie.Title,
				PosterPath: movie.PosterPath,
			}), nil
		},
		Remote: func(ctx context.Context, _ []models.RoomMovie) ([]models.RoomMovie, error) {
			created, err := s.api.AddMovie(ctx, s.roomID, movie)
			if err != nil {
				return nil, err
			}
			return []models.RoomMovie{created}, nil
		},
		Reconcile: func(current, server []models.RoomMovie) []models.RoomMovie {
			return swapPlaceholder(current, tmp, server)
		},
	})
}

// Vote sets the current user's vote on a queued entry and adjusts its score locally.
func (s *RoomSession) Vote(ctx context.Context, entryID int64, value int) (*PendingMutation[models.RoomMovie], error) {
	return s.movies.Apply(ctx, Mutation[models.RoomMovie]{
		Name: "vote",
		Local: func(prev []models.RoomMovie) ([]models.RoomMovie, error) {
			i, err := indexOf(prev, entryID)
			if err != nil {
				return nil, err
			}
			if err := prev[i].ApplyVote(value); err != nil {
				return nil, err
			}
			return prev, nil
		},
		Remote: func(ctx context.Context, _ []models.RoomMovie) ([]models.RoomMovie, error) {
			updated, err := s.api.Vote(ctx, s.roomID, entryID, value)
			if err != nil {
				return nil, err
			}
			return []models.RoomMovie{updated}, nil
		},
	})
}

// Remove drops an entry from the queue.
func (s *RoomSession) Remove(ctx context.Context, entryID int64) (*PendingMutation[models.RoomMovie], error) {
	return s.movies.Apply(ctx, Mutation[models.RoomMovie]{
		Name: "remove from room",
		Local: func(prev []models.RoomMovie) ([]models.RoomMovie, error) {
			i, err := indexOf(prev, entryID)
			if err != nil {
				return nil, err
			}
			return slices.Delete(prev, i, i+1), nil
		},
		Remote: func(ctx context.Context, _ []models.RoomMovie) ([]models.RoomMovie, error) {
			return nil, s.api.RemoveMovie(ctx, s.roomID, entryID)
		},
	})
}

// Wait blocks until every started remote call has resolved.
func (s *RoomSession) Wait() {
	s.movies.Wait()
}

// Detach stops applying remote outcomes.
func (s *RoomSession) Detach() {
	s.movies.Detach()
}
