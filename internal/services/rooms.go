package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const roomsPath = "/api/rooms/"

// NewRoomMovie is the payload for proposing a title to a room's queue.
type NewRoomMovie struct {
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title,omitempty"`
	PosterPath string `json:"poster_path,omitempty"`
}

// RoomService is the collaboration client for watch-party rooms.
type RoomService struct {
	sender Sender
}

func NewRoomService(sender Sender) *RoomService {
	return &RoomService{sender: sender}
}

func roomPath(roomID int64) string {
	return roomsPath + id(roomID) + "/"
}

// Rooms returns the rooms the current user belongs to.
func (s *RoomService) Rooms(ctx context.Context) ([]models.Room, error) {
	return do[[]models.Room](ctx, s.sender, get(roomsPath, nil))
}

// Create opens a new room owned by the current user.
func (s *RoomService) Create(ctx context.Context, name string) (models.Room, error) {
	if err := requireText("name", name); err != nil {
		return models.Room{}, err
	}
	return do[models.Room](ctx, s.sender, post(roomsPath, map[string]string{"name": name}))
}

// Join enters a room by invite code.
func (s *RoomService) Join(ctx context.Context, code string) (models.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := requireText("code", code); err != nil {
		return models.Room{}, err
	}
	return do[models.Room](ctx, s.sender, post(roomsPath+"join/", map[string]string{"code": code}))
}

// Room returns one room.
func (s *RoomService) Room(ctx context.Context, roomID int64) (models.Room, error) {
	if err := requireID("room id", roomID); err != nil {
		return models.Room{}, err
	}
	return do[models.Room](ctx, s.sender, get(roomPath(roomID), nil))
}

// Members lists the room's participants.
func (s *RoomService) Members(ctx context.Context, roomID int64) ([]models.Member, error) {
	return do[[]models.Member](ctx, s.sender, get(roomPath(roomID)+"members/", nil))
}

// Movies returns the room's voted queue.
func (s *RoomService) Movies(ctx context.Context, roomID int64) ([]models.RoomMovie, error) {
	return do[[]models.RoomMovie](ctx, s.sender, get(roomPath(roomID)+"movies/", nil))
}

// AddMovie proposes a title and returns the created queue entry.
func (s *RoomService) AddMovie(ctx context.Context, roomID int64, movie NewRoomMovie) (models.RoomMovie, error) {
	if err := requireID("movie id", movie.MovieID); err != nil {
		return models.RoomMovie{}, err
	}
	return do[models.RoomMovie](ctx, s.sender, post(roomPath(roomID)+"movies/", movie))
}

// Vote records the current user's vote (-1, 0 or 1) and returns the updated entry.
func (s *RoomService) Vote(ctx context.Context, roomID, movieID int64, value int) (models.RoomMovie, error) {
	if value < -1 || value > 1 {
		return models.RoomMovie{}, fmt.Errorf("%w: vote must be -1, 0 or 1, got %d", shared.ErrValidation, value)
	}
	return do[models.RoomMovie](ctx, s.sender, post(roomPath(roomID)+"movies/"+id(movieID)+"/vote/", map[string]int{"value": value}))
}

// RemoveMovie drops an entry from the queue.
func (s *RoomService) RemoveMovie(ctx context.Context, roomID, movieID int64) error {
	return send(ctx, s.sender, del(roomPath(roomID)+"movies/"+id(movieID)+"/"))
}
