package models

import (
	"fmt"

	"github.com/desertthunder/reelx/internal/shared"
)

// WatchStatus is the progress of a watchlist item.
type WatchStatus string

const (
	StatusPlanned  WatchStatus = "planned"
	StatusWatching WatchStatus = "watching"
	StatusWatched  WatchStatus = "watched"
)

// Valid reports whether s is a known status.
func (s WatchStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusWatching, StatusWatched:
		return true
	}
	return false
}

// Watchlist is a named, ordered list owned by the current user.
type Watchlist struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	ItemCount int             `json:"item_count,omitempty"`
	Items     []WatchlistItem `json:"items,omitempty"`
}

// WatchlistItem is one entry of a watchlist. Title and PosterPath are denormalized.
type WatchlistItem struct {
	ID         int64       `json:"id"`
	MovieID    int64       `json:"movie_id"`
	Title      string      `json:"title,omitempty"`
	PosterPath string      `json:"poster_path,omitempty"`
	MediaType  MediaType   `json:"media_type,omitempty"`
	Status     WatchStatus `json:"status"`
	Position   int         `json:"position"`
}

func (w WatchlistItem) Key() int64 { return w.ID }

// MergeDisplay returns w with empty display fields taken from local.
func (w WatchlistItem) MergeDisplay(local WatchlistItem) WatchlistItem {
	w.Title = keep(w.Title, local.Title)
	w.PosterPath = keep(w.PosterPath, local.PosterPath)
	return w
}

// Room is a watch-party room joined by invite code.
type Room struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	OwnerID int64  `json:"owner_id,omitempty"`
}

// Member is a user participating in a room.
type Member struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsOwner  bool   `json:"is_owner,omitempty"`
}

// RoomMovie is one entry in a room's voted queue. Title and PosterPath are denormalized.
type RoomMovie struct {
	ID         int64  `json:"id"`
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title,omitempty"`
	PosterPath string `json:"poster_path,omitempty"`
	Score      int    `json:"score"`
	UserVote   int    `json:"user_vote"`
	AddedBy    string `json:"added_by,omitempty"`
}

func (m RoomMovie) Key() int64 { return m.ID }

// MergeDisplay returns m with empty display fields taken from local.
func (m RoomMovie) MergeDisplay(local RoomMovie) RoomMovie {
	m.Title = keep(m.Title, local.Title)
	m.PosterPath = keep(m.PosterPath, local.PosterPath)
	return m
}

// ApplyVote replaces the current user's vote with value (-1, 0 or 1) and moves the score
// by the difference.
func (m *RoomMovie) ApplyVote(value int) error {
	if value < -1 || value > 1 {
		return fmt.Errorf("%w: vote must be -1, 0 or 1, got %d", shared.ErrValidation, value)
	}
	m.Score += value - m.UserVote
	m.UserVote = value
	return nil
}
