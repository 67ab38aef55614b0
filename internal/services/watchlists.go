package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const watchlistsPath = "/api/watchlists/"

// NewWatchlistItem is the payload for adding a title to a watchlist.
type NewWatchlistItem struct {
	MovieID    int64            `json:"movie_id"`
	Title      string           `json:"title,omitempty"`
	PosterPath string           `json:"poster_path,omitempty"`
	MediaType  models.MediaType `json:"media_type,omitempty"`
}

// WatchlistService is the collaboration client for watchlists and their items.
type WatchlistService struct {
	sender Sender
}

func NewWatchlistService(sender Sender) *WatchlistService {
	return &WatchlistService{sender: sender}
}

func itemsPath(listID int64) string {
	return watchlistsPath + id(listID) + "/items/"
}

// Lists returns the current user's watchlists.
func (s *WatchlistService) Lists(ctx context.Context) ([]models.Watchlist, error) {
	return do[[]models.Watchlist](ctx, s.sender, get(watchlistsPath, nil))
}

// Create creates an empty watchlist.
func (s *WatchlistService) Create(ctx context.Context, name string) (models.Watchlist, error) {
	if err := requireText("name", name); err != nil {
		return models.Watchlist{}, err
	}
	return do[models.Watchlist](ctx, s.sender, post(watchlistsPath, map[string]string{"name": name}))
}

// Delete removes a watchlist and its items.
func (s *WatchlistService) Delete(ctx context.Context, listID int64) error {
	if err := requireID("watchlist id", listID); err != nil {
		return err
	}
	return send(ctx, s.sender, del(watchlistsPath+id(listID)+"/"))
}

// Items returns the ordered items of a watchlist.
func (s *WatchlistService) Items(ctx context.Context, listID int64) ([]models.WatchlistItem, error) {
	if err := requireID("watchlist id", listID); err != nil {
		return nil, err
	}
	return do[[]models.WatchlistItem](ctx, s.sender, get(itemsPath(listID), nil))
}

// AddItem appends a title and returns the created item.
func (s *WatchlistService) AddItem(ctx context.Context, listID int64, item NewWatchlistItem) (models.WatchlistItem, error) {
	if err := requireID("watchlist id", listID); err != nil {
		return models.WatchlistItem{}, err
	}
	if err := requireID("movie id", item.MovieID); err != nil {
		return models.WatchlistItem{}, err
	}
	return do[models.WatchlistItem](ctx, s.sender, post(itemsPath(listID), item))
}

// UpdateStatus changes an item's status and returns the updated item.
func (s *WatchlistService) UpdateStatus(ctx context.Context, listID, itemID int64, status models.WatchStatus) (models.WatchlistItem, error) {
	if !status.Valid() {
		return models.WatchlistItem{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	return do[models.WatchlistItem](ctx, s.sender, patch(itemsPath(listID)+id(itemID)+"/", map[string]models.WatchStatus{"status": status}))
}

// RemoveItem deletes an item from a watchlist.
func (s *WatchlistService) RemoveItem(ctx context.Context, listID, itemID int64) error {
	return send(ctx, s.sender, del(itemsPath(listID)+id(itemID)+"/"))
}

// Reorder persists the item order. The server treats it as advisory.
func (s *WatchlistService) Reorder(ctx context.Context, listID int64, itemIDs []int64) error {
	if err := requireID("watchlist id", listID); err != nil {
		return err
	}
	if itemIDs == nil {
		itemIDs = []int64{}
	}
	return send(ctx, s.sender, post(watchlistsPath+id(listID)+"/reorder/", map[string][]int64{"order": itemIDs}))
}
