package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// pending is a started optimistic mutation.
type pending interface {
	Wait(ctx context.Context) error
}

// settle waits for a mutation's server outcome. On failure the local change has already
// been rolled back, so only the reason is reported.
func settle(ctx context.Context, action string, pm pending, err error) error {
	if err != nil {
		return err
	}
	if err := pm.Wait(ctx); err != nil {
		return failure(action, err)
	}
	return nil
}

// WatchlistLists shows the current user's watchlists.
func (r *Runner) WatchlistLists(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	lists, err := c.watchlists.Lists(ctx)
	if err != nil {
		return failure("failed to load watchlists", err)
	}
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Watchlists(f, lists)
	})
}

// WatchlistCreate creates an empty watchlist.
func (r *Runner) WatchlistCreate(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	name := strings.Join(cmd.StringArgs("name"), " ")
	if err := requireArg("name", name); err != nil {
		return err
	}

	list, err := c.watchlists.Create(ctx, name)
	if err != nil {
		return failure("failed to create watchlist", err)
	}
	return r.writePlain("✓ Created watchlist %q  #%d\n", list.Name, list.ID)
}

// WatchlistDelete deletes a watchlist and its items.
func (r *Runner) WatchlistDelete(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	id := cmd.Int64Arg("list")
	if err := c.watchlists.Delete(ctx, id); err != nil {
		return failure("failed to delete watchlist", err)
	}
	return r.writePlain("✓ Deleted watchlist #%d\n", id)
}

// openWatchlist loads a watchlist session for the list named by the "list" argument.
func (r *Runner) openWatchlist(ctx context.Context, cmd *cli.Command, progress chan<- tasks.ProgressUpdate) (*services.WatchlistService, *tasks.WatchlistSession, error) {
	c, err := r.connect()
	if err != nil {
		return nil, nil, err
	}

	session := tasks.NewWatchlistSession(c.watchlists, cmd.Int64Arg("list"), tasks.WatchlistOpts{
		ReorderDelay: r.config.Watchlist.ReorderDelay(),
		Progress:     progress,
		Logger:       r.logger,
	})
	if err := session.Load(ctx); err != nil {
		session.Detach()
		return nil, nil, failure("failed to load watchlist", err)
	}
	return c.watchlists, session, nil
}

// showWatchlist renders the session's items under the list's name.
func (r *Runner) showWatchlist(ctx context.Context, cmd *cli.Command, api *services.WatchlistService, session *tasks.WatchlistSession) error {
	id := cmd.Int64Arg("list")
	list := models.Watchlist{ID: id, Name: fmt.Sprintf("Watchlist #%d", id)}

	if lists, err := api.Lists(ctx); err != nil {
		r.logger.Warn("could not load watchlist name", "error", err)
	} else if i := slices.IndexFunc(lists, func(l models.Watchlist) bool { return l.ID == id }); i >= 0 {
		list = lists[i]
	}

	items := session.Items()
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Watchlist(f, list, items)
	})
}

// WatchlistShow lists a watchlist's items in order.
func (r *Runner) WatchlistShow(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	api, session, err := r.openWatchlist(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	return r.showWatchlist(ctx, cmd, api, session)
}

// WatchlistAdd adds a title to a watchlist.
func (r *Runner) WatchlistAdd(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	api, session, err := r.openWatchlist(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	pm, err := session.Add(ctx, services.NewWatchlistItem{
		MovieID:    cmd.Int64Arg("movie"),
		Title:      cmd.String("title"),
		PosterPath: cmd.String("poster"),
		MediaType:  models.MediaType(cmd.String("type")),
	})
	if err := settle(ctx, "failed to add title", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Added #%d\n", cmd.Int64Arg("movie"))
	return r.showWatchlist(ctx, cmd, api, session)
}

// WatchlistStatus sets an item's watch status.
func (r *Runner) WatchlistStatus(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	api, session, err := r.openWatchlist(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	status := models.WatchStatus(strings.ToLower(cmd.StringArg("status")))
	pm, err := session.SetStatus(ctx, cmd.Int64Arg("item"), status)
	if err := settle(ctx, "failed to update status", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Marked #%d as %s\n", cmd.Int64Arg("item"), status)
	return r.showWatchlist(ctx, cmd, api, session)
}

// WatchlistRemove removes an item from a watchlist.
func (r *Runner) WatchlistRemove(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	api, session, err := r.openWatchlist(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	pm, err := session.Remove(ctx, cmd.Int64Arg("item"))
	if err := settle(ctx, "failed to remove item", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Removed #%d\n", cmd.Int64Arg("item"))
	return r.showWatchlist(ctx, cmd, api, session)
}

// WatchlistMove moves an item to a 1-based position and saves the new order.
//
// A failed save keeps the new order on screen and only warns, since the server order is
// restored the next time the list is loaded.
func (r *Runner) WatchlistMove(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	api, session, err := r.openWatchlist(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	if err := session.Move(ctx, cmd.Int64Arg("item"), int(cmd.IntArg("position"))-1); err != nil {
		return err
	}

	pm, err := session.FlushOrder(ctx)
	if err != nil {
		return err
	}
	if err := pm.Wait(ctx); err != nil {
		r.logger.Warn("new order was not saved", "error", err)
		r.writePlain("! Order changed locally but could not be saved: %s\n", failure("reorder", err).Error())
	} else {
		r.writePlain("✓ Moved #%d\n", cmd.Int64Arg("item"))
	}
	return r.showWatchlist(ctx, cmd, api, session)
}
