package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// pageSource is the part of a pager or search the CLI drives.
type pageSource interface {
	LoadNext(ctx context.Context) (bool, error)
	Retry(ctx context.Context) (bool, error)
	HasMore() bool
}

// collect loads up to pages pages from src, retrying a failed page up to retries times.
func (r *Runner) collect(ctx context.Context, src pageSource, pages, retries int, loaded bool) error {
	if pages < 1 {
		pages = 1
	}

	n := 0
	if loaded {
		n = 1
	}
	for n < pages && src.HasMore() {
		ok, err := src.LoadNext(ctx)
		for attempt := 0; err != nil && attempt < retries; attempt++ {
			r.logger.Warn("retrying page", "page", n+1, "attempt", attempt+1, "error", err)
			ok, err = src.Retry(ctx)
		}
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		n++
	}
	return nil
}

// Trending lists the trending or now-playing feed.
func (r *Runner) Trending(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	feed, heading := tasks.FeedTrending, "Trending"
	if cmd.Bool("now-playing") {
		feed, heading = tasks.FeedNowPlaying, "Now playing"
	}

	progress, stop := r.progress()
	defer stop()

	pager := tasks.NewPager(tasks.PagerOpts{Progress: progress, Logger: r.logger})
	defer pager.Detach()
	pager.Reset(tasks.FeedFetch(c.catalog, feed, r.config.Catalog.Region))

	if err := r.collect(ctx, pager, int(cmd.Int("pages")), int(cmd.Int("retries")), false); err != nil {
		return failure("failed to load "+strings.ToLower(heading), err)
	}

	items := pager.Snapshot()
	r.logger.Info("loaded feed", "feed", feed, "results", len(items))
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Results(f, heading, items)
	})
}

// Discover runs mood or category discovery with the given filters.
func (r *Runner) Discover(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	region := cmd.String("region")
	if region == "" {
		region = r.config.Catalog.Region
	}

	providers := make([]int, 0, len(cmd.IntSlice("provider")))
	for _, p := range cmd.IntSlice("provider") {
		providers = append(providers, int(p))
	}

	filters := models.Filters{
		Mood:      cmd.String("mood"),
		Category:  cmd.String("category"),
		Region:    region,
		Providers: providers,
		Types:     cmd.StringSlice("type"),
		MinRating: cmd.Float64("min-rating"),
		Broad:     cmd.Bool("broad"),
	}
	if err := filters.Validate(); err != nil {
		return err
	}

	progress, stop := r.progress()
	defer stop()

	pager := tasks.NewDiscovery(c.catalog, filters, tasks.PagerOpts{Progress: progress, Logger: r.logger})
	defer pager.Detach()
	r.logger.Debug("discovering", "fingerprint", pager.Fingerprint())

	if err := r.collect(ctx, pager, int(cmd.Int("pages")), int(cmd.Int("retries")), false); err != nil {
		return failure("discovery failed", err)
	}

	heading := "Discover"
	if filters.Mood != "" {
		heading += ": " + filters.Mood
	} else {
		heading += ": " + filters.Category
	}

	items := pager.Snapshot()
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Results(f, heading, items)
	})
}

// Search runs the combined title and people search.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	query := strings.Join(cmd.StringArgs("query"), " ")
	if err := requireArg("query", query); err != nil {
		return err
	}

	progress, stop := r.progress()
	defer stop()

	search := tasks.NewCatalogSearch(c.catalog, tasks.SearchOpts{
		Debounce:  r.config.Search.Debounce(),
		MinLength: r.config.Search.MinLength,
		Progress:  progress,
		Logger:    r.logger,
	})
	defer search.Detach()

	ok, err := search.Submit(ctx, query)
	for attempt := 0; err != nil && attempt < int(cmd.Int("retries")); attempt++ {
		r.logger.Warn("retrying search", "attempt", attempt+1, "error", err)
		ok, err = search.Retry(ctx)
	}
	if err != nil {
		return failure("search failed", err)
	}
	if !ok && search.Query() == "" {
		return fmt.Errorf("%w: query must be at least %d characters", shared.ErrInvalidArgument, max(r.config.Search.MinLength, 1))
	}

	if err := r.collect(ctx, search, int(cmd.Int("pages")), int(cmd.Int("retries")), true); err != nil {
		return failure("search failed", err)
	}

	items := search.Results()
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Results(f, fmt.Sprintf("Search %q", search.Query()), items)
	})
}

// Detail shows one title. --export writes a Markdown page and poster to a directory.
func (r *Runner) Detail(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	id := cmd.Int64Arg("id")
	detail, err := c.catalog.Detail(ctx, id, models.MediaType(cmd.String("type")))
	if err != nil {
		return failure("failed to load title", err)
	}

	if dir := cmd.String("export"); dir != "" {
		result, err := formatter.WriteDetailExport(*detail, dir, formatter.ImageURL(detail.PosterPath))
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s to %s\n", detail.DisplayTitle(), result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", filepath.Base(f))
		}
		return nil
	}

	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Detail(f, *detail, "")
	})
}
