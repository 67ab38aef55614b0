package tasks

import (
	"context"

	"github.com/desertthunder/reelx/internal/models"
)

// Catalog is the subset of services.CatalogService the aggregation engine reads from.
type Catalog interface {
	Trending(ctx context.Context, page int) (models.Page, error)
	NowPlaying(ctx context.Context, page int) (models.Page, error)
	SearchTitles(ctx context.Context, query string, page int) (models.Page, error)
	SearchPeople(ctx context.Context, query string, page int) (models.Page, error)
	Discover(ctx context.Context, filters models.Filters, page int) (models.Page, error)
}

// Feed names a fixed catalog listing.
type Feed string

const (
	FeedTrending   Feed = "trending"
	FeedNowPlaying Feed = "now-playing"
)

// FeedFetch binds a fixed listing to a [PageFetch] and returns its fingerprint.
func FeedFetch(catalog Catalog, feed Feed, region string) (models.Fingerprint, PageFetch) {
	fp := models.Fingerprint("feed=" + string(feed) + ";" + string(models.Filters{Region: region}.Fingerprint()))
	switch feed {
	case FeedNowPlaying:
		return fp, catalog.NowPlaying
	default:
		return fp, catalog.Trending
	}
}

// NewDiscovery creates a pager already reset to filters.
func NewDiscovery(catalog Catalog, filters models.Filters, opts PagerOpts) *Pager {
	p := NewPager(opts)
	p.Reset(filters.Fingerprint(), DiscoverFetch(catalog, filters))
	return p
}

// DiscoverFetch binds a discovery query to a [PageFetch].
func DiscoverFetch(catalog Catalog, filters models.Filters) PageFetch {
	return func(ctx context.Context, page int) (models.Page, error) {
		return catalog.Discover(ctx, filters, page)
	}
}
