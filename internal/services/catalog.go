package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const catalogPath = "/api/movies/"

// DetailCacher stores raw detail payloads keyed by media type and ID.
//
// Implemented by repositories.CatalogCacheRepository. Lookups older than maxAge miss.
type DetailCacher interface {
	GetDetail(mediaType models.MediaType, id int64, maxAge time.Duration) ([]byte, bool, error)
	PutDetail(mediaType models.MediaType, id int64, payload []byte) error
}

// CatalogService reads the upstream discovery and search endpoints proxied by the backend.
type CatalogService struct {
	sender   Sender
	region   string
	cache    DetailCacher
	cacheTTL time.Duration
	logger   *log.Logger
}

// CatalogOpts configures a [CatalogService].
type CatalogOpts struct {
	Region   string
	Cache    DetailCacher
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewCatalogService creates a catalog client. opts may be zero.
func NewCatalogService(sender Sender, opts CatalogOpts) *CatalogService {
	s := &CatalogService{
		sender:   sender,
		region:   strings.ToUpper(opts.Region),
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = shared.NopLogger()
	}
	return s
}

// Trending returns the trending-now listing.
func (s *CatalogService) Trending(ctx context.Context, page int) (models.Page, error) {
	return s.list(ctx, "trending/", nil, page)
}

// NowPlaying returns titles currently in cinemas for the configured region.
func (s *CatalogService) NowPlaying(ctx context.Context, page int) (models.Page, error) {
	return s.list(ctx, "now-playing/", nil, page)
}

// SearchTitles searches movies and shows by title.
func (s *CatalogService) SearchTitles(ctx context.Context, query string, page int) (models.Page, error) {
	if err := requireText("query", strings.TrimSpace(query)); err != nil {
		return models.Page{}, err
	}
	return s.list(ctx, "search/", url.Values{"query": {query}}, page)
}

// SearchPeople searches titles by contributor (cast or crew).
func (s *CatalogService) SearchPeople(ctx context.Context, query string, page int) (models.Page, error) {
	if err := requireText("query", strings.TrimSpace(query)); err != nil {
		return models.Page{}, err
	}
	return s.list(ctx, "search/person/", url.Values{"query": {query}}, page)
}

// Discover runs mood-based discovery for filters.
func (s *CatalogService) Discover(ctx context.Context, filters models.Filters, page int) (models.Page, error) {
	if err := filters.Validate(); err != nil {
		return models.Page{}, err
	}
	return s.list(ctx, "discover/", filters.Query(), page)
}

func (s *CatalogService) list(ctx context.Context, endpoint string, query url.Values, page int) (models.Page, error) {
	if page < 1 {
		return models.Page{}, fmt.Errorf("%w: page must be at least 1, got %d", shared.ErrInvalidArgument, page)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("page", strconv.Itoa(page))
	if s.region != "" && query.Get("region") == "" {
		query.Set("region", s.region)
	}

	return do[models.Page](ctx, s.sender, get(catalogPath+endpoint, query))
}

// Detail returns the full record for one title, consulting the detail cache first.
func (s *CatalogService) Detail(ctx context.Context, itemID int64, mediaType models.MediaType) (*models.Detail, error) {
	if err := requireID("id", itemID); err != nil {
		return nil, err
	}
	if mediaType == "" {
		mediaType = models.MediaMovie
	}

	if s.cache != nil {
		payload, ok, err := s.cache.GetDetail(mediaType, itemID, s.cacheTTL)
		if err != nil {
			s.logger.Warn("detail cache read failed", "id", itemID, "error", err)
		} else if ok {
			var detail models.Detail
			if err := json.Unmarshal(payload, &detail); err == nil {
				s.logger.Debug("detail cache hit", "id", itemID, "media_type", mediaType)
				return &detail, nil
			}
		}
	}

	resp, err := s.sender.Send(ctx, get(catalogPath+id(itemID)+"/", url.Values{"media_type": {string(mediaType)}}))
	if err != nil {
		return nil, err
	}

	var detail models.Detail
	if err := DecodeJSON(resp, &detail); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.PutDetail(mediaType, itemID, resp.Body); err != nil {
			s.logger.Warn("detail cache write failed", "id", itemID, "error", err)
		}
	}

	return &detail, nil
}
