package tasks

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchDebounce  = 350 * time.Millisecond
	DefaultSearchMinLength = 2
)

// QueryFetch fetches one page of a text query.
type QueryFetch func(ctx context.Context, query string, page int) (models.Page, error)

// SearchOpts configures a [Search].
type SearchOpts struct {
	Titles    QueryFetch
	People    QueryFetch
	Debounce  time.Duration // zero uses DefaultSearchDebounce, negative disables the quiet period
	MinLength int           // zero uses DefaultSearchMinLength
	Progress  chan<- ProgressUpdate
	Logger    *log.Logger
}

// Search is the debounced text-query variant of the aggregation engine.
//
// A query is only issued once it has been stable for the quiet period and is at least
// MinLength characters. Each page runs the title and person sub-queries in parallel and
// unions them by ID, titles first. Issuing a new query resets the underlying [Pager],
// which cancels and discards the superseded one.
type Search struct {
	mu       sync.Mutex
	pager    *Pager
	titles   QueryFetch
	people   QueryFetch
	debounce time.Duration
	minLen   int
	timer    *time.Timer
	seq      uint64
	served   string
	detached bool
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

// NewSearch creates a search over the given sub-queries.
func NewSearch(opts SearchOpts) *Search {
	s := &Search{
		titles:   opts.Titles,
		people:   opts.People,
		debounce: opts.Debounce,
		minLen:   opts.MinLength,
		progress: opts.Progress,
		logger:   opts.Logger,
	}
	if s.debounce == 0 {
		s.debounce = DefaultSearchDebounce
	}
	if s.minLen <= 0 {
		s.minLen = DefaultSearchMinLength
	}
	if s.logger == nil {
		s.logger = shared.NopLogger()
	}
	s.pager = NewPager(PagerOpts{Progress: opts.Progress, Logger: s.logger})
	return s
}

// NewCatalogSearch wires a search to the catalog's title and person endpoints.
func NewCatalogSearch(catalog Catalog, opts SearchOpts) *Search {
	opts.Titles = catalog.SearchTitles
	opts.People = catalog.SearchPeople
	return NewSearch(opts)
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// SetQuery records keystroke-level input. The query is issued after the quiet period
// unless another SetQuery supersedes it first. ctx bounds the eventual fetch.
func (s *Search) SetQuery(ctx context.Context, raw string) {
	q := normalizeQuery(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return
	}
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if utf8.RuneCountInString(q) < s.minLen {
		s.clearLocked()
		return
	}
	if q == s.served {
		return
	}

	if s.debounce < 0 {
		seq := s.seq
		go s.fire(ctx, seq, q)
		return
	}

	seq := s.seq
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(ctx, seq, q) })
}

// Submit issues q immediately, skipping the quiet period, and loads its first page.
//
// It returns (false, nil) when q is shorter than MinLength or identical to the query
// already being served.
func (s *Search) Submit(ctx context.Context, raw string) (bool, error) {
	q := normalizeQuery(raw)

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return false, nil
	}
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if utf8.RuneCountInString(q) < s.minLen {
		s.clearLocked()
		s.mu.Unlock()
		return false, nil
	}
	if q == s.served {
		s.mu.Unlock()
		return false, nil
	}
	s.issueLocked(q)
	s.mu.Unlock()

	return s.pager.LoadNext(ctx)
}

// fire issues q if no newer input arrived since it was scheduled.
func (s *Search) fire(ctx context.Context, seq uint64, q string) {
	s.mu.Lock()
	if s.detached || seq != s.seq || q == s.served {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.issueLocked(q)
	s.mu.Unlock()

	if _, err := s.pager.LoadNext(ctx); err != nil {
		s.logger.Debug("search failed", "query", q, "error", err)
	}
}

func (s *Search) issueLocked(q string) {
	s.served = q
	s.pager.Reset(models.Fingerprint("search="+strings.ToLower(q)), s.fetchFor(q))
	s.logger.Debug("search issued", "query", q)
	sendProgress(s.progress, searchIssuedUpdate(q))
}

func (s *Search) clearLocked() {
	if s.served == "" {
		return
	}
	s.served = ""
	s.pager.Reset("", nil)
	sendProgress(s.progress, searchClearedUpdate())
}

// fetchFor builds the page fetch for q. Each sub-query stops being asked once its own
// reported total is passed.
func (s *Search) fetchFor(q string) PageFetch {
	var titleTotal, peopleTotal int

	return func(ctx context.Context, page int) (models.Page, error) {
		var titles, people models.Page
		var askTitles, askPeople bool
		g, gctx := errgroup.WithContext(ctx)

		if s.titles != nil && (titleTotal == 0 || page <= titleTotal) {
			askTitles = true
			g.Go(func() error {
				var err error
				titles, err = s.titles(gctx, q, page)
				return err
			})
		}
		if s.people != nil && (peopleTotal == 0 || page <= peopleTotal) {
			askPeople = true
			g.Go(func() error {
				var err error
				people, err = s.people(gctx, q, page)
				return err
			})
		}

		if err := g.Wait(); err != nil {
			return models.Page{}, err
		}

		if askTitles {
			titleTotal = titles.Total()
		}
		if askPeople {
			peopleTotal = people.Total()
		}

		return models.Page{
			Page:       page,
			Results:    dedupe(titles.Results, people.Results),
			TotalPages: max(titleTotal, peopleTotal, 1),
		}, nil
	}
}

// LoadNext fetches the next page of the query being served.
func (s *Search) LoadNext(ctx context.Context) (bool, error) {
	return s.pager.LoadNext(ctx)
}

// Retry re-attempts a failed page.
func (s *Search) Retry(ctx context.Context) (bool, error) {
	return s.pager.Retry(ctx)
}

// Results returns the union of everything loaded for the current query.
func (s *Search) Results() []models.ResultItem {
	return s.pager.Snapshot()
}

// Query returns the query currently being served, or "".
func (s *Search) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

func (s *Search) HasMore() bool     { return s.pager.HasMore() }
func (s *Search) State() PagerState { return s.pager.State() }
func (s *Search) Err() error        { return s.pager.Err() }

// Detach cancels pending and in-flight work and ignores anything that resolves later.
func (s *Search) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pager.Detach()
}
