package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// PageFetch fetches one 1-based page of results.
type PageFetch func(ctx context.Context, page int) (models.Page, error)

// PagerState is the lifecycle state of a [Pager].
type PagerState int

const (
	PagerIdle PagerState = iota
	PagerLoading
	PagerExhausted
	PagerFailed
	PagerDetached
)

func (s PagerState) String() string {
	switch s {
	case PagerIdle:
		return "idle"
	case PagerLoading:
		return "loading"
	case PagerExhausted:
		return "exhausted"
	case PagerFailed:
		return "failed"
	case PagerDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// PagerOpts configures a [Pager].
type PagerOpts struct {
	Progress chan<- ProgressUpdate
	Logger   *log.Logger
}

// Pager lazily aggregates the pages of one result set, identified by a fingerprint.
//
// Pages are fetched one at a time in increasing order and fill contiguously from 1. Every
// [Pager.Reset] bumps a generation tag, and a fetch that resolves under an older tag is
// dropped even if its cancellation was ignored by the transport.
type Pager struct {
	mu       sync.Mutex
	state    PagerState
	fp       models.Fingerprint
	fetch    PageFetch
	pages    [][]models.ResultItem
	cursor   int
	total    int
	gen      uint64
	cancel   context.CancelFunc
	err      error
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

// NewPager creates a pager with no result set. Call Reset before loading.
func NewPager(opts PagerOpts) *Pager {
	p := &Pager{progress: opts.Progress, logger: opts.Logger, cursor: 1}
	if p.logger == nil {
		p.logger = shared.NopLogger()
	}
	return p
}

// Reset discards all pages and points the pager at a new result set. Any in-flight fetch
// is cancelled and its result will be ignored.
func (p *Pager) Reset(fp models.Fingerprint, fetch PageFetch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.fp = fp
	p.fetch = fetch
	p.pages = nil
	p.cursor = 1
	p.total = 0
	p.err = nil
	if p.state != PagerDetached {
		p.state = PagerIdle
	}
}

// LoadNext fetches the next page.
//
// It reports whether a page was appended. It is a no-op returning (false, nil) while a
// load is in progress, after the last page, after a failure (see [Pager.Retry]), once
// detached, or before the first Reset.
func (p *Pager) LoadNext(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.fetch == nil || p.state != PagerIdle {
		p.mu.Unlock()
		return false, nil
	}
	if p.total > 0 && p.cursor > p.total {
		p.state = PagerExhausted
		p.mu.Unlock()
		return false, nil
	}

	gen, page, fetch, total := p.gen, p.cursor, p.fetch, p.total
	fctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = PagerLoading
	p.mu.Unlock()

	sendProgress(p.progress, pageLoadingUpdate(page, total))
	result, err := fetch(fctx, page)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || p.state == PagerDetached {
		p.logger.Debug("discarding stale page", "page", page, "fingerprint", p.fp)
		return false, nil
	}
	p.cancel = nil

	if err != nil {
		p.state = PagerFailed
		p.err = err
		p.logger.Warn("page fetch failed", "page", page, "error", err)
		sendProgress(p.progress, pageFailedUpdate(page, p.total, err))
		return false, err
	}

	p.pages = append(p.pages, result.Results)
	p.cursor++
	p.total = result.Total()
	if p.cursor > p.total {
		p.state = PagerExhausted
	} else {
		p.state = PagerIdle
	}

	sendProgress(p.progress, pageLoadedUpdate(page, p.total, len(result.Results)))
	return true, nil
}

// Retry re-attempts the page that failed. Pages already merged are kept.
func (p *Pager) Retry(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.state != PagerFailed {
		p.mu.Unlock()
		return false, nil
	}
	p.state = PagerIdle
	p.err = nil
	p.mu.Unlock()

	return p.LoadNext(ctx)
}

// Snapshot returns the aggregated results: pages in ascending order, server order within a
// page, duplicates removed with the first occurrence kept.
func (p *Pager) Snapshot() []models.ResultItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dedupe(p.pages...)
}

// HasMore reports whether another page may exist.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.fetch == nil, p.state == PagerExhausted, p.state == PagerDetached:
		return false
	case p.total == 0:
		return true
	default:
		return p.cursor <= p.total
	}
}

func (p *Pager) State() PagerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error that moved the pager to [PagerFailed].
func (p *Pager) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pager) Fingerprint() models.Fingerprint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fp
}

// Pages returns how many pages have been merged and the reported total (zero if unknown).
func (p *Pager) Pages() (loaded, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages), p.total
}

// Detach stops the pager for good: the in-flight fetch is cancelled and nothing is
// applied afterwards.
func (p *Pager) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.state = PagerDetached
}
