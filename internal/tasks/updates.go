package tasks

import (
	"fmt"

	"github.com/desertthunder/reelx/internal/models"
)

// ProgressUpdate represents a state change reported to the consumer.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
	Err     error  // Set for failure phases
}

// Operation phase enumeration
type Phase int

const (
	PageLoading Phase = iota
	PageLoaded
	PageFailed
	SearchIssued
	SearchCleared
	MutationApplied
	MutationConfirmed
	MutationRolledBack
	ReorderFailed
)

func (p Phase) String() string {
	switch p {
	case PageLoading:
		return "page_loading"
	case PageLoaded:
		return "page_loaded"
	case PageFailed:
		return "page_failed"
	case SearchIssued:
		return "search_issued"
	case SearchCleared:
		return "search_cleared"
	case MutationApplied:
		return "mutation_applied"
	case MutationConfirmed:
		return "mutation_confirmed"
	case MutationRolledBack:
		return "mutation_rolled_back"
	case ReorderFailed:
		return "reorder_failed"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func pageLoadingUpdate(page, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PageLoading,
		Step:    page,
		Total:   total,
		Message: fmt.Sprintf("Loading page %d...", page),
	}
}

func pageLoadedUpdate(page, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PageLoaded,
		Step:    page,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %d results", page, total, count),
	}
}

func pageFailedUpdate(page, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PageFailed,
		Step:    page,
		Total:   total,
		Message: fmt.Sprintf("Page %d failed: %v", page, err),
		Err:     err,
	}
}

func searchIssuedUpdate(query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchIssued,
		Message: fmt.Sprintf("Searching for %q...", query),
		Data:    query,
	}
}

func searchClearedUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: SearchCleared, Message: "Search cleared"}
}

func mutationAppliedUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MutationApplied,
		Message: fmt.Sprintf("%s applied locally", name),
		Data:    id,
	}
}

func mutationConfirmedUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MutationConfirmed,
		Message: fmt.Sprintf("✓ %s saved", name),
		Data:    id,
	}
}

func mutationRolledBackUpdate(name, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MutationRolledBack,
		Message: fmt.Sprintf("✗ %s failed, changes reverted: %v", name, err),
		Data:    id,
		Err:     err,
	}
}

func reorderFailedUpdate(listID int64, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReorderFailed,
		Message: fmt.Sprintf("Could not save the order of watchlist %d: %v", listID, err),
		Data:    listID,
		Err:     err,
	}
}

func sessionLoadedUpdate(kind string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PageLoaded,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d %s", count, kind),
	}
}

// dedupe flattens pages in order and drops repeated IDs, keeping the first occurrence.
func dedupe(pages ...[]models.ResultItem) []models.ResultItem {
	seen := make(map[int64]struct{})
	var out []models.ResultItem
	for _, page := range pages {
		for _, item := range page {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
