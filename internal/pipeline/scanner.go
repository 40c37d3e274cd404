package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/backyonatan-alt/petitionwatch/internal/metrics"
	"github.com/backyonatan-alt/petitionwatch/internal/store"
)

// ScanResult partitions the listed petitions by how they compare to stored
// state.
type ScanResult struct {
	ToImport  []int64
	ToUpdate  []int64
	Unchanged []int64
	Pages     int
}

// Worklist is every petition that needs a detail import, new ones first.
func (r ScanResult) Worklist() []int64 {
	out := make([]int64, 0, len(r.ToImport)+len(r.ToUpdate))
	out = append(out, r.ToImport...)
	return append(out, r.ToUpdate...)
}

// Scanner walks the open-petitions listing by following next links.
type Scanner struct {
	source  Source
	limiter *rate.Limiter
}

// NewScanner returns a Scanner that waits at least pageDelay between page
// fetches. A zero delay disables throttling.
func NewScanner(source Source, pageDelay time.Duration) *Scanner {
	limit := rate.Inf
	if pageDelay > 0 {
		limit = rate.Every(pageDelay)
	}
	return &Scanner{
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Scan classifies every listed petition against tx. It fetches at most the
// number of pages the first page reported and never fetches a page twice.
func (s *Scanner) Scan(ctx context.Context, tx store.Tx) (ScanResult, error) {
	var (
		res     ScanResult
		next    string
		budget  int
		visited = make(map[string]bool)
		seen    = make(map[int64]bool)
	)

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return ScanResult{}, fmt.Errorf("listing rate limit: %w", err)
		}
		page, err := s.source.ListingPage(ctx, next)
		if err != nil {
			return ScanResult{}, err
		}
		res.Pages++
		metrics.ListingPagesFetched.Inc()
		if res.Pages == 1 {
			budget = page.PageCount
		}

		for _, item := range page.Items {
			// Petitions can shift between pages while the listing is walked.
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true

			stored, err := tx.Petition(ctx, item.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				res.ToImport = append(res.ToImport, item.ID)
				metrics.PetitionsClassified.WithLabelValues(metrics.ClassImport).Inc()
			case err != nil:
				return ScanResult{}, err
			case stored.Signatures != item.Signatures:
				res.ToUpdate = append(res.ToUpdate, item.ID)
				metrics.PetitionsClassified.WithLabelValues(metrics.ClassUpdate).Inc()
			default:
				res.Unchanged = append(res.Unchanged, item.ID)
				metrics.PetitionsClassified.WithLabelValues(metrics.ClassUnchanged).Inc()
			}
		}

		slog.Debug("scanned listing page", "page", res.Pages, "of", budget, "items", len(page.Items))

		if page.Next == "" {
			break
		}
		if budget > 0 && res.Pages >= budget {
			slog.Warn("listing reports more pages than at scan start, stopping", "pages", res.Pages)
			break
		}
		if visited[page.Next] {
			slog.Warn("listing next link already visited, stopping", "url", page.Next)
			break
		}
		visited[page.Next] = true
		next = page.Next
	}

	return res, nil
}
