package registry

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/launchpad-go/launchpad/internal/bus"
)

// scoredResult pairs a SearchResult with the tie-break indices spec.md
// section 4.3/5 requires the merge to be stable on:
// (-score, module_insertion_index, result_insertion_index).
type scoredResult struct {
	result      bus.SearchResult
	moduleIndex int
	resultIndex int
}

// Search dispatches query per spec.md section 4.3's algorithm: a single
// module if query.ModuleFilter names one, otherwise every enabled module
// concurrently with an overall deadline of query.TimeoutMS. Results are
// merged with a stable sort and truncated to query.MaxResults.
func (r *Registry) Search(ctx context.Context, query bus.SearchQueryPayload) []bus.SearchResult {
	if query.ModuleFilter != "" {
		module, ok := r.Get(query.ModuleFilter)
		if !ok {
			log.Printf("[registry] search: unknown module_filter %q, returning empty", query.ModuleFilter)
			return []bus.SearchResult{}
		}
		results := r.searchOneWithDeadline(ctx, module, query)
		scored := make([]scoredResult, len(results))
		for i, res := range results {
			scored[i] = scoredResult{result: res, moduleIndex: 0, resultIndex: i}
		}
		return truncate(mergeSorted(scored), query.MaxResults)
	}

	modules := r.enabledModules()
	if len(modules) == 0 {
		return []bus.SearchResult{}
	}

	deadline := time.Duration(query.TimeoutMS) * time.Millisecond
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type moduleResult struct {
		moduleIndex int
		results     []bus.SearchResult
	}

	out := make(chan moduleResult, len(modules))
	var wg sync.WaitGroup
	for i, entry := range modules {
		wg.Add(1)
		go func(idx int, id string, m Module) {
			defer wg.Done()
			results := r.searchOneWithDeadline(searchCtx, m, query)
			out <- moduleResult{moduleIndex: idx, results: results}
		}(i, entry.ID, entry.Module)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var scored []scoredResult
	for mr := range out {
		for i, res := range mr.results {
			scored = append(scored, scoredResult{result: res, moduleIndex: mr.moduleIndex, resultIndex: i})
		}
	}

	return truncate(mergeSorted(scored), query.MaxResults)
}

// searchOneWithDeadline runs a single module's Search, recovering from a
// deadline or module-level failure without failing the overall batch
// (spec.md section 4.3: "Each module's failure is logged but does not fail
// the batch").
func (r *Registry) searchOneWithDeadline(ctx context.Context, m Module, query bus.SearchQueryPayload) []bus.SearchResult {
	type outcome struct {
		results []bus.SearchResult
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		results, err := m.Search(ctx, query)
		done <- outcome{results: results, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.Printf("[registry] module %q search failed: %v", m.Info().ID, o.err)
			return nil
		}
		return o.results
	case <-ctx.Done():
		log.Printf("[registry] module %q search dropped at deadline", m.Info().ID)
		return nil
	}
}

// mergeSorted returns results sorted descending by score, ties broken by
// module insertion order then result insertion order — a stable sort on
// (-score, module_insertion_index, result_insertion_index).
func mergeSorted(scored []scoredResult) []bus.SearchResult {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.result.Score != b.result.Score {
			return a.result.Score > b.result.Score
		}
		if a.moduleIndex != b.moduleIndex {
			return a.moduleIndex < b.moduleIndex
		}
		return a.resultIndex < b.resultIndex
	})

	out := make([]bus.SearchResult, len(scored))
	for i, s := range scored {
		out[i] = s.result
	}
	return out
}

func truncate(results []bus.SearchResult, maxResults int) []bus.SearchResult {
	if maxResults > 0 && len(results) > maxResults {
		return results[:maxResults]
	}
	return results
}

// ExecuteAction tries each enabled module in registry order until one
// succeeds; the first success wins (spec.md section 4.3). If none
// recognize resultID/actionType, it returns ErrActionUnhandled.
func (r *Registry) ExecuteAction(ctx context.Context, resultID, actionType string) error {
	for _, id := range r.orderedModuleIDs() {
		module, ok := r.Get(id)
		if !ok {
			continue
		}
		err := module.ExecuteAction(ctx, resultID, actionType)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrActionUnhandled) {
			log.Printf("[registry] module %q execute_action error: %v", id, err)
		}
	}
	return ErrActionUnhandled
}
