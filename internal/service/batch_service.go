package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/engine"
)

// RunnerFactory returns a fresh runner for one backtest.
type RunnerFactory func() *engine.Runner

// BatchService runs independent backtests side by side and keeps their
// results. Each replay is still single-threaded; only whole runs overlap.
type BatchService struct {
	mu        sync.RWMutex
	results   map[string]*engine.Result
	newRunner RunnerFactory
	parallel  int
}

// NewBatchService creates a service running at most parallel backtests at once.
func NewBatchService(newRunner RunnerFactory, parallel int) *BatchService {
	if parallel <= 0 {
		parallel = 1
	}
	return &BatchService{
		results:   make(map[string]*engine.Result),
		newRunner: newRunner,
		parallel:  parallel,
	}
}

// RunAll executes every request and waits for all of them. Failed runs are
// reported together; successful ones are kept regardless.
func (s *BatchService) RunAll(ctx context.Context, reqs []engine.RunRequest) error {
	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		errs   []error
		worker = make(chan struct{}, s.parallel) // Limit concurrent runs
	)

	for _, req := range reqs {
		wg.Add(1)
		go func(req engine.RunRequest) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", req.Symbol, ctx.Err()))
				errMu.Unlock()
				return
			case worker <- struct{}{}: // Acquire
			}
			defer func() { <-worker }() // Release

			res, err := s.runOne(ctx, req)
			if err != nil {
				slog.Error("Backtest failed", slog.String("symbol", req.Symbol), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", req.Symbol, err))
				errMu.Unlock()
			}
			if res != nil {
				s.store(res)
			}
		}(req)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// runOne contains a halted replay to its own run so other runs finish.
func (s *BatchService) runOne(ctx context.Context, req engine.RunRequest) (res *engine.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("%w: %v", domain.ErrReplayHalted, rec)
		}
	}()
	return s.newRunner().Run(ctx, req)
}

func (s *BatchService) store(res *engine.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Summary.RunID] = res
}

// Get returns the result of a run, or nil.
func (s *BatchService) Get(runID string) *engine.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[runID]
}

// All returns every stored result sorted by symbol, then run id.
func (s *BatchService) All() []*engine.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*engine.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}

	// Sort by symbol for consistent ordering
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Summary, out[j].Summary
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.RunID < b.RunID
	})
	return out
}
