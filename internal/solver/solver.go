// Package solver finds minimum-makespan assignments for cpmodel models by
// depth-first branch and bound over active schedules.
//
// Branching follows Giffler and Thompson: among the schedulable intervals the
// one with the earliest possible completion fixes a machine, and every
// interval on that machine that could start before that completion time is
// tried in turn. Active schedules always contain an optimal one, so an
// exhausted search proves optimality.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/goshop/internal/cpmodel"
	"github.com/me/goshop/internal/logging"
	"github.com/me/goshop/pkg/model"
)

// Options bounds the search.
type Options struct {
	// TimeLimit is the maximum search time. A value <= 0 leaves no time to
	// search: the result is UNKNOWN for any model with intervals.
	TimeLimit time.Duration

	// NodeLimit caps the number of explored search nodes (0 = unlimited).
	NodeLimit int64

	// Workers is the number of goroutines sharing the search. Values < 1
	// are treated as 1.
	Workers int

	// Logger receives debug output; nil discards it.
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TimeLimit: 30 * time.Second,
		Workers:   1,
	}
}

// MaxWorkers returns the worker count used for "all cores".
func MaxWorkers() int {
	return runtime.NumCPU()
}

// Solution is the outcome of Solve.
type Solution struct {
	Status    model.SolveStatus
	Objective int64
	Stats     model.SolverStats

	values []int64
}

// Value returns the value of v in the solution. It is zero when the
// status carries no assignment.
func (s *Solution) Value(v cpmodel.VarIndex) int64 {
	if int(v) < 0 || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}

// Solve searches m for an assignment minimizing its objective. The returned
// error is non-nil only for structurally invalid models; search outcomes
// are reported through Solution.Status.
func Solve(ctx context.Context, m *cpmodel.Model, opts Options) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	began := time.Now()
	p := newProblem(m)

	sol := &Solution{Stats: model.SolverStats{Workers: workers}}
	if p.n == 0 {
		sol.Status, sol.Objective = p.trivial()
		if sol.Status.HasSolution() {
			sol.values = p.values(nil)
		}
		sol.Stats.WallTime = time.Since(began)
		return sol, nil
	}

	s := &search{
		p:         p,
		ctx:       ctx,
		deadline:  began.Add(opts.TimeLimit),
		nodeLimit: opts.NodeLimit,
		logger:    logger,
	}
	s.best.Store(math.MaxInt64)

	if workers == 1 {
		s.dfs(p.root())
	} else {
		s.parallel(workers)
	}

	switch {
	case s.satisfied.Load():
		sol.Status = model.SolveStatusOptimal
	case s.stopped.Load() && s.found:
		sol.Status = model.SolveStatusFeasible
	case s.stopped.Load():
		sol.Status = model.SolveStatusUnknown
	case s.found:
		sol.Status = model.SolveStatusOptimal
	default:
		sol.Status = model.SolveStatusInfeasible
	}
	if sol.Status.HasSolution() {
		sol.Objective = s.incumbentObj
		sol.values = p.values(s.incumbent)
	}
	sol.Stats.Branches = s.nodes.Load()
	sol.Stats.Pruned = s.pruned.Load()
	sol.Stats.WallTime = time.Since(began)

	logger.Debug("search finished",
		"status", sol.Status,
		"objective", sol.Objective,
		"branches", sol.Stats.Branches,
		"pruned", sol.Stats.Pruned,
		"wall_time", sol.Stats.WallTime,
	)
	return sol, nil
}

// search holds state shared by all workers of one Solve call.
type search struct {
	p         *problem
	ctx       context.Context
	deadline  time.Time
	nodeLimit int64
	logger    *slog.Logger

	nodes     atomic.Int64
	pruned    atomic.Int64
	stopped   atomic.Bool // budget ran out before the tree was exhausted
	satisfied atomic.Bool // no objective and a solution exists
	best      atomic.Int64

	mu           sync.Mutex
	found        bool
	incumbent    []int64
	incumbentObj int64
}

// tick accounts for one node and reports whether the search may continue.
func (s *search) tick() bool {
	if s.stopped.Load() || s.satisfied.Load() {
		return false
	}
	n := s.nodes.Add(1)
	if s.nodeLimit > 0 && n > s.nodeLimit {
		s.stopped.Store(true)
		return false
	}
	if n == 1 || n%64 == 0 {
		if s.ctx.Err() != nil || !time.Now().Before(s.deadline) {
			s.stopped.Store(true)
			return false
		}
	}
	return true
}

// offer records a complete schedule if it improves the incumbent.
func (s *search) offer(st *state) {
	obj := st.objEnd
	if !s.p.objectiveFeasible(obj) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.found && obj >= s.incumbentObj {
		return
	}
	s.found = true
	s.incumbentObj = obj
	s.incumbent = append(s.incumbent[:0], st.start...)
	s.best.Store(obj)
	s.logger.Debug("new incumbent", "objective", obj, "branches", s.nodes.Load())

	if !s.p.hasObj {
		s.satisfied.Store(true)
	}
}

func (s *search) dfs(st *state) {
	if !s.tick() {
		return
	}
	if st.done == s.p.n {
		s.offer(st)
		return
	}
	if s.p.hasObj && s.p.lowerBound(st) >= s.best.Load() {
		s.pruned.Add(1)
		return
	}
	for _, op := range s.p.branches(st) {
		child := st.clone()
		if !s.p.schedule(child, op) {
			continue
		}
		s.dfs(child)
		if s.stopped.Load() || s.satisfied.Load() {
			return
		}
	}
}

// parallel expands the top of the tree breadth-first until there is enough
// work for every worker, then lets workers drain the frontier depth-first.
func (s *search) parallel(workers int) {
	frontier := []*state{s.p.root()}
	target := workers * 4
	for len(frontier) > 0 && len(frontier) < target {
		var next []*state
		expanded := false
		for _, st := range frontier {
			if st.done == s.p.n {
				s.offer(st)
				continue
			}
			if !s.tick() {
				return
			}
			expanded = true
			for _, op := range s.p.branches(st) {
				child := st.clone()
				if s.p.schedule(child, op) {
					next = append(next, child)
				}
			}
		}
		frontier = next
		if !expanded {
			break
		}
	}

	work := make(chan *state)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for st := range work {
				s.dfs(st)
			}
		}()
	}
	for _, st := range frontier {
		if s.stopped.Load() || s.satisfied.Load() {
			break
		}
		work <- st
	}
	close(work)
	wg.Wait()
}
