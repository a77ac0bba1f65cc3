// Package engine runs the job-shop scheduling pipeline for one request:
// build the constraint model, solve it, and extract the result table.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/goshop/internal/cpmodel"
	"github.com/me/goshop/internal/logging"
	"github.com/me/goshop/internal/solver"
	"github.com/me/goshop/pkg/model"
)

// SolveError reports an unsuccessful search. It matches
// model.ErrSolverUnsuccessful with errors.Is.
type SolveError struct {
	Status model.SolveStatus
	Stats  model.SolverStats
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("optimization not successful with status %s", e.Status)
}

func (e *SolveError) Unwrap() error {
	return model.ErrSolverUnsuccessful
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for pipeline progress.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With("component", "engine")
	}
}

// WithSolverOptions sets the search budget and worker count.
func WithSolverOptions(opts solver.Options) Option {
	return func(s *Scheduler) {
		s.solverOpts = opts
	}
}

// WithTimeUnit sets the real-world length of one integer time unit, used to
// translate offsets when an anchor is given. Defaults to one hour.
func WithTimeUnit(unit time.Duration) Option {
	return func(s *Scheduler) {
		if unit > 0 {
			s.timeUnit = unit
		}
	}
}

// WithName labels the request in results and logs.
func WithName(name string) Option {
	return func(s *Scheduler) {
		s.name = name
	}
}

// Scheduler schedules one request. It moves from UNSOLVED to SOLVED on a
// successful Solve and stays there until Reset.
type Scheduler struct {
	mu sync.Mutex

	name       string
	jobs       []model.Job
	byID       map[int]int // job id -> position
	logger     *slog.Logger
	solverOpts solver.Options
	timeUnit   time.Duration

	state  model.EngineState
	result *result
}

// result is everything produced by a successful solve.
type result struct {
	status   model.SolveStatus
	makespan int64
	stats    model.SolverStats
	tasks    []model.SolvedTask // insertion order: job order, then task order
	rows     []model.Row        // sorted by (machine, start), stable
}

// New creates an unsolved Scheduler for jobs. The jobs are deep-copied, so
// the caller may reuse them. If job ids are not unique, every job id is
// reassigned by position.
func New(jobs []model.Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:       make([]model.Job, len(jobs)),
		byID:       make(map[int]int, len(jobs)),
		logger:     logging.Discard(),
		solverOpts: solver.DefaultOptions(),
		timeUnit:   time.Hour,
		state:      model.EngineStateUnsolved,
	}
	unique := true
	for i, j := range jobs {
		s.jobs[i] = j.Clone()
		if _, dup := s.byID[j.ID]; dup {
			unique = false
		}
		s.byID[j.ID] = i
	}
	if !unique {
		s.byID = make(map[int]int, len(jobs))
		for i := range s.jobs {
			s.jobs[i].ID = i
			s.byID[i] = i
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the request label.
func (s *Scheduler) Name() string { return s.name }

// Jobs returns copies of the jobs in insertion order.
func (s *Scheduler) Jobs() []model.Job {
	out := make([]model.Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

// Job returns a copy of the job with the given id.
func (s *Scheduler) Job(id int) (model.Job, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Job{}, false
	}
	return s.jobs[i].Clone(), true
}

// AllMachines returns the sorted union of all machines.
func (s *Scheduler) AllMachines() []model.MachineID {
	return model.AllMachines(s.jobs)
}

// Horizon returns the sum of all job horizons.
func (s *Scheduler) Horizon() int64 {
	return model.Horizon(s.jobs)
}

// TimeUnit returns the length of one integer time unit.
func (s *Scheduler) TimeUnit() time.Duration { return s.timeUnit }

// State returns the lifecycle state.
func (s *Scheduler) State() model.EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Solve builds the constraint model, searches it and extracts the result.
// Solving an already solved Scheduler is a no-op. On an INFEASIBLE or
// UNKNOWN outcome it returns a *SolveError and the Scheduler stays UNSOLVED.
func (s *Scheduler) Solve(ctx context.Context) (*Scheduler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == model.EngineStateSolved {
		s.logger.Debug("already solved; returning cached result", "name", s.name)
		return s, nil
	}

	log := s.logger.With("name", s.name, "jobs", len(s.jobs), "horizon", s.Horizon())

	log.Info("initializing model and defining variables")
	b := cpmodel.NewBuilder(s.jobs)
	b.Initialize()

	log.Info("adding no-overlap constraints", "machines", len(s.AllMachines()))
	if err := b.AddNoOverlap(); err != nil {
		return s, fmt.Errorf("build model: %w", err)
	}
	log.Info("adding precedence constraints")
	b.AddPrecedence()

	log.Info("defining optimization goal")
	b.DefineObjective()

	opts := s.solverOpts
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	log.Info("starting optimization", "time_limit", opts.TimeLimit, "node_limit", opts.NodeLimit, "workers", opts.Workers)
	sol, err := solver.Solve(ctx, b.Model(), opts)
	if err != nil {
		return s, fmt.Errorf("solve: %w", err)
	}

	log.Info("solver finished",
		"status", sol.Status,
		"branches", sol.Stats.Branches,
		"pruned", sol.Stats.Pruned,
		"wall_time", sol.Stats.WallTime,
	)
	if !sol.Status.HasSolution() {
		return s, &SolveError{Status: sol.Status, Stats: sol.Stats}
	}

	s.result = extract(s.jobs, b.Handles(), sol, sol.Value(b.Makespan()))
	s.transition(model.EngineStateSolved)
	log.Info("schedule ready", "status", sol.Status, "makespan", s.result.makespan)
	return s, nil
}

// Reset discards the solved result and returns the Scheduler to UNSOLVED.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == model.EngineStateSolved {
		s.transition(model.EngineStateUnsolved)
	}
	s.result = nil
}

func (s *Scheduler) transition(next model.EngineState) {
	if !s.state.CanTransitionTo(next) {
		panic(&model.InvalidTransitionError{From: s.state, To: next})
	}
	s.state = next
}

// solved returns the result or ErrModelNotFitted. Callers hold s.mu.
func (s *Scheduler) solved() (*result, error) {
	if s.state != model.EngineStateSolved || s.result == nil {
		return nil, model.ErrModelNotFitted
	}
	return s.result, nil
}

// Status returns the solve status (OPTIMAL or FEASIBLE).
func (s *Scheduler) Status() (model.SolveStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.solved()
	if err != nil {
		return "", err
	}
	return r.status, nil
}

// Makespan returns the solved makespan.
func (s *Scheduler) Makespan() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.solved()
	if err != nil {
		return 0, err
	}
	return r.makespan, nil
}

// Stats returns the search statistics of the successful solve.
func (s *Scheduler) Stats() (model.SolverStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.solved()
	if err != nil {
		return model.SolverStats{}, err
	}
	return r.stats, nil
}
