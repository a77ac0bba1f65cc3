package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/me/goshop/internal/cpmodel"
	"github.com/me/goshop/internal/solver"
	"github.com/me/goshop/pkg/model"
)

// extract reads solved values through the task handles and builds the
// immutable solved tasks and the sorted row table.
func extract(jobs []model.Job, handles [][]cpmodel.Handle, sol *solver.Solution, makespan int64) *result {
	r := &result{
		status:   sol.Status,
		makespan: makespan,
		stats:    sol.Stats,
	}
	for ji, job := range jobs {
		for ti, task := range job.Tasks {
			h := handles[ji][ti]
			r.tasks = append(r.tasks, model.SolvedTask{
				JobID:    job.ID,
				JobName:  job.Name,
				TaskID:   task.ID,
				TaskName: task.Name,
				Machine:  task.Machine,
				Duration: task.Duration,
				Start:    sol.Value(h.Start),
				End:      sol.Value(h.End),
			})
		}
	}

	r.rows = make([]model.Row, len(r.tasks))
	for i, t := range r.tasks {
		r.rows[i] = model.Row{
			JobID:    t.JobID,
			JobName:  t.JobName,
			ID:       model.TaskRowID(t.JobID, t.TaskID),
			TaskName: t.TaskName,
			Machine:  t.Machine,
			Start:    t.Start,
			End:      t.End,
		}
	}
	slices.SortStableFunc(r.rows, func(a, b model.Row) int {
		if c := cmp.Compare(a.Machine, b.Machine); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	return r
}

// SolvedTasks returns the solved tasks in insertion order.
func (s *Scheduler) SolvedTasks() ([]model.SolvedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.solved()
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.tasks), nil
}

// Results returns the result table sorted by machine then start, ties in
// insertion order. With a non-nil anchor every row also carries absolute
// planned start/end times (anchor + offset × time unit). The table is built
// once at solve time; each call returns a fresh copy.
func (s *Scheduler) Results(anchor *time.Time) (*model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.solved()
	if err != nil {
		return nil, err
	}

	sched := &model.Schedule{
		Name:     s.name,
		Status:   r.status,
		Makespan: r.makespan,
		Stats:    r.stats,
		Rows:     slices.Clone(r.rows),
	}
	if sched.Rows == nil {
		sched.Rows = []model.Row{}
	}
	if anchor != nil {
		return sched.WithAnchor(*anchor, s.timeUnit), nil
	}
	return sched, nil
}
