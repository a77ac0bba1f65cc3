package model

import (
	"fmt"
	"time"
)

// SolvedTask is the immutable, solved counterpart of a Task.
// End always equals Start + Duration.
type SolvedTask struct {
	JobID    int       `json:"job_id"`
	JobName  string    `json:"job_name,omitempty"`
	TaskID   int       `json:"task_id"`
	TaskName string    `json:"task_name,omitempty"`
	Machine  MachineID `json:"machine"`
	Duration int64     `json:"duration"`
	Start    int64     `json:"start"`
	End      int64     `json:"end"`
}

// Row is one line of the result table.
type Row struct {
	JobID        int        `json:"job_id" yaml:"job_id"`
	JobName      string     `json:"job_name,omitempty" yaml:"job_name,omitempty"`
	ID           string     `json:"id" yaml:"id"`
	TaskName     string     `json:"task_name,omitempty" yaml:"task_name,omitempty"`
	Machine      MachineID  `json:"machine" yaml:"machine"`
	Start        int64      `json:"start" yaml:"start"`
	End          int64      `json:"end" yaml:"end"`
	PlannedStart *time.Time `json:"planned_start,omitempty" yaml:"planned_start,omitempty"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty" yaml:"planned_end,omitempty"`
}

// TaskRowID synthesizes the row identifier for a task of a job.
func TaskRowID(jobID, taskID int) string {
	return fmt.Sprintf("job(%d, %d)", jobID, taskID)
}

// SolverStats summarizes the search effort of a solve.
type SolverStats struct {
	Branches int64         `json:"branches" yaml:"branches"`
	Pruned   int64         `json:"pruned" yaml:"pruned"`
	Workers  int           `json:"workers" yaml:"workers"`
	WallTime time.Duration `json:"wall_time_ns" yaml:"wall_time_ns"`
}

// Schedule is the result table of a solved request.
type Schedule struct {
	ID        string      `json:"id,omitempty" yaml:"id,omitempty"`
	RequestID string      `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Name      string      `json:"name,omitempty" yaml:"name,omitempty"`
	Status    SolveStatus `json:"status" yaml:"status"`
	Makespan  int64       `json:"makespan" yaml:"makespan"`
	Anchor    *time.Time  `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	TimeUnit  string      `json:"time_unit,omitempty" yaml:"time_unit,omitempty"`
	Stats     SolverStats `json:"stats" yaml:"stats"`
	Rows      []Row       `json:"rows" yaml:"rows"`
	CreatedAt time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// WithAnchor returns a copy of the schedule whose rows carry absolute
// planned start/end times: anchor + offset × unit.
func (s *Schedule) WithAnchor(anchor time.Time, unit time.Duration) *Schedule {
	out := *s
	out.Anchor = &anchor
	out.TimeUnit = unit.String()
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		start := anchor.Add(time.Duration(r.Start) * unit)
		end := anchor.Add(time.Duration(r.End) * unit)
		r.PlannedStart = &start
		r.PlannedEnd = &end
		out.Rows[i] = r
	}
	return &out
}
