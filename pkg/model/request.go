package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Request is a schedule request: the ordered list of jobs to schedule.
type Request struct {
	ID          string    `json:"id,omitempty" yaml:"-"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Jobs        []Job     `json:"jobs" yaml:"jobs"`
	ContentHash string    `json:"content_hash,omitempty" yaml:"-"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"-"`
}

// AllMachines returns the sorted union of every job's machines.
func (r Request) AllMachines() []MachineID {
	return AllMachines(r.Jobs)
}

// Horizon is the sum of every job's horizon. It bounds the schedule length
// since all tasks could in principle run one after another.
func (r Request) Horizon() int64 {
	return Horizon(r.Jobs)
}

// TaskCount returns the total number of tasks across all jobs.
func (r Request) TaskCount() int {
	n := 0
	for _, j := range r.Jobs {
		n += len(j.Tasks)
	}
	return n
}

// AllMachines returns the sorted union of the machines used by jobs.
func AllMachines(jobs []Job) []MachineID {
	set := make(map[MachineID]bool)
	for _, j := range jobs {
		for _, m := range j.Machines() {
			set[m] = true
		}
	}
	out := make([]MachineID, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}

// Horizon returns the sum of the horizons of jobs.
func Horizon(jobs []Job) int64 {
	var total int64
	for _, j := range jobs {
		total += j.Horizon()
	}
	return total
}

// Validate checks the request invariants: positive durations, non-empty
// machine ids, task ids unique within a job and job ids unique within the
// request. Returns nil if valid.
func (r Request) Validate() *APIError {
	var errs []FieldError

	jobIDs := make(map[int]int, len(r.Jobs))
	for ji, job := range r.Jobs {
		if prev, ok := jobIDs[job.ID]; ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("jobs[%d].id", ji),
				Message: fmt.Sprintf("job id %d already used by jobs[%d]", job.ID, prev),
			})
		} else {
			jobIDs[job.ID] = ji
		}

		taskIDs := make(map[int]bool, len(job.Tasks))
		for ti, task := range job.Tasks {
			field := fmt.Sprintf("jobs[%d].tasks[%d]", ji, ti)
			if taskIDs[task.ID] {
				errs = append(errs, FieldError{
					Field:   field + ".id",
					Message: fmt.Sprintf("task id %d is not unique within job %d", task.ID, job.ID),
				})
			}
			taskIDs[task.ID] = true
			if task.Machine == "" {
				errs = append(errs, FieldError{Field: field + ".machine", Message: "machine is required"})
			}
			if task.Duration <= 0 {
				errs = append(errs, FieldError{
					Field:   field + ".duration",
					Message: fmt.Sprintf("duration must be positive, got %d", task.Duration),
				})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return NewValidationError("invalid schedule request", errs...)
}

// ComputeContentHash returns the SHA-256 of the canonical JSON encoding of
// jobs. Names are part of the hash since they appear in the result table.
func ComputeContentHash(jobs []Job) string {
	canonical := make([]Job, len(jobs))
	for i, j := range jobs {
		canonical[i] = j.Clone()
		if canonical[i].Tasks == nil {
			canonical[i].Tasks = []Task{}
		}
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
