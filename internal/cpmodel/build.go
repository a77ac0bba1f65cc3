package cpmodel

import (
	"fmt"

	"github.com/me/goshop/pkg/model"
)

// Handle locates a task's variables in a built Model.
type Handle struct {
	JobIndex  int // position of the job in the request
	TaskIndex int // position of the task in its job
	JobID     int
	TaskID    int
	Interval  IntervalIndex
	Start     VarIndex
	End       VarIndex
}

// Builder translates jobs into a Model. Its steps must run in order:
// Initialize, AddNoOverlap, AddPrecedence, DefineObjective.
type Builder struct {
	jobs     []model.Job
	horizon  int64
	model    *Model
	handles  [][]Handle
	machines map[model.MachineID][]IntervalIndex
	makespan VarIndex
}

// NewBuilder creates a Builder for jobs. Jobs are read, never modified.
func NewBuilder(jobs []model.Job) *Builder {
	return &Builder{
		jobs:     jobs,
		horizon:  model.Horizon(jobs),
		model:    New(),
		machines: make(map[model.MachineID][]IntervalIndex),
		makespan: -1,
	}
}

// Initialize allocates start/end variables over [0, horizon] and one
// interval per task, grouping intervals by machine.
func (b *Builder) Initialize() {
	b.handles = make([][]Handle, len(b.jobs))
	for ji, job := range b.jobs {
		b.handles[ji] = make([]Handle, len(job.Tasks))
		for ti, task := range job.Tasks {
			suffix := fmt.Sprintf("%d_%d", job.ID, task.ID)
			start := b.model.NewIntVar(0, b.horizon, "start_"+suffix)
			end := b.model.NewIntVar(0, b.horizon, "end_"+suffix)
			iv := b.model.NewIntervalVar(start, task.Duration, end, "interval_"+suffix)
			b.handles[ji][ti] = Handle{
				JobIndex:  ji,
				TaskIndex: ti,
				JobID:     job.ID,
				TaskID:    task.ID,
				Interval:  iv,
				Start:     start,
				End:       end,
			}
			b.machines[task.Machine] = append(b.machines[task.Machine], iv)
		}
	}
}

// AddNoOverlap adds one no-overlap group per machine, in sorted machine order.
func (b *Builder) AddNoOverlap() error {
	for _, m := range model.AllMachines(b.jobs) {
		if err := b.model.AddNoOverlap("machine_"+m.String(), b.machines[m]); err != nil {
			return err
		}
	}
	return nil
}

// AddPrecedence chains consecutive tasks of every job.
func (b *Builder) AddPrecedence() {
	for ji := range b.jobs {
		hs := b.handles[ji]
		for k := 0; k+1 < len(hs); k++ {
			b.model.AddPrecedence(hs[k].Interval, hs[k+1].Interval)
		}
	}
}

// DefineObjective adds the makespan variable, bound to the end of each
// job's last task, and minimizes it. Jobs without tasks contribute nothing.
func (b *Builder) DefineObjective() {
	b.makespan = b.model.NewIntVar(0, b.horizon, "makespan")
	var last []IntervalIndex
	for ji := range b.jobs {
		if hs := b.handles[ji]; len(hs) > 0 {
			last = append(last, hs[len(hs)-1].Interval)
		}
	}
	b.model.AddMaxEquality(b.makespan, last)
	b.model.Minimize(b.makespan)
}

// Model returns the model built so far.
func (b *Builder) Model() *Model { return b.model }

// Handles returns the per-task handles, indexed [job position][task position].
func (b *Builder) Handles() [][]Handle { return b.handles }

// Horizon returns the upper bound used for variable domains.
func (b *Builder) Horizon() int64 { return b.horizon }

// Makespan returns the objective variable, or -1 before DefineObjective.
func (b *Builder) Makespan() VarIndex { return b.makespan }

// Build runs every builder step and returns the model and task handles.
func Build(jobs []model.Job) (*Model, [][]Handle, error) {
	b := NewBuilder(jobs)
	b.Initialize()
	if err := b.AddNoOverlap(); err != nil {
		return nil, nil, fmt.Errorf("add no-overlap: %w", err)
	}
	b.AddPrecedence()
	b.DefineObjective()
	return b.model, b.handles, nil
}
