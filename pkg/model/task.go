package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MachineID identifies the machine a Task must run on.
// Machine identifiers are opaque tokens: they are compared and sorted as
// strings, and no other ordering is implied.
type MachineID string

// String returns the machine identifier as a string.
func (m MachineID) String() string {
	return string(m)
}

// UnmarshalJSON accepts both string and numeric machine identifiers.
func (m *MachineID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MachineID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("machine id must be a string or number: %s", string(data))
	}
	*m = MachineID(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar as a machine identifier.
func (m *MachineID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: machine id must be a scalar", value.Line)
	}
	*m = MachineID(strings.TrimSpace(value.Value))
	return nil
}

// Task is a single operation of a Job. It carries no timing state; solved
// timing lives on SolvedTask.
type Task struct {
	ID       int       `json:"id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Machine  MachineID `json:"machine" yaml:"machine"`
	Duration int64     `json:"duration" yaml:"duration"`
}

// Label returns the task name, or its id when unnamed.
func (t Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%d", t.ID)
}

// Job is an ordered sequence of tasks. Task order is the execution
// precedence: task k must finish before task k+1 starts.
type Job struct {
	ID    int    `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// Horizon is the sum of all task durations, the job's span when its tasks
// run with no parallelism.
func (j Job) Horizon() int64 {
	var total int64
	for _, t := range j.Tasks {
		total += t.Duration
	}
	return total
}

// Machines returns the distinct machines referenced by the job's tasks, in
// first-seen order.
func (j Job) Machines() []MachineID {
	seen := make(map[MachineID]bool, len(j.Tasks))
	var out []MachineID
	for _, t := range j.Tasks {
		if !seen[t.Machine] {
			seen[t.Machine] = true
			out = append(out, t.Machine)
		}
	}
	return out
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	c := j
	c.Tasks = append([]Task(nil), j.Tasks...)
	return c
}
