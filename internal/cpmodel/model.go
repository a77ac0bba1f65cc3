// Package cpmodel holds a small constraint model for disjunctive scheduling:
// bounded integer variables, fixed-size interval variables, no-overlap
// groups, precedence constraints and a makespan objective.
package cpmodel

import (
	"fmt"
)

// VarIndex identifies an integer variable in a Model.
type VarIndex int

// IntervalIndex identifies an interval variable in a Model.
type IntervalIndex int

// IntVar is a bounded integer decision variable.
type IntVar struct {
	Name string
	Min  int64
	Max  int64
}

// IntervalVar binds Start, Duration and End: End = Start + Duration.
type IntervalVar struct {
	Name     string
	Start    VarIndex
	End      VarIndex
	Duration int64
}

// NoOverlap forbids any two of its intervals from intersecting.
type NoOverlap struct {
	Name      string
	Intervals []IntervalIndex
}

// Precedence requires After to start no earlier than Before ends.
type Precedence struct {
	Before IntervalIndex
	After  IntervalIndex
}

// MaxEquality constrains Target to equal the maximum of the End variables
// of Intervals (zero when Intervals is empty).
type MaxEquality struct {
	Target    VarIndex
	Intervals []IntervalIndex
}

// Model is a disjunctive scheduling model. The zero value is not usable;
// call New.
type Model struct {
	vars        []IntVar
	intervals   []IntervalVar
	noOverlaps  []NoOverlap
	precedences []Precedence
	maxEqs      []MaxEquality
	objective   VarIndex
	hasObj      bool
	groupOf     []int // interval -> no-overlap group, -1 if none
}

// New creates an empty model.
func New() *Model {
	return &Model{objective: -1}
}

// NewIntVar adds an integer variable over [lo, hi].
func (m *Model) NewIntVar(lo, hi int64, name string) VarIndex {
	m.vars = append(m.vars, IntVar{Name: name, Min: lo, Max: hi})
	return VarIndex(len(m.vars) - 1)
}

// NewIntervalVar adds an interval binding start, duration and end.
func (m *Model) NewIntervalVar(start VarIndex, duration int64, end VarIndex, name string) IntervalIndex {
	m.intervals = append(m.intervals, IntervalVar{Name: name, Start: start, End: end, Duration: duration})
	m.groupOf = append(m.groupOf, -1)
	return IntervalIndex(len(m.intervals) - 1)
}

// AddNoOverlap adds a no-overlap constraint over intervals. An interval may
// belong to at most one no-overlap group.
func (m *Model) AddNoOverlap(name string, intervals []IntervalIndex) error {
	g := len(m.noOverlaps)
	for _, iv := range intervals {
		if int(iv) < 0 || int(iv) >= len(m.intervals) {
			return fmt.Errorf("no-overlap %q: interval %d out of range", name, iv)
		}
		if prev := m.groupOf[iv]; prev >= 0 {
			return fmt.Errorf("no-overlap %q: interval %q already in group %q",
				name, m.intervals[iv].Name, m.noOverlaps[prev].Name)
		}
	}
	for _, iv := range intervals {
		m.groupOf[iv] = g
	}
	m.noOverlaps = append(m.noOverlaps, NoOverlap{Name: name, Intervals: append([]IntervalIndex(nil), intervals...)})
	return nil
}

// AddPrecedence requires after.Start >= before.End.
func (m *Model) AddPrecedence(before, after IntervalIndex) {
	m.precedences = append(m.precedences, Precedence{Before: before, After: after})
}

// AddMaxEquality constrains target to the maximum end of intervals.
func (m *Model) AddMaxEquality(target VarIndex, intervals []IntervalIndex) {
	m.maxEqs = append(m.maxEqs, MaxEquality{Target: target, Intervals: append([]IntervalIndex(nil), intervals...)})
}

// Minimize sets the objective variable.
func (m *Model) Minimize(v VarIndex) {
	m.objective = v
	m.hasObj = true
}

// Vars returns the model's integer variables.
func (m *Model) Vars() []IntVar { return m.vars }

// Intervals returns the model's interval variables.
func (m *Model) Intervals() []IntervalVar { return m.intervals }

// NoOverlaps returns the model's no-overlap groups.
func (m *Model) NoOverlaps() []NoOverlap { return m.noOverlaps }

// Precedences returns the model's precedence constraints.
func (m *Model) Precedences() []Precedence { return m.precedences }

// MaxEqualities returns the model's max-equality constraints.
func (m *Model) MaxEqualities() []MaxEquality { return m.maxEqs }

// Objective returns the minimized variable, if any.
func (m *Model) Objective() (VarIndex, bool) { return m.objective, m.hasObj }

// GroupOf returns the no-overlap group of interval iv, or -1.
func (m *Model) GroupOf(iv IntervalIndex) int { return m.groupOf[iv] }

// Validate checks structural consistency: variable references in range,
// non-empty domains, non-negative durations and an objective bound by a
// max-equality.
func (m *Model) Validate() error {
	for i, v := range m.vars {
		if v.Min > v.Max {
			return fmt.Errorf("variable %q (%d): empty domain [%d, %d]", v.Name, i, v.Min, v.Max)
		}
	}
	for _, iv := range m.intervals {
		if !m.validVar(iv.Start) || !m.validVar(iv.End) {
			return fmt.Errorf("interval %q: variable out of range", iv.Name)
		}
		if iv.Duration < 0 {
			return fmt.Errorf("interval %q: negative duration %d", iv.Name, iv.Duration)
		}
	}
	for _, p := range m.precedences {
		if !m.validInterval(p.Before) || !m.validInterval(p.After) {
			return fmt.Errorf("precedence %d -> %d: interval out of range", p.Before, p.After)
		}
	}
	for _, eq := range m.maxEqs {
		if !m.validVar(eq.Target) {
			return fmt.Errorf("max-equality: target %d out of range", eq.Target)
		}
		for _, iv := range eq.Intervals {
			if !m.validInterval(iv) {
				return fmt.Errorf("max-equality %q: interval %d out of range", m.vars[eq.Target].Name, iv)
			}
		}
	}
	if m.hasObj {
		if !m.validVar(m.objective) {
			return fmt.Errorf("objective %d out of range", m.objective)
		}
		if m.objectiveTerms() == nil {
			return fmt.Errorf("objective %q is not bound by a max-equality", m.vars[m.objective].Name)
		}
	}
	return nil
}

// ObjectiveTerms returns the intervals whose ends define the objective,
// or nil when the objective is not bound by a max-equality.
func (m *Model) ObjectiveTerms() []IntervalIndex {
	return m.objectiveTerms()
}

func (m *Model) objectiveTerms() []IntervalIndex {
	for _, eq := range m.maxEqs {
		if eq.Target == m.objective {
			if eq.Intervals == nil {
				return []IntervalIndex{}
			}
			return eq.Intervals
		}
	}
	return nil
}

func (m *Model) validVar(v VarIndex) bool {
	return int(v) >= 0 && int(v) < len(m.vars)
}

func (m *Model) validInterval(iv IntervalIndex) bool {
	return int(iv) >= 0 && int(iv) < len(m.intervals)
}
