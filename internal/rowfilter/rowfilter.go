// Package rowfilter selects result rows with JavaScript predicates.
//
// An expression sees the row both as the object `row` and as top-level
// names: job, job_name, id, task, machine, start, end and duration.
// Examples:
//
//	machine == "3" && start >= 4
//	row.end - row.start > 2
//	job_name.startsWith("Batch")
package rowfilter

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/me/goshop/pkg/model"
)

// Filter is a compiled predicate. A Filter is not safe for concurrent use.
type Filter struct {
	expr string
	prog *goja.Program
	vm   *goja.Runtime
}

// Compile parses expr. An empty expression matches every row.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	f := &Filter{expr: expr}
	if expr == "" {
		return f, nil
	}
	prog, err := goja.Compile("where", "("+expr+")", true)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, err)
	}
	f.prog = prog
	f.vm = goja.New()
	return f, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the predicate for one row using JavaScript truthiness.
func (f *Filter) Match(row model.Row) (bool, error) {
	if f.prog == nil {
		return true, nil
	}
	fields := rowObject(row)
	for k, v := range fields {
		if err := f.vm.Set(k, v); err != nil {
			return false, fmt.Errorf("set %s: %w", k, err)
		}
	}
	if err := f.vm.Set("row", fields); err != nil {
		return false, fmt.Errorf("set row: %w", err)
	}
	v, err := f.vm.RunProgram(f.prog)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q on %s: %w", f.expr, row.ID, err)
	}
	return v.ToBoolean(), nil
}

// Apply returns the rows matching the predicate, in order.
func (f *Filter) Apply(rows []model.Row) ([]model.Row, error) {
	if f.prog == nil {
		return rows, nil
	}
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func rowObject(r model.Row) map[string]any {
	return map[string]any{
		"job":      r.JobID,
		"job_name": r.JobName,
		"id":       r.ID,
		"task":     r.TaskName,
		"machine":  r.Machine.String(),
		"start":    r.Start,
		"end":      r.End,
		"duration": r.End - r.Start,
	}
}
