package solver

import (
	"math"
	"sort"

	"github.com/me/goshop/internal/cpmodel"
	"github.com/me/goshop/pkg/model"
)

// problem is the static, index-based view of a model used during search.
// Each integer variable is assumed to belong to at most one interval.
type problem struct {
	m      *cpmodel.Model
	n      int
	dur    []int64
	group  []int
	groups [][]int
	preds  [][]int
	succs  [][]int
	topo   []int // topological order; intervals on a precedence cycle are absent

	// relevant marks intervals whose end bounds the objective through some
	// precedence path. Only those feed the lower bound.
	relevant []bool
	isTerm   []bool
	tail     []int64 // longest duration path after the interval to a term

	minStart []int64
	maxStart []int64
	maxEnd   []int64

	hasObj bool
	objMin int64
	objMax int64
}

func newProblem(m *cpmodel.Model) *problem {
	ivs := m.Intervals()
	vars := m.Vars()
	n := len(ivs)
	p := &problem{
		m:        m,
		n:        n,
		dur:      make([]int64, n),
		group:    make([]int, n),
		groups:   make([][]int, len(m.NoOverlaps())),
		preds:    make([][]int, n),
		succs:    make([][]int, n),
		relevant: make([]bool, n),
		isTerm:   make([]bool, n),
		tail:     make([]int64, n),
		minStart: make([]int64, n),
		maxStart: make([]int64, n),
		maxEnd:   make([]int64, n),
	}

	for i, iv := range ivs {
		p.dur[i] = iv.Duration
		p.group[i] = m.GroupOf(cpmodel.IntervalIndex(i))
		sv, ev := vars[iv.Start], vars[iv.End]
		p.minStart[i] = max(sv.Min, ev.Min-iv.Duration, 0)
		p.maxStart[i] = sv.Max
		p.maxEnd[i] = ev.Max
	}
	for g, no := range m.NoOverlaps() {
		for _, iv := range no.Intervals {
			p.groups[g] = append(p.groups[g], int(iv))
		}
	}
	for _, pr := range m.Precedences() {
		p.succs[pr.Before] = append(p.succs[pr.Before], int(pr.After))
		p.preds[pr.After] = append(p.preds[pr.After], int(pr.Before))
	}

	if obj, ok := m.Objective(); ok {
		p.hasObj = true
		p.objMin, p.objMax = vars[obj].Min, vars[obj].Max
		for _, iv := range m.ObjectiveTerms() {
			p.isTerm[iv] = true
		}
	}

	p.topo = topoOrder(p.preds, p.succs)
	for k := len(p.topo) - 1; k >= 0; k-- {
		i := p.topo[k]
		p.relevant[i] = p.isTerm[i]
		for _, s := range p.succs[i] {
			if p.relevant[s] {
				p.relevant[i] = true
				p.tail[i] = max(p.tail[i], p.dur[s]+p.tail[s])
			}
		}
	}
	return p
}

// topoOrder returns a topological order by Kahn's algorithm, lowest index
// first among ready intervals.
func topoOrder(preds, succs [][]int) []int {
	n := len(preds)
	inDegree := make([]int, n)
	var queue []int
	for i := range preds {
		inDegree[i] = len(preds[i])
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, s := range succs[i] {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	return order
}

// trivial solves a model without intervals.
func (p *problem) trivial() (model.SolveStatus, int64) {
	if !p.hasObj {
		return model.SolveStatusOptimal, 0
	}
	if !p.objectiveFeasible(0) {
		return model.SolveStatusInfeasible, 0
	}
	return model.SolveStatusOptimal, 0
}

func (p *problem) objectiveFeasible(obj int64) bool {
	return !p.hasObj || (obj >= p.objMin && obj <= p.objMax)
}

// state is one search node. start[i] is -1 while interval i is unscheduled.
type state struct {
	start     []int64
	est       []int64
	predsLeft []int32
	machReady []int64
	remaining []int64 // per group: duration of unscheduled relevant intervals
	done      int
	objEnd    int64
}

func (p *problem) root() *state {
	st := &state{
		start:     make([]int64, p.n),
		est:       make([]int64, p.n),
		predsLeft: make([]int32, p.n),
		machReady: make([]int64, len(p.groups)),
		remaining: make([]int64, len(p.groups)),
	}
	for i := 0; i < p.n; i++ {
		st.start[i] = -1
		st.est[i] = p.minStart[i]
		st.predsLeft[i] = int32(len(p.preds[i]))
		if g := p.group[i]; g >= 0 && p.relevant[i] {
			st.remaining[g] += p.dur[i]
		}
	}
	return st
}

func (st *state) clone() *state {
	return &state{
		start:     append([]int64(nil), st.start...),
		est:       append([]int64(nil), st.est...),
		predsLeft: append([]int32(nil), st.predsLeft...),
		machReady: append([]int64(nil), st.machReady...),
		remaining: append([]int64(nil), st.remaining...),
		done:      st.done,
		objEnd:    st.objEnd,
	}
}

// earliest returns the earliest start of a schedulable interval.
func (p *problem) earliest(st *state, i int) int64 {
	es := st.est[i]
	if g := p.group[i]; g >= 0 && st.machReady[g] > es {
		es = st.machReady[g]
	}
	return es
}

// branches returns the conflict set to branch on, most promising first.
// It is empty only when no interval is schedulable (a precedence cycle).
func (p *problem) branches(st *state) []int {
	pick, pickEC := -1, int64(math.MaxInt64)
	for i := 0; i < p.n; i++ {
		if st.start[i] >= 0 || st.predsLeft[i] > 0 {
			continue
		}
		if ec := p.earliest(st, i) + p.dur[i]; ec < pickEC {
			pick, pickEC = i, ec
		}
	}
	if pick < 0 {
		return nil
	}
	g := p.group[pick]
	if g < 0 {
		return []int{pick}
	}

	conflict := []int{pick}
	for _, i := range p.groups[g] {
		if i == pick || st.start[i] >= 0 || st.predsLeft[i] > 0 {
			continue
		}
		if p.earliest(st, i) < pickEC {
			conflict = append(conflict, i)
		}
	}
	sort.SliceStable(conflict, func(a, b int) bool {
		ia, ib := conflict[a], conflict[b]
		ea, eb := p.earliest(st, ia), p.earliest(st, ib)
		if ea != eb {
			return ea < eb
		}
		wa, wb := p.dur[ia]+p.tail[ia], p.dur[ib]+p.tail[ib]
		if wa != wb {
			return wa > wb
		}
		return ia < ib
	})
	return conflict
}

// schedule starts interval i at its earliest time. It returns false if
// that violates the interval's variable domains.
func (p *problem) schedule(st *state, i int) bool {
	start := p.earliest(st, i)
	end := start + p.dur[i]
	if start > p.maxStart[i] || end > p.maxEnd[i] {
		return false
	}
	st.start[i] = start
	st.done++
	if g := p.group[i]; g >= 0 {
		st.machReady[g] = end
		if p.relevant[i] {
			st.remaining[g] -= p.dur[i]
		}
	}
	for _, s := range p.succs[i] {
		if end > st.est[s] {
			st.est[s] = end
		}
		st.predsLeft[s]--
	}
	if p.isTerm[i] && end > st.objEnd {
		st.objEnd = end
	}
	return true
}

// lowerBound bounds the objective of every completion of st. It combines
// the longest head+duration+tail path over unscheduled relevant intervals
// with the remaining load of each machine.
func (p *problem) lowerBound(st *state) int64 {
	lb := st.objEnd
	head := make([]int64, p.n)
	for _, i := range p.topo {
		if st.start[i] >= 0 {
			head[i] = st.start[i]
			continue
		}
		h := p.earliest(st, i)
		for _, pr := range p.preds[i] {
			if st.start[pr] < 0 {
				h = max(h, head[pr]+p.dur[pr])
			}
		}
		head[i] = h
		if p.relevant[i] {
			lb = max(lb, h+p.dur[i]+p.tail[i])
		}
	}

	for g, members := range p.groups {
		if st.remaining[g] == 0 {
			continue
		}
		minHead, minTail := int64(math.MaxInt64), int64(math.MaxInt64)
		for _, i := range members {
			if st.start[i] >= 0 || !p.relevant[i] {
				continue
			}
			minHead = min(minHead, head[i])
			minTail = min(minTail, p.tail[i])
		}
		if minHead != math.MaxInt64 {
			lb = max(lb, minHead+st.remaining[g]+minTail)
		}
	}
	return lb
}

// values maps interval start times onto the model's variables.
func (p *problem) values(starts []int64) []int64 {
	vars := p.m.Vars()
	out := make([]int64, len(vars))
	for v, iv := range vars {
		out[v] = iv.Min
	}
	ends := make([]int64, p.n)
	for i, iv := range p.m.Intervals() {
		ends[i] = starts[i] + iv.Duration
		out[iv.Start] = starts[i]
		out[iv.End] = ends[i]
	}
	for _, eq := range p.m.MaxEqualities() {
		var v int64
		for _, iv := range eq.Intervals {
			v = max(v, ends[iv])
		}
		out[eq.Target] = v
	}
	return out
}
