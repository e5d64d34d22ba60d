/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package presolve reduces an LP before it is solved and maps the solution
// of the reduced LP back onto the original one.
//
// Reductions are applied from a work queue of rows and columns until no rule
// fires: empty rows are dropped, singleton rows become column bounds, fixed
// columns are substituted out, empty columns are fixed at their best bound
// and duplicate columns are merged. Each reduction pushes an undo record
// that Postsolve replays in reverse.
package presolve

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/timer"
)

// Status is the outcome of a presolve run.
type Status int

const (
	StatusNotPresolved Status = iota
	StatusNotReduced
	StatusReduced
	StatusReducedToEmpty
	StatusInfeasible
	StatusUnbounded
	StatusTimeout
	StatusOptionsError
	StatusError
)

var statusNames = []string{
	"not presolved",
	"not reduced",
	"reduced",
	"reduced to empty",
	"infeasible",
	"unbounded",
	"timeout",
	"options error",
	"error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Reductions counts what a presolve run removed.
type Reductions struct {
	RowsRemoved     int
	ColsRemoved     int
	NonzerosRemoved int

	EmptyRows     int
	SingletonRows int
	FixedCols     int
	EmptyCols     int
	DuplicateCols int
}

type entry struct {
	index int
	value float64
}

// Presolver is the built-in presolve engine. A Presolver handles one model
// at a time; Init discards any previous state.
type Presolver struct {
	logger *slog.Logger

	model *lp.Model
	clock *timer.Clock
	opts  *config.Options

	// working problem
	cost                 []float64
	colLower, colUpper   []float64
	rowLower, rowUpper   []float64
	offset               float64
	cols, rows           [][]entry
	colActive, rowActive []bool
	colCount, rowCount   []int

	stack      []undo
	reductions Reductions
	status     Status

	// empty columns with an improving unbounded direction
	rays mapset.Set[int]

	reduced        *lp.Model
	colMap, rowMap []int

	colBasis, rowBasis []lp.BasisStatus
	recovered          lp.Basis
}

// New returns a presolver that logs to logger.
func New(logger *slog.Logger) *Presolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Presolver{logger: logger}
}

// Init loads m for presolving. The clock and options provide the time limit
// and tolerances; clock may be nil.
func (p *Presolver) Init(m *lp.Model, clock *timer.Clock, opts *config.Options) {
	*p = Presolver{
		logger: p.logger,
		model:  m,
		clock:  clock,
		opts:   opts,
		status: StatusNotPresolved,
		rays:   mapset.NewThreadUnsafeSet[int](),
	}
	if m == nil {
		return
	}

	n, r := m.NumCol, m.NumRow
	p.cost = append([]float64(nil), m.ColCost...)
	p.colLower = append([]float64(nil), m.ColLower...)
	p.colUpper = append([]float64(nil), m.ColUpper...)
	p.rowLower = append([]float64(nil), m.RowLower...)
	p.rowUpper = append([]float64(nil), m.RowUpper...)
	p.offset = m.Offset

	p.cols = make([][]entry, n)
	p.rows = make([][]entry, r)
	p.colActive = make([]bool, n)
	p.rowActive = make([]bool, r)
	p.colCount = make([]int, n)
	p.rowCount = make([]int, r)
	for j := 0; j < n; j++ {
		p.colActive[j] = true
		rows, vals := m.Column(j)
		for k, i := range rows {
			p.cols[j] = append(p.cols[j], entry{index: i, value: vals[k]})
			p.rows[i] = append(p.rows[i], entry{index: j, value: vals[k]})
		}
		p.colCount[j] = len(rows)
	}
	for i := 0; i < r; i++ {
		p.rowActive[i] = true
		p.rowCount[i] = len(p.rows[i])
	}
}

// Run applies the reduction rules. On StatusReduced the reduced LP is
// available through ReducedProblem.
func (p *Presolver) Run(ctx context.Context) Status {
	if p.model == nil || p.opts == nil {
		p.status = StatusError
		return p.status
	}
	if err := p.opts.Validate(); err != nil {
		p.logger.Error("invalid presolve options", slog.Any("error", err))
		p.status = StatusOptionsError
		return p.status
	}
	if p.opts.Presolve == config.Off {
		return p.status
	}
	if p.timeout(ctx) {
		p.status = StatusTimeout
		return p.status
	}

	p.status = p.reduce(ctx)
	p.logger.Debug("presolve finished",
		slog.String("status", p.status.String()),
		slog.Int("rows_removed", p.reductions.RowsRemoved),
		slog.Int("cols_removed", p.reductions.ColsRemoved),
		slog.Int("nonzeros_removed", p.reductions.NonzerosRemoved),
	)
	return p.status
}

func (p *Presolver) timeout(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return p.clock != nil && p.clock.Exceeded(p.opts.TimeLimitDuration())
}

func (p *Presolver) reduce(ctx context.Context) Status {
	rowQueue := mapset.NewThreadUnsafeSet[int]()
	colQueue := mapset.NewThreadUnsafeSet[int]()
	for i := range p.rows {
		rowQueue.Add(i)
	}
	for j := range p.cols {
		colQueue.Add(j)
	}

	for {
		for rowQueue.Cardinality() > 0 || colQueue.Cardinality() > 0 {
			if p.timeout(ctx) {
				return StatusTimeout
			}
			if i, ok := rowQueue.Pop(); ok {
				if s := p.reduceRow(i, colQueue); s != StatusNotPresolved {
					return s
				}
				continue
			}
			j, _ := colQueue.Pop()
			p.reduceCol(j, rowQueue)
		}
		if !p.mergeDuplicates(rowQueue, colQueue) {
			break
		}
	}

	if rays := p.rays.Cardinality(); rays > 0 {
		if !slices.Contains(p.rowActive, true) {
			p.logger.Debug("unbounded ray without constraints", slog.Int("rays", rays))
			return StatusUnbounded
		}
		// the ray only matters if the remaining rows are feasible
		p.logger.Debug("unbounded ray left to the solver", slog.Int("rays", rays))
	}
	if p.reductions.RowsRemoved == 0 && p.reductions.ColsRemoved == 0 {
		return StatusNotReduced
	}
	p.buildReduced()
	if p.reduced.NumCol == 0 && p.reduced.NumRow == 0 {
		return StatusReducedToEmpty
	}
	return StatusReduced
}

// reduceRow returns StatusNotPresolved unless the row proves the LP
// infeasible.
func (p *Presolver) reduceRow(i int, colQueue mapset.Set[int]) Status {
	if !p.rowActive[i] {
		return StatusNotPresolved
	}
	tol := p.opts.PrimalFeasibilityTolerance

	switch p.rowCount[i] {
	case 0:
		if p.rowLower[i] > tol || p.rowUpper[i] < -tol {
			p.logger.Debug("empty row with infeasible bounds", slog.Int("row", i))
			return StatusInfeasible
		}
		p.removeRow(i)
		p.reductions.EmptyRows++
		p.stack = append(p.stack, emptyRow{row: i})

	case 1:
		e := p.activeEntries(p.rows[i], p.colActive)[0]
		j, a := e.index, e.value
		lo, hi := p.rowLower[i]/a, p.rowUpper[i]/a
		if a < 0 {
			lo, hi = hi, lo
		}

		rec := singletonRow{
			row: i, col: j, value: a,
			rowLower: p.rowLower[i], rowUpper: p.rowUpper[i],
		}
		if lo > p.colLower[j] {
			p.colLower[j] = lo
			rec.lowerFromRow = true
		}
		if hi < p.colUpper[j] {
			p.colUpper[j] = hi
			rec.upperFromRow = true
		}
		if p.colLower[j] > p.colUpper[j] {
			if p.colLower[j] > p.colUpper[j]+tol {
				p.logger.Debug("singleton row crosses column bounds", slog.Int("row", i), slog.Int("col", j))
				return StatusInfeasible
			}
			if rec.lowerFromRow {
				p.colLower[j] = p.colUpper[j]
			} else {
				p.colUpper[j] = p.colLower[j]
			}
		}

		p.removeRow(i)
		p.reductions.SingletonRows++
		p.stack = append(p.stack, rec)
		colQueue.Add(j)
	}

	return StatusNotPresolved
}

// reduceCol removes fixed and empty columns. An empty column with an
// improving ray stays in the problem and is recorded in p.rays.
func (p *Presolver) reduceCol(j int, rowQueue mapset.Set[int]) {
	if !p.colActive[j] {
		return
	}
	lower, upper := p.colLower[j], p.colUpper[j]

	switch {
	case lower == upper:
		p.fixCol(j, lower, lp.BasisStatusNonbasic, rowQueue)
		p.reductions.FixedCols++

	case p.colCount[j] == 0:
		cost := float64(p.model.Sense) * p.cost[j]
		var value float64
		var status lp.BasisStatus
		switch {
		case cost > 0:
			if lower == lp.NegInf() {
				p.logger.Debug("empty column unbounded below", slog.Int("col", j))
				p.rays.Add(j)
				return
			}
			value, status = lower, lp.BasisStatusLower
		case cost < 0:
			if upper == lp.Inf() {
				p.logger.Debug("empty column unbounded above", slog.Int("col", j))
				p.rays.Add(j)
				return
			}
			value, status = upper, lp.BasisStatusUpper
		default:
			status = lp.NonbasicStatus(lower, upper, 0)
			value = lp.NonbasicValue(status, lower, upper)
		}
		p.fixCol(j, value, status, rowQueue)
		p.reductions.EmptyCols++
	}
}

// fixCol substitutes column j out at value.
func (p *Presolver) fixCol(j int, value float64, status lp.BasisStatus, rowQueue mapset.Set[int]) {
	for _, e := range p.activeEntries(p.cols[j], p.rowActive) {
		shift := e.value * value
		p.rowLower[e.index] -= shift
		p.rowUpper[e.index] -= shift
		rowQueue.Add(e.index)
	}
	p.offset += p.cost[j] * value
	p.removeCol(j)
	p.stack = append(p.stack, fixedCol{col: j, value: value, status: status})
}

// mergeDuplicates merges pairs of columns k, j with a_k = λ·a_j and
// c_k = λ·c_j for some λ > 0 into column j. It reports whether any pair was
// merged.
func (p *Presolver) mergeDuplicates(rowQueue, colQueue mapset.Set[int]) bool {
	groups := make(map[string][]int)
	var order []string
	for j := range p.cols {
		if !p.colActive[j] || p.colCount[j] == 0 {
			continue
		}
		key := p.patternKey(j)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], j)
	}

	merged := false
	for _, key := range order {
		cols := groups[key]
		for a := 0; a < len(cols); a++ {
			j := cols[a]
			if !p.colActive[j] {
				continue
			}
			for b := a + 1; b < len(cols); b++ {
				k := cols[b]
				if !p.colActive[k] {
					continue
				}
				scale, ok := p.duplicateScale(j, k)
				if !ok {
					continue
				}
				p.mergeCol(j, k, scale, rowQueue)
				colQueue.Add(j)
				merged = true
			}
		}
	}
	return merged
}

// patternKey identifies the active sparsity pattern of column j with its
// values normalized by the first entry.
func (p *Presolver) patternKey(j int) string {
	entries := p.activeEntries(p.cols[j], p.rowActive)
	first := entries[0].value
	key := make([]byte, 0, 24*len(entries))
	for _, e := range entries {
		key = fmt.Appendf(key, "%d:%.12g;", e.index, e.value/first)
	}
	return string(key)
}

func (p *Presolver) duplicateScale(j, k int) (float64, bool) {
	ej := p.activeEntries(p.cols[j], p.rowActive)
	ek := p.activeEntries(p.cols[k], p.rowActive)
	if len(ej) != len(ek) {
		return 0, false
	}
	scale := ek[0].value / ej[0].value
	if scale <= 0 {
		return 0, false
	}
	for n := range ej {
		if ej[n].index != ek[n].index || !nearlyEqual(ek[n].value, scale*ej[n].value) {
			return 0, false
		}
	}
	if !nearlyEqual(p.cost[k], scale*p.cost[j]) {
		return 0, false
	}
	return scale, true
}

// mergeCol folds column k into column j as x_j + scale·x_k.
func (p *Presolver) mergeCol(j, k int, scale float64, rowQueue mapset.Set[int]) {
	rec := duplicateCol{
		col: j, dup: k, scale: scale,
		colLower: p.colLower[j], colUpper: p.colUpper[j],
		dupLower: p.colLower[k], dupUpper: p.colUpper[k],
	}
	p.colLower[j] += scale * p.colLower[k]
	p.colUpper[j] += scale * p.colUpper[k]
	for _, e := range p.activeEntries(p.cols[k], p.rowActive) {
		rowQueue.Add(e.index)
	}
	p.removeCol(k)
	p.reductions.DuplicateCols++
	p.stack = append(p.stack, rec)
}

func (p *Presolver) removeRow(i int) {
	p.rowActive[i] = false
	for _, e := range p.activeEntries(p.rows[i], p.colActive) {
		p.colCount[e.index]--
		p.reductions.NonzerosRemoved++
	}
	p.rowCount[i] = 0
	p.reductions.RowsRemoved++
}

func (p *Presolver) removeCol(j int) {
	p.colActive[j] = false
	for _, e := range p.activeEntries(p.cols[j], p.rowActive) {
		p.rowCount[e.index]--
		p.reductions.NonzerosRemoved++
	}
	p.colCount[j] = 0
	p.reductions.ColsRemoved++
}

func (p *Presolver) activeEntries(entries []entry, active []bool) []entry {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		if active[e.index] {
			out = append(out, e)
		}
	}
	return out
}

// buildReduced assembles the LP over the remaining rows and columns.
func (p *Presolver) buildReduced() {
	m := p.model
	p.colMap = p.colMap[:0]
	p.rowMap = p.rowMap[:0]
	newRow := make([]int, m.NumRow)
	for i := range newRow {
		newRow[i] = -1
		if p.rowActive[i] {
			newRow[i] = len(p.rowMap)
			p.rowMap = append(p.rowMap, i)
		}
	}
	for j := range p.colActive {
		if p.colActive[j] {
			p.colMap = append(p.colMap, j)
		}
	}

	red := lp.NewModel(len(p.colMap), len(p.rowMap))
	red.Name = m.Name
	red.Sense = m.Sense
	red.Offset = p.offset
	red.AStart = red.AStart[:1]
	for k, j := range p.colMap {
		red.ColCost[k] = p.cost[j]
		red.ColLower[k] = p.colLower[j]
		red.ColUpper[k] = p.colUpper[j]
		for _, e := range p.activeEntries(p.cols[j], p.rowActive) {
			red.AIndex = append(red.AIndex, newRow[e.index])
			red.AValue = append(red.AValue, e.value)
		}
		red.AStart = append(red.AStart, len(red.AIndex))
	}
	for k, i := range p.rowMap {
		red.RowLower[k] = p.rowLower[i]
		red.RowUpper[k] = p.rowUpper[i]
	}
	if m.ColNames != nil {
		red.ColNames = make([]string, len(p.colMap))
		for k, j := range p.colMap {
			red.ColNames[k] = m.ColNames[j]
		}
	}
	if m.RowNames != nil {
		red.RowNames = make([]string, len(p.rowMap))
		for k, i := range p.rowMap {
			red.RowNames[k] = m.RowNames[i]
		}
	}
	p.reduced = red
}

// ReducedProblem returns the reduced LP, or nil if the last run did not
// reduce the model.
func (p *Presolver) ReducedProblem() *lp.Model {
	if p.status != StatusReduced && p.status != StatusReducedToEmpty {
		return nil
	}
	return p.reduced
}

// Reductions returns the counts of the last run.
func (p *Presolver) Reductions() Reductions {
	return p.reductions
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
