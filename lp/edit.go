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

package lp

import (
	"fmt"
	"math"
	"slices"
)

/* Column edits */

// AddCols appends len(cost) columns. start holds, for each new column, the
// offset of its first entry in index/value; index holds row indices.
func (m *Model) AddCols(cost, lower, upper []float64, start, index []int, value []float64) error {
	const op = "AddCols"
	num := len(cost)
	if len(lower) != num || len(upper) != num {
		return newError(op, ErrModel, fmt.Sprintf("inconsistent column data for %d columns", num))
	}
	for k := 0; k < num; k++ {
		if msg := checkBounds(lower[k], upper[k]); msg != "" {
			return newError(op, ErrModel, fmt.Sprintf("new column %d: %s", k, msg))
		}
		if math.IsNaN(cost[k]) || math.IsInf(cost[k], 0) {
			return newError(op, ErrModel, fmt.Sprintf("new column %d: cost is %v", k, cost[k]))
		}
	}
	if err := checkEntries(op, "column", "row", num, m.NumRow, start, index, value); err != nil {
		return err
	}

	if len(m.AStart) == 0 {
		m.AStart = []int{0}
	}
	for k := 0; k < num; k++ {
		from, to := columnRange(start, k, len(index))
		for p := from; p < to; p++ {
			if value[p] == 0 {
				continue
			}
			m.AIndex = append(m.AIndex, index[p])
			m.AValue = append(m.AValue, value[p])
		}
		m.AStart = append(m.AStart, len(m.AIndex))
	}

	m.ColCost = append(m.ColCost, cost...)
	m.ColLower = append(m.ColLower, lower...)
	m.ColUpper = append(m.ColUpper, upper...)
	if m.ColNames != nil {
		m.ColNames = append(m.ColNames, make([]string, num)...)
	}
	m.NumCol += num

	return nil
}

// checkEntries validates the packed entries of num new vectors against a
// dimension of dim before anything is changed. start may be empty only
// when there are no entries.
func checkEntries(op, vector, entry string, num, dim int, start, index []int, value []float64) error {
	if len(index) != len(value) {
		return newError(op, ErrModel, fmt.Sprintf("%d indices for %d values", len(index), len(value)))
	}
	if len(start) == 0 && len(index) == 0 {
		return nil
	}
	if len(start) != num {
		return newError(op, ErrModel, fmt.Sprintf("%d starts for %d %ss", len(start), num, vector))
	}
	if num > 0 && start[0] != 0 {
		return newError(op, ErrModel, fmt.Sprintf("start[0] is %d, want 0", start[0]))
	}
	for k := 1; k < num; k++ {
		if start[k] < start[k-1] {
			return newError(op, ErrModel, fmt.Sprintf("start decreases at new %s %d", vector, k))
		}
	}
	if num > 0 && start[num-1] > len(index) {
		return newError(op, ErrModel, fmt.Sprintf("start %d beyond %d entries", start[num-1], len(index)))
	}
	if num == 0 && len(index) > 0 {
		return newError(op, ErrModel, fmt.Sprintf("%d entries for no %ss", len(index), vector))
	}

	seen := make(map[int]int, len(index))
	for k := 0; k < num; k++ {
		from, to := columnRange(start, k, len(index))
		for p := from; p < to; p++ {
			i := index[p]
			if i < 0 || i >= dim {
				return newError(op, ErrIndexOutOfRange, fmt.Sprintf("%s index %d with %d %ss", entry, i, dim, entry))
			}
			if last, ok := seen[i]; ok && last == k {
				return newError(op, ErrModel, fmt.Sprintf("new %s %d: duplicate %s index %d", vector, k, entry, i))
			}
			seen[i] = k
			if math.IsNaN(value[p]) || math.IsInf(value[p], 0) {
				return newError(op, ErrModel, fmt.Sprintf("new %s %d: entry for %s %d is %v", vector, k, entry, i, value[p]))
			}
		}
	}
	return nil
}

func columnRange(start []int, k, nnz int) (int, int) {
	if len(start) == 0 {
		return 0, 0
	}
	to := nnz
	if k+1 < len(start) {
		to = start[k+1]
	}
	return start[k], to
}

// DeleteCols removes the given columns and returns, for every column of the
// model before deletion, its new index or -1.
func (m *Model) DeleteCols(cols []int) ([]int, error) {
	drop := make([]bool, m.NumCol)
	for _, j := range cols {
		if j < 0 || j >= m.NumCol {
			return nil, newError("DeleteCols", ErrIndexOutOfRange, fmt.Sprintf("column %d with %d columns", j, m.NumCol))
		}
		drop[j] = true
	}

	newIndex := make([]int, m.NumCol)
	aStart := []int{0}
	var aIndex []int
	var aValue []float64
	next := 0
	for j := 0; j < m.NumCol; j++ {
		if drop[j] {
			newIndex[j] = -1
			continue
		}
		newIndex[j] = next
		m.ColCost[next] = m.ColCost[j]
		m.ColLower[next] = m.ColLower[j]
		m.ColUpper[next] = m.ColUpper[j]
		if m.ColNames != nil {
			m.ColNames[next] = m.ColNames[j]
		}
		rows, vals := m.Column(j)
		aIndex = append(aIndex, rows...)
		aValue = append(aValue, vals...)
		aStart = append(aStart, len(aIndex))
		next++
	}

	m.ColCost = m.ColCost[:next]
	m.ColLower = m.ColLower[:next]
	m.ColUpper = m.ColUpper[:next]
	if m.ColNames != nil {
		m.ColNames = m.ColNames[:next]
	}
	m.AStart, m.AIndex, m.AValue = aStart, aIndex, aValue
	m.NumCol = next

	return newIndex, nil
}

/* Row edits */

// AddRows appends len(lower) rows given row-wise: start holds, for each new
// row, the offset of its first entry in index/value; index holds column
// indices.
func (m *Model) AddRows(lower, upper []float64, start, index []int, value []float64) error {
	const op = "AddRows"
	num := len(lower)
	if len(upper) != num {
		return newError(op, ErrModel, fmt.Sprintf("inconsistent row data for %d rows", num))
	}
	for k := 0; k < num; k++ {
		if msg := checkBounds(lower[k], upper[k]); msg != "" {
			return newError(op, ErrModel, fmt.Sprintf("new row %d: %s", k, msg))
		}
	}
	if err := checkEntries(op, "row", "column", num, m.NumCol, start, index, value); err != nil {
		return err
	}

	// collect the new entries per column, then merge column by column
	extra := make([][]Nonzero, m.NumCol)
	for k := 0; k < num; k++ {
		from, to := columnRange(start, k, len(index))
		for p := from; p < to; p++ {
			if value[p] == 0 {
				continue
			}
			j := index[p]
			extra[j] = append(extra[j], Nonzero{Row: m.NumRow + k, Col: j, Val: value[p]})
		}
	}

	if len(index) > 0 {
		aStart := make([]int, m.NumCol+1)
		aIndex := make([]int, 0, len(m.AIndex)+len(index))
		aValue := make([]float64, 0, len(m.AValue)+len(index))
		for j := 0; j < m.NumCol; j++ {
			rows, vals := m.Column(j)
			aIndex = append(aIndex, rows...)
			aValue = append(aValue, vals...)
			for _, nz := range extra[j] {
				aIndex = append(aIndex, nz.Row)
				aValue = append(aValue, nz.Val)
			}
			aStart[j+1] = len(aIndex)
		}
		m.AStart, m.AIndex, m.AValue = aStart, aIndex, aValue
	}

	m.RowLower = append(m.RowLower, lower...)
	m.RowUpper = append(m.RowUpper, upper...)
	if m.RowNames != nil {
		m.RowNames = append(m.RowNames, make([]string, num)...)
	}
	m.NumRow += num

	return nil
}

// DeleteRows removes the given rows and returns, for every row of the model
// before deletion, its new index or -1.
func (m *Model) DeleteRows(rows []int) ([]int, error) {
	newIndex := make([]int, m.NumRow)
	for _, i := range rows {
		if i < 0 || i >= m.NumRow {
			return nil, newError("DeleteRows", ErrIndexOutOfRange, fmt.Sprintf("row %d with %d rows", i, m.NumRow))
		}
		newIndex[i] = -1
	}

	next := 0
	for i := 0; i < m.NumRow; i++ {
		if newIndex[i] < 0 {
			continue
		}
		newIndex[i] = next
		m.RowLower[next] = m.RowLower[i]
		m.RowUpper[next] = m.RowUpper[i]
		if m.RowNames != nil {
			m.RowNames[next] = m.RowNames[i]
		}
		next++
	}

	put := 0
	for j := 0; j < m.NumCol; j++ {
		from, to := m.AStart[j], m.AStart[j+1]
		m.AStart[j] = put
		for k := from; k < to; k++ {
			if r := newIndex[m.AIndex[k]]; r >= 0 {
				m.AIndex[put] = r
				m.AValue[put] = m.AValue[k]
				put++
			}
		}
	}
	m.AStart[m.NumCol] = put
	m.AIndex = m.AIndex[:put]
	m.AValue = m.AValue[:put]

	m.RowLower = m.RowLower[:next]
	m.RowUpper = m.RowUpper[:next]
	if m.RowNames != nil {
		m.RowNames = m.RowNames[:next]
	}
	m.NumRow = next

	return newIndex, nil
}

/* Data edits */

func (m *Model) ChangeColCost(j int, cost float64) error {
	if j < 0 || j >= m.NumCol {
		return newError("ChangeColCost", ErrIndexOutOfRange, fmt.Sprintf("column %d with %d columns", j, m.NumCol))
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return newError("ChangeColCost", ErrModel, fmt.Sprintf("cost %v", cost))
	}
	m.ColCost[j] = cost
	return nil
}

func (m *Model) ChangeColBounds(j int, lower, upper float64) error {
	if j < 0 || j >= m.NumCol {
		return newError("ChangeColBounds", ErrIndexOutOfRange, fmt.Sprintf("column %d with %d columns", j, m.NumCol))
	}
	if msg := checkBounds(lower, upper); msg != "" {
		return newError("ChangeColBounds", ErrModel, msg)
	}
	m.ColLower[j], m.ColUpper[j] = lower, upper
	return nil
}

func (m *Model) ChangeRowBounds(i int, lower, upper float64) error {
	if i < 0 || i >= m.NumRow {
		return newError("ChangeRowBounds", ErrIndexOutOfRange, fmt.Sprintf("row %d with %d rows", i, m.NumRow))
	}
	if msg := checkBounds(lower, upper); msg != "" {
		return newError("ChangeRowBounds", ErrModel, msg)
	}
	m.RowLower[i], m.RowUpper[i] = lower, upper
	return nil
}

// Coefficient returns the matrix entry at (row, col), zero if not stored.
func (m *Model) Coefficient(row, col int) (float64, error) {
	if row < 0 || row >= m.NumRow || col < 0 || col >= m.NumCol {
		return 0, newError("Coefficient", ErrIndexOutOfRange, fmt.Sprintf("(%d, %d) in %dx%d matrix", row, col, m.NumRow, m.NumCol))
	}
	rows, vals := m.Column(col)
	if k := slices.Index(rows, row); k >= 0 {
		return vals[k], nil
	}
	return 0, nil
}

// ChangeCoeff sets the matrix entry at (row, col). A zero value removes the
// entry.
func (m *Model) ChangeCoeff(row, col int, value float64) error {
	const op = "ChangeCoeff"
	if row < 0 || row >= m.NumRow || col < 0 || col >= m.NumCol {
		return newError(op, ErrIndexOutOfRange, fmt.Sprintf("(%d, %d) in %dx%d matrix", row, col, m.NumRow, m.NumCol))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return newError(op, ErrModel, fmt.Sprintf("coefficient %v", value))
	}

	from, to := m.AStart[col], m.AStart[col+1]
	k := slices.Index(m.AIndex[from:to], row)
	switch {
	case k >= 0 && value != 0:
		m.AValue[from+k] = value
	case k >= 0:
		m.AIndex = slices.Delete(m.AIndex, from+k, from+k+1)
		m.AValue = slices.Delete(m.AValue, from+k, from+k+1)
		for j := col + 1; j <= m.NumCol; j++ {
			m.AStart[j]--
		}
	case value != 0:
		m.AIndex = slices.Insert(m.AIndex, to, row)
		m.AValue = slices.Insert(m.AValue, to, value)
		for j := col + 1; j <= m.NumCol; j++ {
			m.AStart[j]++
		}
	}
	return nil
}

/* Basis maintenance under edits */

// Remap carries the basis over a column and row renumbering as produced by
// DeleteCols/DeleteRows (nil means identity), dropping removed entries.
func (b *Basis) Remap(colIndex, rowIndex []int) {
	b.ColStatus = remapStatus(b.ColStatus, colIndex)
	b.RowStatus = remapStatus(b.RowStatus, rowIndex)
}

func remapStatus(s []BasisStatus, newIndex []int) []BasisStatus {
	if newIndex == nil || len(s) != len(newIndex) {
		return s
	}
	out := s[:0:0]
	for k, to := range newIndex {
		if to >= 0 {
			out = append(out, s[k])
		}
	}
	return out
}

// Repair sizes the basis for m, gives new columns a nonbasic tag and new
// rows a basic one, corrects nonbasic tags that no longer match their
// bounds and keeps the basis valid only if it is still consistent.
func (b *Basis) Repair(m *Model) {
	if !b.Valid {
		b.Invalidate(m.NumCol, m.NumRow)
		return
	}
	for j := len(b.ColStatus); j < m.NumCol; j++ {
		b.ColStatus = append(b.ColStatus, NonbasicStatus(m.ColLower[j], m.ColUpper[j], 0))
	}
	for i := len(b.RowStatus); i < m.NumRow; i++ {
		b.RowStatus = append(b.RowStatus, BasisStatusBasic)
	}
	b.ColStatus = b.ColStatus[:m.NumCol]
	b.RowStatus = b.RowStatus[:m.NumRow]

	for j, s := range b.ColStatus {
		b.ColStatus[j] = repairStatus(s, m.ColLower[j], m.ColUpper[j])
	}
	for i, s := range b.RowStatus {
		b.RowStatus[i] = repairStatus(s, m.RowLower[i], m.RowUpper[i])
	}

	if !b.Consistent(m) {
		b.Valid = false
	}
}

func repairStatus(s BasisStatus, lower, upper float64) BasisStatus {
	switch s {
	case BasisStatusBasic:
		return s
	case BasisStatusLower:
		if lower > NegInf() {
			if lower == upper {
				return BasisStatusNonbasic
			}
			return s
		}
	case BasisStatusUpper:
		if upper < Inf() {
			if lower == upper {
				return BasisStatusNonbasic
			}
			return s
		}
	case BasisStatusZero:
		if lower == NegInf() && upper == Inf() {
			return s
		}
	case BasisStatusNonbasic:
		if lower == upper {
			return s
		}
	}
	return NonbasicStatus(lower, upper, 0)
}
