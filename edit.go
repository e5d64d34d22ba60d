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

package lpcore

import (
	"fmt"
	"log/slog"

	"github.com/costela/lpcore/lp"
)

// The edits below change the loaded model in place. A successful edit
// clears the solution, info and model status, and carries the basis over
// to the new dimensions: it stays valid only if it is still consistent.

// AddCols appends columns given column-wise, see lp.Model.AddCols.
func (s *Solver) AddCols(cost, lower, upper []float64, start, index []int, value []float64) error {
	return s.edit("AddCols", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.AddCols(cost, lower, upper, start, index, value)
	})
}

// AddRows appends rows given row-wise, see lp.Model.AddRows.
func (s *Solver) AddRows(lower, upper []float64, start, index []int, value []float64) error {
	return s.edit("AddRows", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.AddRows(lower, upper, start, index, value)
	})
}

func (s *Solver) DeleteCols(cols []int) error {
	return s.edit("DeleteCols", func(m *lp.Model) ([]int, []int, error) {
		colIndex, err := m.DeleteCols(cols)
		return colIndex, nil, err
	})
}

func (s *Solver) DeleteRows(rows []int) error {
	return s.edit("DeleteRows", func(m *lp.Model) ([]int, []int, error) {
		rowIndex, err := m.DeleteRows(rows)
		return nil, rowIndex, err
	})
}

func (s *Solver) ChangeObjectiveSense(sense lp.Sense) error {
	return s.edit("ChangeObjectiveSense", func(m *lp.Model) ([]int, []int, error) {
		if sense != lp.Minimize && sense != lp.Maximize {
			return nil, nil, lp.NewError("ChangeObjectiveSense", lp.ErrModel, fmt.Sprintf("unknown objective sense %d", sense))
		}
		m.Sense = sense
		return nil, nil, nil
	})
}

func (s *Solver) ChangeColCost(j int, cost float64) error {
	return s.edit("ChangeColCost", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.ChangeColCost(j, cost)
	})
}

func (s *Solver) ChangeColBounds(j int, lower, upper float64) error {
	return s.edit("ChangeColBounds", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.ChangeColBounds(j, lower, upper)
	})
}

func (s *Solver) ChangeRowBounds(i int, lower, upper float64) error {
	return s.edit("ChangeRowBounds", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.ChangeRowBounds(i, lower, upper)
	})
}

// ChangeCoeff sets a matrix entry; zero removes it.
func (s *Solver) ChangeCoeff(row, col int, value float64) error {
	return s.edit("ChangeCoeff", func(m *lp.Model) ([]int, []int, error) {
		return nil, nil, m.ChangeCoeff(row, col, value)
	})
}

// Coefficient reads a matrix entry of the loaded model.
func (s *Solver) Coefficient(row, col int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return 0, lp.NewError("Coefficient", lp.ErrLoad, "no model loaded")
	}
	return s.model.Coefficient(row, col)
}

// edit applies change to a copy of the model and keeps it only if it still
// validates. change returns the column and row renumbering it caused, nil
// when indices did not move.
func (s *Solver) edit(op string, change func(m *lp.Model) (colIndex, rowIndex []int, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return lp.NewError(op, lp.ErrLoad, "no model loaded")
	}
	m := s.model.Clone()
	colIndex, rowIndex, err := change(m)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	s.model = m

	s.basis.Remap(colIndex, rowIndex)
	s.basis.Repair(s.model)
	s.solution.Clear()
	s.info.Clear()
	s.setStatus(lp.ModelStatusNotSet)
	s.store.reset(s.model)
	s.logger.Debug("model edited", slog.String("op", op), modelAttrs(s.model))

	return nil
}
