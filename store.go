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

	"github.com/costela/lpcore/lp"
)

// WorkingCopyID addresses one of the working copies of the store.
type WorkingCopyID int

const (
	OriginalCopy WorkingCopyID = iota
	ReducedCopy
)

func (id WorkingCopyID) String() string {
	switch id {
	case OriginalCopy:
		return "original"
	case ReducedCopy:
		return "reduced"
	}
	return fmt.Sprintf("WorkingCopyID(%d)", int(id))
}

// store holds the working copies of a solver: the original copy whenever a
// model is loaded, plus the reduced copy while a presolved LP is solved.
type store struct {
	original *lp.WorkingCopy
	reduced  *lp.WorkingCopy
}

// reset discards every working copy and wraps m in a fresh original copy.
func (st *store) reset(m *lp.Model) {
	st.original = lp.NewWorkingCopy(m)
	st.reduced = nil
}

func (st *store) clear() {
	st.original = nil
	st.reduced = nil
}

// get panics if the addressed copy does not exist.
func (st *store) get(id WorkingCopyID) *lp.WorkingCopy {
	var wc *lp.WorkingCopy
	switch id {
	case OriginalCopy:
		wc = st.original
	case ReducedCopy:
		wc = st.reduced
	}
	if wc == nil {
		panic(fmt.Sprintf("lpcore: no %s working copy", id))
	}
	return wc
}

// pushReduced adds the working copy of a reduced model. A store holds at
// most one.
func (st *store) pushReduced(m *lp.Model) WorkingCopyID {
	if st.original == nil {
		panic("lpcore: reduced working copy without an original one")
	}
	if st.reduced != nil {
		panic("lpcore: reduced working copy already present")
	}
	st.reduced = lp.NewWorkingCopy(m)
	return ReducedCopy
}

func (st *store) dropReduced() {
	st.reduced = nil
}
