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
	"errors"
	"fmt"
)

var (
	ErrLoad                       = errors.New("no model available")
	ErrModel                      = errors.New("invalid model")
	ErrPresolve                   = errors.New("presolve failed")
	ErrSolve                      = errors.New("solve failed")
	ErrPostsolve                  = errors.New("postsolve failed")
	ErrIndexOutOfRange            = errors.New("index out of range")
	ErrNoInvertibleRepresentation = errors.New("no invertible representation of the basis matrix")
	ErrInvalidBasis               = errors.New("invalid basis")
	ErrInvalidSolution            = errors.New("invalid solution")
)

// Error is returned by operations of this module. It unwraps to one of the
// package's sentinel errors.
type Error struct {
	Op     string
	Status Status
	Err    error
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error-class *Error for op.
func NewError(op string, kind error, msg string) *Error {
	return &Error{Op: op, Status: StatusError, Err: kind, Msg: msg}
}

func newError(op string, kind error, msg string) error {
	return NewError(op, kind, msg)
}
