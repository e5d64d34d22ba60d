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

package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time { return f.t }

func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestClock(t *testing.T) {
	ft := &fakeTime{t: time.Unix(0, 0)}
	c := NewWithSource(ft.now)

	assert.True(t, c.StartRun())
	assert.False(t, c.StartRun(), "nested start must be refused")

	c.Start(Presolve)
	ft.advance(2 * time.Second)
	assert.Equal(t, 2*time.Second, c.Stop(Presolve))

	c.Start(Solve)
	ft.advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Read(Solve), "running clocks report the open interval")
	c.Stop(Solve)

	c.Start(Solve)
	ft.advance(time.Second)
	c.Stop(Solve)

	assert.Equal(t, 4*time.Second, c.Read(Solve))
	assert.Equal(t, time.Duration(0), c.Read(Postsolve))
	assert.Equal(t, 6*time.Second, c.RunTime())

	c.StopRun()
	ft.advance(time.Hour)
	assert.Equal(t, 6*time.Second, c.RunTime())
	assert.False(t, c.RunRunning())

	assert.True(t, c.Exceeded(5*time.Second))
	assert.False(t, c.Exceeded(0))

	c.Reset()
	assert.Equal(t, time.Duration(0), c.RunTime())
	assert.Equal(t, time.Duration(0), c.Read(Solve))
}

func TestClockDoubleStart(t *testing.T) {
	c := New()
	c.Start(Solve)

	assert.Panics(t, func() { c.Start(Solve) })
	assert.Panics(t, func() { c.Stop(Postsolve) })
}
