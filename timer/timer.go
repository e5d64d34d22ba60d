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

// Package timer provides the run clock shared by all solve phases, with
// named sub-clocks for the individual phases.
package timer

import (
	"fmt"
	"time"
)

// Clock names used by the solve pipeline.
const (
	Presolve  = "presolve"
	Solve     = "solve"
	Postsolve = "postsolve"
)

type subClock struct {
	start   time.Time
	running bool
	total   time.Duration
}

// Clock accumulates the total run time and the time spent under named
// sub-clocks. It is not safe for concurrent use.
type Clock struct {
	now    func() time.Time
	run    subClock
	clocks map[string]*subClock
}

// New returns a stopped clock reading the system's monotonic time.
func New() *Clock {
	return NewWithSource(time.Now)
}

// NewWithSource returns a stopped clock reading time from now.
func NewWithSource(now func() time.Time) *Clock {
	return &Clock{
		now:    now,
		clocks: make(map[string]*subClock),
	}
}

// StartRun starts the run clock. It returns false if the clock was already
// running, in which case the caller must not stop it.
func (c *Clock) StartRun() bool {
	if c.run.running {
		return false
	}
	c.run.start = c.now()
	c.run.running = true
	return true
}

func (c *Clock) StopRun() {
	if !c.run.running {
		return
	}
	c.run.total += c.now().Sub(c.run.start)
	c.run.running = false
}

func (c *Clock) RunRunning() bool {
	return c.run.running
}

// RunTime returns the accumulated run time, including the current interval
// if the run clock is running.
func (c *Clock) RunTime() time.Duration {
	return c.read(&c.run)
}

// Start starts the named sub-clock. Starting a running sub-clock panics.
func (c *Clock) Start(name string) {
	sc, ok := c.clocks[name]
	if !ok {
		sc = &subClock{}
		c.clocks[name] = sc
	}
	if sc.running {
		panic(fmt.Sprintf("timer: clock %q already running", name))
	}
	sc.start = c.now()
	sc.running = true
}

// Stop stops the named sub-clock and returns the length of the interval
// just ended.
func (c *Clock) Stop(name string) time.Duration {
	sc, ok := c.clocks[name]
	if !ok || !sc.running {
		panic(fmt.Sprintf("timer: clock %q not running", name))
	}
	d := c.now().Sub(sc.start)
	sc.total += d
	sc.running = false
	return d
}

// Read returns the total time accumulated by the named sub-clock.
func (c *Clock) Read(name string) time.Duration {
	sc, ok := c.clocks[name]
	if !ok {
		return 0
	}
	return c.read(sc)
}

// Reset stops and zeroes every clock.
func (c *Clock) Reset() {
	c.run = subClock{}
	c.clocks = make(map[string]*subClock)
}

// Exceeded reports whether the run time has passed limit. A non-positive
// or infinite limit never expires.
func (c *Clock) Exceeded(limit time.Duration) bool {
	return limit > 0 && c.RunTime() > limit
}

func (c *Clock) read(sc *subClock) time.Duration {
	if sc.running {
		return sc.total + c.now().Sub(sc.start)
	}
	return sc.total
}
