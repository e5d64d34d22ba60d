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

package simplex

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// below this many variables pricing runs on the calling goroutine
const parallelThreshold = 1024

// price computes the reduced costs of the nonbasic variables for the dual
// values y, splitting the variables over at most MaxThreads workers.
func (st *state) price(ctx context.Context, y []float64, phase1 bool) ([]float64, error) {
	total := st.n + st.m
	d := make([]float64, total)

	compute := func(from, to int) {
		for j := from; j < to; j++ {
			if st.where[j] >= 0 {
				continue
			}
			c := 0.0
			if !phase1 {
				c = st.cost[j]
			}
			d[j] = c - st.dot(j, y)
		}
	}

	workers := st.opts.MaxThreads
	if workers <= 1 || total < parallelThreshold {
		compute(0, total)
		return d, nil
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (total + workers - 1) / workers
	for from := 0; from < total; from += chunk {
		to := min(from+chunk, total)
		g.Go(func() error {
			compute(from, to)
			return nil
		})
	}

	return d, g.Wait()
}
