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

package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/modelio"
)

const delta = 0.0000001

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeModel(t *testing.T) string {
	t.Helper()

	m := lp.NewModel(2, 0)
	m.Name = "cover"
	m.ColNames = []string{"x", "y"}
	m.ColCost[0], m.ColCost[1] = 1, 2
	require.NoError(t, m.AddDenseRow(1, []float64{1, 1}, math.Inf(1)))
	m.RowNames = []string{"demand"}

	path := filepath.Join(t.TempDir(), "cover.yaml")
	require.NoError(t, modelio.WriteFile(path, m))
	return path
}

func TestSolve(t *testing.T) {
	path := writeModel(t)

	out, err := execute(t, "solve", "--basis", path)
	require.NoError(t, err)

	var r result
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.Equal(t, "OK", r.Status)
	assert.Equal(t, "Optimal", r.ModelStatus)
	require.NotNil(t, r.Objective)
	assert.InDelta(t, 1, *r.Objective, delta)

	require.Len(t, r.Columns, 2)
	assert.Equal(t, "x", r.Columns[0].Name)
	assert.InDelta(t, 1, r.Columns[0].Value, delta)
	assert.Equal(t, lp.BasisStatusBasic.String(), r.Columns[0].Status)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "demand", r.Rows[0].Name)
	assert.InDelta(t, 1, r.Rows[0].Dual, delta)
}

func TestSolveFromOptions(t *testing.T) {
	path := writeModel(t)
	opts := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(opts, []byte("presolve: off\nmodel_file: "+path+"\n"), 0o600))

	out, err := execute(t, "solve", "--options", opts)
	require.NoError(t, err)

	var r result
	require.NoError(t, yaml.Unmarshal([]byte(out), &r))
	assert.Equal(t, "Optimal", r.ModelStatus)
	assert.Empty(t, r.Columns[0].Status)
}

func TestSolveErrors(t *testing.T) {
	_, err := execute(t, "solve", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, lp.ErrLoad)

	_, err = execute(t, "solve")
	assert.ErrorIs(t, err, lp.ErrLoad)

	_, err = execute(t, "solve", "--telemetry", "carrier-pigeon", writeModel(t))
	assert.ErrorIs(t, err, errUnknownExporter)
}

func TestValidate(t *testing.T) {
	path := writeModel(t)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 rows, 2 columns, 2 nonzeros")

	_, err = execute(t, "validate")
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	out, err := execute(t, "options")
	require.NoError(t, err)
	assert.Contains(t, out, "presolve: choose")
	assert.Contains(t, out, "solver: choose")
}
