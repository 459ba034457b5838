// Package instfile reads subproblem instances from YAML. JSON files are
// accepted as well since JSON is a YAML subset.
//
//	name: packing
//	vars: 5
//	objective: [3, 2, 4, 1, 5]
//	rows:
//	  - {vars: [0, 1], coeffs: [1, 1], sense: "<=", rhs: 1}
//	cliques: [[1, 7]]      # literal v+vars negates v
//	fixed: {4: 0}
//	minimize: false
package instfile

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/relax"
)

type Row struct {
	Name   string    `yaml:"name,omitempty"`
	Vars   []int     `yaml:"vars"`
	Coeffs []float64 `yaml:"coeffs"`
	Sense  string    `yaml:"sense"`
	Rhs    float64   `yaml:"rhs"`
}

// File is one instance. With Minimize set the objective and both bounds
// are given in the minimization sense and negated on conversion.
type File struct {
	Name        string      `yaml:"name,omitempty"`
	Vars        int         `yaml:"vars"`
	Minimize    bool        `yaml:"minimize,omitempty"`
	Objective   []float64   `yaml:"objective"`
	Rows        []Row       `yaml:"rows,omitempty"`
	Cliques     [][]int     `yaml:"cliques,omitempty"`
	Fixed       map[int]int `yaml:"fixed,omitempty"`
	PrimalBound *float64    `yaml:"primal_bound,omitempty"`
	DualCutoff  *float64    `yaml:"dual_cutoff,omitempty"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading instance %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "instance %s", path)
	}
	if f.Name == "" {
		f.Name = path
	}
	return f, nil
}

// Parse decodes an instance. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding")
	}
	return &f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Subproblem converts f into the maximization form of relax.
func (f *File) Subproblem() (*relax.Subproblem, error) {
	var err error
	if f.Vars <= 0 {
		return nil, errors.Errorf("invalid number of variables %d", f.Vars)
	}
	if len(f.Objective) != f.Vars {
		err = multierr.Append(err, errors.Errorf("objective has %d coefficients for %d variables", len(f.Objective), f.Vars))
	}
	rows := make([]*linear.Row, 0, len(f.Rows))
	for i, r := range f.Rows {
		sense, serr := linear.ParseSense(r.Sense)
		if serr != nil {
			err = multierr.Append(err, errors.Wrapf(serr, "row %d", i))
			continue
		}
		if len(r.Vars) != len(r.Coeffs) {
			err = multierr.Append(err, errors.Errorf("row %d has %d variables and %d coefficients", i, len(r.Vars), len(r.Coeffs)))
			continue
		}
		row := linear.NewRow(r.Rhs, sense, r.Coeffs, r.Vars)
		row.Name = r.Name
		if row.Name == "" {
			row.Name = fmt.Sprintf("r%d", i)
		}
		rows = append(rows, row)
	}
	if err != nil {
		return nil, err
	}

	obj := append([]float64(nil), f.Objective...)
	sign := 1.0
	if f.Minimize {
		sign = -1
		for i := range obj {
			obj[i] = -obj[i]
		}
	}
	sub := relax.NewSubproblem(f.Vars, rows, obj)
	sub.Cliques = f.Cliques
	if len(f.Fixed) > 0 {
		sub.Fixed = make([]int, f.Vars)
		for v := range sub.Fixed {
			sub.Fixed[v] = linear.Unfixed
		}
		for _, v := range f.fixedVars() {
			if v < 0 || v >= f.Vars {
				err = multierr.Append(err, errors.Errorf("fixing of variable %d outside [0,%d)", v, f.Vars))
				continue
			}
			sub.Fixed[v] = f.Fixed[v]
		}
	}
	if f.PrimalBound != nil {
		sub.PrimalBound = sign * *f.PrimalBound
	}
	if f.DualCutoff != nil {
		sub.DualCutoff = sign * *f.DualCutoff
	}
	if err = multierr.Append(err, sub.Validate()); err != nil {
		return nil, err
	}
	return sub, nil
}

// HostValue converts a maximization value of the subproblem back to the
// sense of f.
func (f *File) HostValue(v float64) float64 {
	if f.Minimize && !math.IsNaN(v) {
		return -v
	}
	return v
}

func (f *File) fixedVars() []int {
	vars := make([]int, 0, len(f.Fixed))
	for v := range f.Fixed {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return vars
}
