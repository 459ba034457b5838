package relax

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Structure selectors.
const (
	ModeCliqueTable = "cliquetable"
	ModeRows        = "rows"
)

// Lagrangian masters.
const (
	MasterBundle      = "bundle"
	MasterSubgradient = "subgradient"
)

// Orderings by name.
const (
	OrderMinInState     = "min_in_state"
	OrderRandMinInState = "rand_min_in_state"
	OrderMinDegree      = "min_degree"
	OrderCuthillMcKee   = "cuthill_mckee"
	OrderIndex          = "index"
)

// Config controls a bound computation. The zero value is not useful;
// start from DefaultConfig.
type Config struct {
	Mode string `mapstructure:"mode"`

	Width             int     `mapstructure:"width"`
	Ordering          string  `mapstructure:"ordering"`
	OrderingProb      float64 `mapstructure:"ordering_prob"`
	OrderingSeed      int64   `mapstructure:"ordering_seed"`
	LongArcs          bool    `mapstructure:"long_arcs"`
	DomainConsistency bool    `mapstructure:"domain_consistency"`
	Transitive        bool    `mapstructure:"transitive"`
	// Propagate propagates rows outside the clique table during
	// construction.
	Propagate     bool          `mapstructure:"propagate"`
	Filter        bool          `mapstructure:"filter"`
	PrimalPruning bool          `mapstructure:"primal_pruning"`
	DualPruning   bool          `mapstructure:"dual_pruning"`
	DDTimeLimit   time.Duration `mapstructure:"dd_time_limit"`

	Master          string        `mapstructure:"master"`
	LagTimeLimit    time.Duration `mapstructure:"lag_time_limit"`
	LagIterLimit    int           `mapstructure:"lag_iter_limit"`
	ConvergenceTol  float64       `mapstructure:"convergence_tol"`
	AddAllRows      bool          `mapstructure:"add_all_rows"`
	RemoveRedundant bool          `mapstructure:"remove_redundant"`

	GeneratePrimal    bool `mapstructure:"generate_primal"`
	GeneratePrimalNRP bool `mapstructure:"generate_primal_nrp"`

	// The bound runs only when the number of free variables is at most
	// MaxFree (MaxFreeFraction of all variables when MaxFree < 0) and at
	// least MinFree.
	MaxFreeFraction float64 `mapstructure:"max_free_fraction"`
	MaxFree         int     `mapstructure:"max_free"`
	MinFree         int     `mapstructure:"min_free"`
}

// DefaultConfig returns an exact clique-table diagram with a ten second
// bundle relaxation.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeCliqueTable,
		Width:             -1,
		Ordering:          OrderMinInState,
		OrderingProb:      0.8,
		LongArcs:          true,
		DomainConsistency: true,
		Propagate:         false,
		Master:            MasterBundle,
		LagTimeLimit:      10 * time.Second,
		LagIterLimit:      -1,
		ConvergenceTol:    1e-4,
		MaxFreeFraction:   1,
		MaxFree:           -1,
		MinFree:           -1,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var err error
	switch c.Mode {
	case ModeCliqueTable:
		switch c.Ordering {
		case OrderMinInState, OrderRandMinInState, OrderMinDegree, OrderIndex:
		default:
			err = multierr.Append(err, fmt.Errorf("relax: ordering %q not available for %s", c.Ordering, c.Mode))
		}
	case ModeRows:
		switch c.Ordering {
		case OrderCuthillMcKee, OrderIndex:
		default:
			err = multierr.Append(err, fmt.Errorf("relax: ordering %q not available for %s", c.Ordering, c.Mode))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("relax: unknown mode %q", c.Mode))
	}
	if c.Width == 0 || c.Width < -1 {
		err = multierr.Append(err, fmt.Errorf("relax: invalid width %d", c.Width))
	}
	if c.Ordering == OrderRandMinInState && (c.OrderingProb < 0 || c.OrderingProb > 1) {
		err = multierr.Append(err, fmt.Errorf("relax: ordering probability %v outside [0,1]", c.OrderingProb))
	}
	if c.Master != MasterBundle && c.Master != MasterSubgradient {
		err = multierr.Append(err, fmt.Errorf("relax: unknown master %q", c.Master))
	}
	if c.ConvergenceTol < 0 {
		err = multierr.Append(err, fmt.Errorf("relax: negative convergence tolerance %v", c.ConvergenceTol))
	}
	if c.MaxFreeFraction < 0 {
		err = multierr.Append(err, fmt.Errorf("relax: negative free fraction %v", c.MaxFreeFraction))
	}
	return err
}

// freeThreshold returns the largest number of free variables for which
// the bound runs.
func (c Config) freeThreshold(n int) int {
	if c.MaxFree >= 0 {
		return c.MaxFree
	}
	return int(c.MaxFreeFraction*float64(n) + 1e-6)
}
