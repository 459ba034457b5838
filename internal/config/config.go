// Package config loads the settings of the ddbound command from flags,
// DDBOUND_* environment variables and an optional YAML file, in that
// order of precedence.
package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/gitrdm/ddbound/internal/logging"
	"github.com/gitrdm/ddbound/pkg/relax"
)

const envPrefix = "ddbound"

// Settings holds everything the command needs. The bound configuration is
// squashed, so its keys sit at the top level.
type Settings struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// Workers bounds the number of instances solved at once by batch;
	// zero or less means one per CPU.
	Workers  int  `mapstructure:"workers"`
	SATCheck bool `mapstructure:"sat_check"`

	Relax relax.Config `mapstructure:",squash"`
}

// AddFlags registers one flag per setting. Flag names use dashes where
// keys use underscores.
func AddFlags(fs *pflag.FlagSet) {
	d := relax.DefaultConfig()
	fs.String("log-level", "info", "log level")
	fs.String("log-format", logging.LogFormatConsole, "log format: json or console")
	fs.Int("workers", 0, "instances solved concurrently by batch (0 = one per CPU)")
	fs.Bool("sat-check", false, "validate harvested solutions with a SAT solver")

	fs.String("mode", d.Mode, "diagram structure: cliquetable or rows")
	fs.Int("width", d.Width, "maximum layer width (-1 = exact)")
	fs.String("ordering", d.Ordering, "variable ordering")
	fs.Float64("ordering-prob", d.OrderingProb, "probability of the min choice in rand_min_in_state")
	fs.Int64("ordering-seed", d.OrderingSeed, "seed of rand_min_in_state")
	fs.Bool("long-arcs", d.LongArcs, "skip variables that cannot change the state")
	fs.Bool("domain-consistency", d.DomainConsistency, "reduce the root state with strongly connected components")
	fs.Bool("transitive", d.Transitive, "close clique-table masks under implied conflicts")
	fs.Bool("propagate", d.Propagate, "propagate rows outside the clique table")
	fs.Bool("filter", d.Filter, "filter the diagram by the relaxed rows")
	fs.Bool("primal-pruning", d.PrimalPruning, "prune nodes that cannot beat the primal bound")
	fs.Bool("dual-pruning", d.DualPruning, "prune nodes that cannot exceed the dual cutoff")
	fs.Duration("dd-time-limit", d.DDTimeLimit, "diagram construction time limit (0 = none)")
	fs.String("master", d.Master, "lagrangian master: bundle or subgradient")
	fs.Duration("lag-time-limit", d.LagTimeLimit, "lagrangian time limit (0 = skip, negative = none)")
	fs.Int("lag-iter-limit", d.LagIterLimit, "lagrangian oracle call limit (0 = skip, -1 = none)")
	fs.Float64("convergence-tol", d.ConvergenceTol, "relative gap at which the lagrangian stops")
	fs.Bool("add-all-rows", d.AddAllRows, "relax every row, including those in the diagram")
	fs.Bool("remove-redundant", d.RemoveRedundant, "drop relaxed rows that hold on every diagram path")
	fs.Bool("generate-primal", d.GeneratePrimal, "check oracle solutions for feasibility")
	fs.Bool("generate-primal-nrp", d.GeneratePrimalNRP, "check the best exact diagram path for feasibility")
	fs.Float64("max-free-fraction", d.MaxFreeFraction, "skip when more than this fraction of variables is free")
	fs.Int("max-free", d.MaxFree, "skip when more variables are free (-1 = use the fraction)")
	fs.Int("min-free", d.MinFree, "skip when fewer variables are free (-1 = none)")
}

// New returns a viper instance over fs, the environment and the YAML file
// at path when path is not empty. Flags must have been added with
// AddFlags.
func New(fs *pflag.FlagSet, path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		err = multierr.Append(err, v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f))
	})
	if err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	return v, nil
}

// Load decodes and validates the settings of v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return s, errors.Wrap(err, "decoding settings")
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate reports every invalid setting.
func (s Settings) Validate() error {
	err := s.Relax.Validate()
	switch s.LogFormat {
	case logging.LogFormatJSON, logging.LogFormatConsole:
	default:
		err = multierr.Append(err, errors.Errorf("unknown log format %q", s.LogFormat))
	}
	return err
}

// LoggingOptions returns the logger options of s.
func (s Settings) LoggingOptions() []logging.Option {
	return []logging.Option{logging.WithLogLevel(s.LogLevel), logging.WithLogFormat(s.LogFormat)}
}
