// Command ddbound computes relaxed decision diagram bounds for binary
// programs stored in YAML instance files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitrdm/ddbound/internal/config"
	"github.com/gitrdm/ddbound/internal/logging"
)

var version = "v0.1.0"

const (
	outputText = "text"
	outputYAML = "yaml"
)

type app struct {
	settings   config.Settings
	configPath string
	output     string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ddbound",
		Short:         "Relaxed decision diagram bounds for binary programs",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	fs := root.PersistentFlags()
	fs.StringVar(&a.configPath, "config", "", "YAML settings file")
	fs.StringVarP(&a.output, "output", "o", outputText, "output format: text or yaml")
	config.AddFlags(fs)

	root.AddCommand(newBoundCmd(a), newBatchCmd(a), newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != outputText && a.output != outputYAML {
		return fmt.Errorf("unknown output format %q", a.output)
	}
	v, err := config.New(cmd.Flags(), a.configPath)
	if err != nil {
		return err
	}
	if a.settings, err = config.Load(v); err != nil {
		return err
	}
	ctx, err := logging.Init(cmd.Context(), a.settings.LoggingOptions()...)
	if err != nil {
		return err
	}
	cmd.SetContext(ctx)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ddbound:", err)
		stop()
		os.Exit(1)
	}
}
