// Package cmd is the cobra-based CLI surface for kvsfsd: thin flag/config
// glue over package server, following the teacher's cmd/root.go shape
// (PersistentFlags bound through cfg.BindFlags, a config file merged in via
// viper, Execute as the single os.Exit boundary) adapted to kvsfs's own
// Config and server.Open/Close lifecycle instead of gcsfuse's mount flow.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kvsfs/kvsfs/cfg"
)

var (
	cfgFile string
	v       = viper.New()

	// Config is populated by initConfig once flags and any config file have
	// been merged; subcommands read it in their RunE.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "kvsfsd",
	Short: "kvsfsd serves namespaces backed by a KV-tree metadata store and a pluggable data store",
	Long: `kvsfsd is the reference server for the KVSFS design: POSIX filesystem
semantics (package cfs) layered on a KV-tree metadata store (package nsal)
and a pluggable object data store (package dsal), exported to an NFSv4+
host process through a rendered endpoint/export config file (package
export). This binary owns the backends and the namespace registry; it does
not itself speak the NFS wire protocol (spec §1's scope boundary).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return decodeConfig()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file; flags override its values.")
	if err := cfg.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("bind flags: %w", err))
		os.Exit(1)
	}
	rootCmd.AddCommand(serveCmd, fsCmd)
}

// decodeConfig merges any configured file into v, then decodes the result
// into Config. Run once per invocation as a PersistentPreRunE so every
// subcommand sees a populated Config without repeating this wiring.
func decodeConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %q: %w", cfgFile, err)
		}
	}
	if err := cfg.Decode(v, &Config); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return cfg.Validate(&Config)
}
