package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ambled/genealogy-neo4j-import/backend/pkg/config"
	"github.com/ambled/genealogy-neo4j-import/backend/pkg/logger"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "gedimport",
		Short: "Import GEDCOM family trees into a property graph",
		Long: `gedimport reads a GEDCOM file and writes its families, people, events,
places and sources into a graph store.

People and sources are matched by their GEDCOM id and reused across imports.
Families and events are always created fresh. Each import runs in a single
transaction: it is either committed whole or leaves the store untouched.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if err := logger.Init(c.Env, c.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			cfg = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./gedimport.yaml)")
	flags.String("env", "", "environment (development, production)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	// Store flags
	flags.String("store", "", "graph store driver (neo4j, badger)")
	flags.String("neo4j-uri", "", "Neo4j bolt URI")
	flags.String("neo4j-user", "", "Neo4j user")
	flags.String("neo4j-password", "", "Neo4j password")
	flags.String("neo4j-database", "", "Neo4j database name")
	flags.String("badger-path", "", "directory of the embedded Badger store")
	flags.Int("badger-memtable-mb", 0, "Badger memtable size in MB, bounds the size of one import (default 256)")

	v.BindPFlag("env", flags.Lookup("env"))
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("store.driver", flags.Lookup("store"))
	v.BindPFlag("neo4j.uri", flags.Lookup("neo4j-uri"))
	v.BindPFlag("neo4j.user", flags.Lookup("neo4j-user"))
	v.BindPFlag("neo4j.password", flags.Lookup("neo4j-password"))
	v.BindPFlag("neo4j.database", flags.Lookup("neo4j-database"))
	v.BindPFlag("badger.path", flags.Lookup("badger-path"))
	v.BindPFlag("badger.memtable_mb", flags.Lookup("badger-memtable-mb"))
}
