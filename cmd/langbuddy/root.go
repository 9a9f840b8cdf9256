package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/langbuddy/langbuddy/pkg/adapt"
	"github.com/langbuddy/langbuddy/pkg/config"
	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/dictionary"
	"github.com/langbuddy/langbuddy/pkg/extract"
	"github.com/langbuddy/langbuddy/pkg/reader"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *log.Logger

	conn  *sql.DB
	cache *dictionary.Cache
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "langbuddy",
		Short:         "langbuddy - Korean reading and vocabulary trainer",
		Long:          "Adapts web articles for Korean learners, highlights known vocabulary and tracks word mastery.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ./langbuddy.yaml)")
	pf.String("db", "langbuddy.db", "Path to SQLite database")
	pf.Bool("debug", false, "Debug mode")
	pf.String("user", "local", "User id the command acts for")

	root.AddCommand(
		newServeCmd(a),
		newImportDictCmd(a),
		newAddCmd(a),
		newReanalyzeCmd(a),
		newWordBankCmd(a),
		newQuizCmd(a),
		newTierCmd(a),
		newVersionCmd(),
	)
	return root
}

// open connects to the configured database and builds the snapshot cache.
func (a *app) open() error {
	if a.conn != nil {
		return nil
	}
	conn, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	cache, err := dictionary.NewCache(conn, a.cfg.Dictionary.CacheSize)
	if err != nil {
		conn.Close()
		return err
	}
	a.conn, a.cache = conn, cache
	return nil
}

func (a *app) close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

// service wires the reader with the configured fetcher and adapter.
func (a *app) service() *reader.Service {
	fetcher := extract.NewFetcher(a.cfg.HTTP.Timeout)
	fetcher.MaxBodyBytes = a.cfg.HTTP.MaxBodyBytes
	if a.cfg.Debug {
		fetcher.Logger = a.logger
	}

	var adapter adapt.Adapter = adapt.Passthrough{}
	if a.cfg.Adapter.URL != "" {
		adapter = &adapt.Remote{URL: a.cfg.Adapter.URL, Client: &http.Client{Timeout: a.cfg.HTTP.Timeout * 3}}
	}

	svc := reader.NewService(a.conn, a.cache, fetcher, adapter)
	svc.Logger = a.logger
	svc.DistractorWindows = a.cfg.Quiz.DistractorWindows
	svc.DistractorPageSize = a.cfg.Quiz.DistractorPageSize
	return svc
}

func userFlag(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "langbuddy %s\n", version)
		},
	}
}
