// Command walsendd is a demonstration daemon around the walstream
// package: it accepts replication connections on a Unix socket and
// serves one Sender per connection, plus a slotstat subcommand that
// only prints a notice: the slot table lives inside the serving
// process, so this binary has no table to report on.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/coresync/walstream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	socketPath string
	walDir     string
	maxSenders int
	logLevel   string
	logBackend string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "walsendd",
		Short:   "WAL streaming sender daemon",
		Version: "dev",
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./walsendd.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/tmp/walsendd.sock", "unix socket to accept replication connections on")
	rootCmd.PersistentFlags().StringVar(&walDir, "wal-dir", "./pg_wal", "WAL segment directory")
	rootCmd.PersistentFlags().IntVar(&maxSenders, "max-senders", 10, "maximum concurrent senders")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error|none")
	rootCmd.PersistentFlags().StringVar(&logBackend, "log-backend", "std", "std|zap")

	rootCmd.AddCommand(newServeCmd(), newSlotstatCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() walstream.SenderConfig {
	v := viper.New()
	v.SetConfigName("walsendd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	_ = v.ReadInConfig() // absent config file just falls back to defaults + flags

	cfg := walstream.DefaultSenderConfig()
	cfg.Storage.Dir = walDir
	cfg.Concurrency.MaxSenders = maxSenders
	cfg.Log.Level = logLevel
	cfg.Log.Backend = logBackend

	if v.IsSet("max_send_size") {
		cfg.MaxSendSize = uint32(v.GetInt("max_send_size"))
	}
	if v.IsSet("compression.enabled") {
		cfg.Compression.Enabled = v.GetBool("compression.enabled")
	}
	return cfg
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "accept replication connections and stream WAL to each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	table, err := walstream.NewSlotTable(cfg.Concurrency.MaxSenders)
	if err != nil {
		return fmt.Errorf("init slot table: %w", err)
	}
	defer table.Close()

	flush := walstream.NewInMemoryFlushState()
	identity := walstream.Identity{ID: 1, TL: 1}
	sup := walstream.AlwaysAlive{}

	sig := walstream.NewSignalState(table.WakeAll)
	sig.Start()
	defer sig.Stop()

	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer ln.Close()

	fmt.Printf("walsendd listening on %s (wal-dir=%s, max-senders=%d)\n", socketPath, cfg.Storage.Dir, cfg.Concurrency.MaxSenders)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			code := walstream.ServeConnection(cfg, identity, table, flush, conn, sig, sup, nil, false)
			fmt.Printf("sender exited with code %d\n", code)
		}()
	}
}

func newSlotstatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slotstat",
		Short: "print the current slot table (demo mode only holds state in-process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("slotstat must be run against a live walsendd process; this demo binary keeps its slot table in-process only.")
			return nil
		},
	}
}
