package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/starkware-libs/papyrus-go/pkg/config"
	"github.com/starkware-libs/papyrus-go/pkg/log"
	"github.com/starkware-libs/papyrus-go/pkg/metrics"
	"github.com/starkware-libs/papyrus-go/pkg/storage"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var markerKinds = []types.MarkerKind{
	types.MarkerHeader,
	types.MarkerBody,
	types.MarkerState,
	types.MarkerClass,
	types.MarkerCompiledClass,
	types.MarkerEvent,
	types.MarkerBaseLayer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "papyrus",
	Short: "Papyrus - Starknet block-structured storage engine",
	Long: `Papyrus hosts the durable, append-only, reorg-aware storage of a
Starknet full node: headers, bodies, state diffs, class definitions, and
a time-indexed state reader over them.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Papyrus version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics and health endpoints on")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(revertCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func loadConfig() (config.Config, error) {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	return config.Load(path)
}

// markerSource adapts a storage Reader to the metrics collector.
type markerSource struct {
	reader *storage.Reader
}

func (s markerSource) Markers() (map[string]uint64, error) {
	txn, err := s.reader.BeginRO()
	if err != nil {
		return nil, err
	}
	defer txn.Abort()

	out := make(map[string]uint64, len(markerKinds))
	for _, kind := range markerKinds {
		m, err := txn.Marker(kind)
		if err != nil {
			return nil, err
		}
		out[kind.String()] = uint64(m)
	}
	return out, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the storage and serve metrics and health endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		reader, _, err := storage.Open(cfg.Storage())
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()
		metrics.RegisterComponent("kv", true, "open")
		metrics.RegisterComponent("fileappend", true, "open")
		metrics.SetVersion(Version)

		collector := metrics.NewCollector(markerSource{reader: reader}, 15*time.Second)
		collector.Start()
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server failed", err)
			}
		}()
		log.Info(fmt.Sprintf("serving metrics on %s", metricsAddr))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		return srv.Close()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the per-subsystem block markers and on-disk versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.EnforceFileExists = true

		reader, _, err := storage.Open(cfg.Storage())
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		txn, err := reader.BeginRO()
		if err != nil {
			return err
		}
		defer txn.Abort()

		for _, kind := range markerKinds {
			m, err := txn.Marker(kind)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s %d\n", kind.String(), m)
		}
		if v, ok, err := txn.GetVersionState(); err != nil {
			return err
		} else if ok {
			fmt.Printf("%-16s %d.%d\n", "version_state", v.Major, v.Minor)
		}
		if v, ok, err := txn.GetVersionBlocks(); err != nil {
			return err
		} else if ok {
			fmt.Printf("%-16s %d.%d\n", "version_blocks", v.Major, v.Minor)
		}
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert [block-number]",
	Short: "Revert every subsystem's data for the tip block",
	Long: `Revert removes the rows written at the given block across all
subsystems (compiled classes, classes, state, body, header), rolling each
marker back by one. The block must be the tip of each subsystem that has
reached it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.EnforceFileExists = true

		var n uint64
		if _, err := fmt.Sscanf(args[0], "%d", &n); err != nil {
			return fmt.Errorf("invalid block number %q: %w", args[0], err)
		}
		block := types.BlockNumber(n)

		reader, writer, err := storage.Open(cfg.Storage())
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		txn, err := writer.BeginRW()
		if err != nil {
			return err
		}
		defer txn.Abort()

		if err := txn.RevertCasm(block); err != nil {
			return err
		}
		if err := txn.RevertClasses(block); err != nil {
			return err
		}
		if _, err := txn.RevertStateDiff(block); err != nil {
			return err
		}
		if _, err := txn.RevertBody(block); err != nil {
			return err
		}
		if _, err := txn.RevertHeader(block); err != nil {
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		log.WithBlockNumber(n).Info().Msg("reverted")
		return nil
	},
}
