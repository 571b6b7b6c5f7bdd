package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/hashslot"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/manager"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - connection manager for partitioned key-value stores",
	Long: `Burrow is the connection-management core of a partitioned
key-value store client: slot-based routing, pooled master and replica
connections, multiplexed pub/sub subscriptions, and transparent
re-subscription on replica failure.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(slotCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// Slot commands
var slotCmd = &cobra.Command{
	Use:   "slot KEY [KEY...]",
	Short: "Print the hash slot for one or more keys",
	Long: `Print the hash slot each key routes to. Keys containing a hash
tag like {user1000}.profile are hashed on the tag only, so keys sharing
a tag land on the same slot.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, key := range args {
			slot, err := hashslot.ForKey(key)
			if err != nil {
				return fmt.Errorf("key %q: %v", key, err)
			}
			fmt.Printf("%-40s %5d\n", key, slot)
		}
		return nil
	},
}

// Config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect client configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("✓ Configuration is valid\n")
		fmt.Printf("  Master: %s\n", cfg.Address)
		fmt.Printf("  Replicas: %d\n", len(cfg.Replicas))
		fmt.Printf("  Read mode: %s\n", cfg.ReadMode)
		fmt.Printf("  Pub/sub pool: %d conns x %d subscriptions\n",
			cfg.PubSubPoolSize, cfg.SubscriptionsPerConnection)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

// Serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a standalone in-process broker node",
	Long: `Run a connection manager backed by the in-process loopback
broker, exposing Prometheus metrics over HTTP. Intended for local
development and integration testing against a real manager lifecycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		logLevel, _ := cmd.Flags().GetString("log-level")
		jsonLogs, _ := cmd.Flags().GetBool("json")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: jsonLogs})

		cfg := config.Default()
		if configPath != "" {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		}

		broker := transport.NewBroker()
		mgr, err := manager.New(cfg, transport.NewLoopbackFactory(broker), nil)
		if err != nil {
			return fmt.Errorf("failed to create manager: %v", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		errCh := make(chan error, 1)
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				errCh <- fmt.Errorf("metrics server error: %v", err)
			}
		}()

		fmt.Printf("✓ Manager running, metrics on http://%s/metrics\n", metricsAddr)
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		mgr.Shutdown()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML configuration file")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus metrics endpoint")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("json", false, "Emit JSON logs")
}
