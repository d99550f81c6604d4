package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/api"
	"github.com/cuemby/beacon/pkg/client"
	"github.com/cuemby/beacon/pkg/log"
	"github.com/cuemby/beacon/pkg/manager"
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
	Use:   "beacon",
	Short: "Beacon - on-chain alert registry",
	Long: `Beacon keeps a registry of blockchain alerts and the addresses
subscribed to them.

The registry owner publishes alert definitions keyed by
blockchain.protocol.method; any address can subscribe to an alert by
supplying a value for each of its fields.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Beacon version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("manager", "127.0.0.1:8080", "Manager gRPC address (host:port or unix:///path)")
	rootCmd.PersistentFlags().String("sender", os.Getenv("BEACON_SENDER"), "Address the commands are sent as (env BEACON_SENDER)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(alertCmd)
	rootCmd.AddCommand(subscriptionCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(addressCmd)
}

// newClient connects to the manager named by the global flags
func newClient(cmd *cobra.Command) (*client.Client, error) {
	managerAddr, _ := cmd.Flags().GetString("manager")
	sender, _ := cmd.Flags().GetString("sender")

	c, err := client.NewClient(managerAddr, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to manager: %v", err)
	}
	return c, nil
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a Beacon registry node",
	Long: `Run a single-node Beacon registry.

The first start of an empty data directory requires --owner: the address
recorded as the registry owner, the only sender allowed to create alerts.
Later starts reuse the stored owner.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().String("node-id", "beacon-1", "Unique node ID")
	serverCmd.Flags().String("bind-addr", "127.0.0.1:7946", "Address for Raft communication")
	serverCmd.Flags().String("api-addr", "127.0.0.1:8080", "Address for gRPC API")
	serverCmd.Flags().String("socket", "", "Unix socket for the read-only local API (disabled when empty)")
	serverCmd.Flags().String("health-addr", "127.0.0.1:9090", "Address for /health, /ready and /metrics")
	serverCmd.Flags().String("data-dir", "./beacon-data", "Data directory for registry state")
	serverCmd.Flags().String("owner", "", "Registry owner address (required on first start)")
	serverCmd.Flags().Float64("rate-limit", 0, "Mutating calls per second allowed per sender (0 disables)")
	serverCmd.Flags().Int("rate-burst", 5, "Burst size for --rate-limit")
	serverCmd.Flags().String("log-level", "info", "Log level: debug, info, warn or error")
	serverCmd.Flags().Bool("log-json", false, "Log as JSON instead of console output")
}

func runServer(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	socket, _ := cmd.Flags().GetString("socket")
	healthAddr, _ := cmd.Flags().GetString("health-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	ownerFlag, _ := cmd.Flags().GetString("owner")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
	rateBurst, _ := cmd.Flags().GetInt("rate-burst")

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: logJSON,
		Output:     os.Stderr,
	})
	logger := log.WithComponent("server")

	var owner address.Canonical
	if ownerFlag != "" {
		owner, err = address.Parse(ownerFlag)
		if err != nil {
			return fmt.Errorf("invalid --owner: %v", err)
		}
	}

	fmt.Println("Starting Beacon registry...")
	fmt.Printf("  Node ID: %s\n", nodeID)
	fmt.Printf("  Raft Address: %s\n", bindAddr)
	fmt.Printf("  API Address: %s\n", apiAddr)
	fmt.Printf("  Data Directory: %s\n", dataDir)
	fmt.Println()

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		DataDir:  dataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create manager: %v", err)
	}

	if err := mgr.Bootstrap(owner); err != nil {
		_ = mgr.Shutdown()
		return fmt.Errorf("failed to bootstrap: %v", err)
	}

	cfg, err := mgr.Config()
	if err != nil {
		_ = mgr.Shutdown()
		return fmt.Errorf("failed to read registry config: %v", err)
	}
	fmt.Printf("✓ Registry ready (owner: %s)\n", cfg.Owner)

	collector := manager.NewMetricsCollector(mgr)
	collector.Start()

	errCh := make(chan error, 3)

	apiServer := api.NewServer(mgr, api.WithRateLimit(rateLimit, rateBurst))
	go func() {
		if err := apiServer.Start(apiAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	if socket != "" {
		go func() {
			if err := apiServer.StartUnix(socket); err != nil {
				errCh <- fmt.Errorf("local API error: %v", err)
			}
		}()
	}

	healthServer := api.NewHealthServer(mgr, Version)
	go func() {
		if err := healthServer.Start(healthAddr); err != nil {
			errCh <- fmt.Errorf("health server error: %v", err)
		}
	}()

	fmt.Println()
	fmt.Println("Registry is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		logger.Error().Err(err).Msg("Server failed")
	}

	collector.Stop()
	apiServer.Stop()
	if err := healthServer.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop health server")
	}
	if socket != "" {
		_ = os.Remove(socket)
	}
	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown: %v", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
