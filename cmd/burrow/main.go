package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/broker"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/logsink"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/rpc"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/tooling"
	"github.com/cuemby/burrow/pkg/types"
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
	Short: "Burrow - plugin broker orchestration for workspace tooling",
	Long: `Burrow receives status and log events from the plugin brokers launched
for a workspace, aggregates the tooling they resolve, validates it and
hands the result to the workspace start flow.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(attemptsCmd)
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if f := flags.Lookup("rpc-addr"); f != nil && f.Changed {
		cfg.RPC.Addr = f.Value.String()
	}
	if f := flags.Lookup("health-addr"); f != nil && f.Changed {
		cfg.Health.Addr = f.Value.String()
	}
	if f := flags.Lookup("grpc-addr"); f != nil && f.Changed {
		cfg.GRPC.Addr = f.Value.String()
	}
	if f := flags.Lookup("data-dir"); f != nil && f.Changed {
		cfg.Storage.DataDir = f.Value.String()
	}
	if f := flags.Lookup("nats-url"); f != nil && f.Changed {
		cfg.NATS.URL = f.Value.String()
	}
	if flags.Lookup("start-timeout") != nil && flags.Changed("start-timeout") {
		cfg.Brokering.StartTimeout, _ = flags.GetDuration("start-timeout")
	}
	if flags.Lookup("result-timeout") != nil && flags.Changed("result-timeout") {
		cfg.Brokering.ResultTimeout, _ = flags.GetDuration("result-timeout")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

// node holds the components shared by serve and collect
type node struct {
	cfg       *config.Config
	bus       *events.Bus
	store     storage.Store
	sink      *logsink.Sink
	forwarder *logsink.NATSForwarder
	mux       *http.ServeMux
	rpc       *http.Server
}

func newNode(cfg *config.Config, withStore bool) (*node, error) {
	n := &node{
		cfg: cfg,
		bus: events.NewBus(),
		mux: http.NewServeMux(),
	}
	metrics.SetComponent(metrics.ComponentBus, true, "")

	if withStore {
		store, err := storage.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			metrics.SetComponent(metrics.ComponentStorage, false, err.Error())
			return nil, fmt.Errorf("failed to open store: %v", err)
		}
		n.store = store
		metrics.SetComponent(metrics.ComponentStorage, true, "")
		metrics.MarkCritical(metrics.ComponentStorage)
	}

	if cfg.NATS.URL != "" {
		fwd, err := logsink.NewNATSForwarder(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			metrics.SetComponent(metrics.ComponentLogSink, false, err.Error())
			log.Logger.Warn().Err(err).Msg("Broker log forwarding disabled")
		} else {
			n.forwarder = fwd
			metrics.SetComponent(metrics.ComponentLogSink, true, "")
		}
	}
	if n.forwarder != nil {
		n.sink = logsink.New(n.bus, n.forwarder)
	} else {
		n.sink = logsink.New(n.bus, nil)
	}
	n.sink.Start()

	router := rpc.NewRouter()
	broker.NewAdapter(n.bus).Register(router)
	rpcServer := rpc.NewServer(router)
	rpcServer.SetReadLimit(cfg.RPC.ReadLimit)
	n.mux.Handle(cfg.RPC.Path, rpcServer)

	return n, nil
}

func (n *node) manager(expectOverride int) *broker.Manager {
	expected := n.cfg.Brokering.ExpectedBrokers
	if expectOverride > 0 {
		expected = expectOverride
	}
	launcher := broker.LauncherFunc(func(ctx context.Context, runtimeID types.RuntimeIdentity, groups []broker.Group) error {
		logger := log.WithWorkspaceID(runtimeID.WorkspaceID)
		logger.Info().
			Int("groups", len(groups)).
			Msg("Waiting for externally launched plugin brokers")
		return nil
	})
	return broker.NewManager(n.bus, launcher, tooling.NewKubernetesValidator(), n.store, broker.Config{
		StartTimeout:    n.cfg.Brokering.StartTimeout,
		ResultTimeout:   n.cfg.Brokering.ResultTimeout,
		ExpectedBrokers: expected,
	})
}

// startRPC serves the broker endpoint in the background
func (n *node) startRPC(errCh chan<- error) {
	n.rpc = &http.Server{
		Addr:              n.cfg.RPC.Addr,
		Handler:           n.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.rpc.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metrics.SetComponent(metrics.ComponentRPC, false, err.Error())
			errCh <- fmt.Errorf("broker endpoint error: %v", err)
		}
	}()
	metrics.SetComponent(metrics.ComponentRPC, true, "")
}

func (n *node) shutdown() {
	if n.rpc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = n.rpc.Shutdown(ctx)
		cancel()
	}
	n.sink.Stop()
	n.bus.Close()
	if n.forwarder != nil {
		_ = n.forwarder.Close()
	}
	if n.store != nil {
		_ = n.store.Close()
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the broker event endpoint",
	Long: `Run the broker event endpoint.

Brokers connect over websocket and send JSON-RPC notifications
(broker/statusChanged, broker/result, broker/log). Workspace start flows
request tooling with POST <rpc-path>/tooling, which blocks until the
brokers of that runtime have reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		n, err := newNode(cfg, true)
		if err != nil {
			return err
		}
		n.mux.Handle(cfg.RPC.Path+"/tooling", api.ToolingHandler(n.manager(0)))

		errCh := make(chan error, 3)
		n.startRPC(errCh)
		fmt.Printf("✓ Broker endpoint listening on %s%s\n", cfg.RPC.Addr, cfg.RPC.Path)

		healthServer := api.NewHealthServer(n.bus, n.store, Version)
		go func() {
			if err := healthServer.Start(cfg.Health.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("health server error: %v", err)
			}
		}()
		fmt.Printf("✓ Health endpoints listening on %s\n", cfg.Health.Addr)

		var grpcHealth *api.GRPCHealth
		if cfg.GRPC.Addr != "" {
			grpcHealth = api.NewGRPCHealth()
			go func() {
				if err := grpcHealth.Start(cfg.GRPC.Addr); err != nil {
					errCh <- fmt.Errorf("gRPC health error: %v", err)
				}
			}()
			fmt.Printf("✓ gRPC health listening on %s\n", cfg.GRPC.Addr)
		}

		fmt.Println()
		fmt.Println("Burrow is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		if grpcHealth != nil {
			grpcHealth.Stop()
		}
		_ = healthServer.Stop()
		n.shutdown()

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("rpc-addr", "", "Address brokers connect to (default from config)")
	serveCmd.Flags().String("health-addr", "", "Address for health and metrics endpoints")
	serveCmd.Flags().String("grpc-addr", "", "Address for the gRPC health service (disabled when empty)")
	serveCmd.Flags().String("data-dir", "", "Directory for the attempt store")
	serveCmd.Flags().String("nats-url", "", "NATS server to forward broker logs to")
	serveCmd.Flags().Duration("start-timeout", 0, "Time to wait for the first broker event")
	serveCmd.Flags().Duration("result-timeout", 0, "Time to wait for all broker results")
}
