package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/burrow/pkg/broker"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect the tooling of one workspace start attempt",
	Long: `Serve the broker endpoint until the brokers of one workspace have
reported, then print the aggregated tooling as YAML.

Examples:
  # Wait for two brokers of workspace ws1
  burrow collect --workspace ws1 --owner user1 --expect 2

  # Fail if no broker reports within a minute
  burrow collect --workspace ws1 --start-timeout 1m`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().String("workspace", "", "Workspace ID (required)")
	collectCmd.Flags().String("owner", "", "Workspace owner ID")
	collectCmd.Flags().String("env", "default", "Environment name")
	collectCmd.Flags().String("namespace", "", "Infrastructure namespace")
	collectCmd.Flags().Int("expect", 1, "Number of brokers expected to report")
	collectCmd.Flags().String("rpc-addr", "", "Address brokers connect to (default from config)")
	collectCmd.Flags().String("data-dir", "", "Record the attempt in this directory")
	collectCmd.Flags().Duration("start-timeout", 0, "Time to wait for the first broker event")
	collectCmd.Flags().Duration("result-timeout", 0, "Time to wait for all broker results")
	_ = collectCmd.MarkFlagRequired("workspace")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	workspaceID, _ := cmd.Flags().GetString("workspace")
	ownerID, _ := cmd.Flags().GetString("owner")
	envName, _ := cmd.Flags().GetString("env")
	namespace, _ := cmd.Flags().GetString("namespace")
	expect, _ := cmd.Flags().GetInt("expect")
	if expect < 1 {
		return fmt.Errorf("--expect must be at least 1")
	}

	n, err := newNode(cfg, cmd.Flags().Changed("data-dir"))
	if err != nil {
		return err
	}
	defer n.shutdown()

	errCh := make(chan error, 1)
	n.startRPC(errCh)
	fmt.Fprintf(os.Stderr, "Waiting for %d broker(s) on %s%s\n", expect, cfg.RPC.Addr, cfg.RPC.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			stop()
		case <-ctx.Done():
		}
	}()

	runtimeID := types.RuntimeIdentity{
		WorkspaceID:    workspaceID,
		OwnerID:        ownerID,
		EnvName:        envName,
		InfraNamespace: namespace,
	}
	groups := make([]broker.Group, expect)
	for i := range groups {
		groups[i] = broker.Group{Name: fmt.Sprintf("group-%d", i+1)}
	}

	plugins, err := n.manager(expect).GetTooling(ctx, runtimeID, groups)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(plugins)
	if err != nil {
		return fmt.Errorf("failed to encode tooling: %v", err)
	}
	fmt.Print(string(out))
	return nil
}
