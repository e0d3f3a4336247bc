package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/broker"
	"github.com/cuemby/burrow/pkg/rpc"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Broker-side commands, useful for exercising an endpoint by hand
var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Send a broker notification to a burrow endpoint",
}

var emitStatusCmd = &cobra.Command{
	Use:   "status STATUS",
	Short: "Send a broker/statusChanged notification (STARTED, DONE or FAILED)",
	Long: `Send a broker/statusChanged notification.

Examples:
  # Report success with the plugins listed in a YAML file
  burrow emit status DONE --workspace ws1 --tooling-file plugins.yaml

  # Report a failure
  burrow emit status FAILED --workspace ws1 --error "disk full"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := types.BrokerStatus(args[0])
		if !status.Valid() {
			return fmt.Errorf("status must be STARTED, DONE or FAILED")
		}
		runtimeID := runtimeFromFlags(cmd)
		brokerErr, _ := cmd.Flags().GetString("error")
		toolingFile, _ := cmd.Flags().GetString("tooling-file")
		legacy, _ := cmd.Flags().GetBool("legacy")

		event := broker.StatusChangedEvent{
			Status:    &status,
			RuntimeID: &runtimeID,
			Error:     brokerErr,
		}
		if toolingFile != "" {
			data, err := os.ReadFile(toolingFile)
			if err != nil {
				return fmt.Errorf("failed to read tooling file: %v", err)
			}
			var plugins []types.ChePlugin
			if err := yaml.Unmarshal(data, &plugins); err != nil {
				return fmt.Errorf("failed to parse tooling file: %v", err)
			}
			encoded, err := broker.EncodeTooling(plugins)
			if err != nil {
				return err
			}
			event.Tooling = encoded
		}

		method := broker.MethodStatusChanged
		if legacy {
			method = broker.MethodResult
		}
		return notify(cmd, method, &event)
	},
}

var emitLogCmd = &cobra.Command{
	Use:   "log TEXT",
	Short: "Send a broker/log notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return notify(cmd, broker.MethodLog, &broker.LogEvent{
			RuntimeID: runtimeFromFlags(cmd),
			Text:      args[0],
			Time:      time.Now().UTC(),
		})
	},
}

func init() {
	emitCmd.AddCommand(emitStatusCmd)
	emitCmd.AddCommand(emitLogCmd)

	emitCmd.PersistentFlags().String("url", "ws://127.0.0.1:8090/brokers", "Burrow broker endpoint")
	emitCmd.PersistentFlags().String("workspace", "", "Workspace ID")
	emitCmd.PersistentFlags().String("owner", "", "Workspace owner ID")
	emitCmd.PersistentFlags().String("env", "default", "Environment name")
	emitCmd.PersistentFlags().String("namespace", "", "Infrastructure namespace")

	emitStatusCmd.Flags().String("error", "", "Broker error message")
	emitStatusCmd.Flags().StringP("tooling-file", "f", "", "YAML or JSON file with the resolved plugins")
	emitStatusCmd.Flags().Bool("legacy", false, "Use the legacy broker/result method")
}

func runtimeFromFlags(cmd *cobra.Command) types.RuntimeIdentity {
	workspaceID, _ := cmd.Flags().GetString("workspace")
	ownerID, _ := cmd.Flags().GetString("owner")
	envName, _ := cmd.Flags().GetString("env")
	namespace, _ := cmd.Flags().GetString("namespace")
	return types.RuntimeIdentity{
		WorkspaceID:    workspaceID,
		OwnerID:        ownerID,
		EnvName:        envName,
		InfraNamespace: namespace,
	}
}

func notify(cmd *cobra.Command, method string, params any) error {
	url, _ := cmd.Flags().GetString("url")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := rpc.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Notify(ctx, method, params); err != nil {
		return err
	}
	fmt.Printf("✓ Sent %s\n", method)
	return nil
}
