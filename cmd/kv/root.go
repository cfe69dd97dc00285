package kv

import (
	"github.com/ValentinKolb/tkv/cmd/util"
	"github.com/ValentinKolb/tkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcSession *client.Session

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations against a tKV node",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: teardownKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(createTableCmd)
	KeyValueCommands.AddCommand(dropTableCmd)
	KeyValueCommands.AddCommand(tableIdCmd)
	KeyValueCommands.AddCommand(readCmd)
	KeyValueCommands.AddCommand(writeCmd)
	KeyValueCommands.AddCommand(removeCmd)
	KeyValueCommands.AddCommand(incrCmd)
	KeyValueCommands.AddCommand(scanCmd)
	KeyValueCommands.AddCommand(pingCmd)
	KeyValueCommands.AddCommand(proxyPingCmd)
	KeyValueCommands.AddCommand(metricsCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects a client session to the configured node
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration and transport
	config := util.GetClientConfig()

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Connect the session
	rpcSession, err = client.Connect(*config, t)

	return err
}

// teardownKVClient releases the session handle on the node
func teardownKVClient(_ *cobra.Command, _ []string) error {
	if rpcSession == nil {
		return nil
	}
	return rpcSession.Disconnect()
}
