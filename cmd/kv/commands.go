package kv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/tkv/cmd/util"
	"github.com/ValentinKolb/tkv/rpc/client"
	"github.com/ValentinKolb/tkv/rpc/wire"
	"github.com/spf13/cobra"
)

var (
	createTableCmd = &cobra.Command{
		Use:   "create-table [name]",
		Short: "Creates a table and prints its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			span, err := cmd.Flags().GetUint32("server-span")
			if err != nil {
				return err
			}
			if id, err := rpcSession.CreateTable(args[0], span); err != nil {
				return err
			} else {
				fmt.Printf("table=%s, id=%d\n", args[0], id)
			}
			return nil
		},
	}
	dropTableCmd = &cobra.Command{
		Use:   "drop-table [name]",
		Short: "Deletes a table and all objects in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcSession.DropTable(args[0]); err != nil {
				return err
			} else {
				fmt.Println("dropped successfully")
			}
			return nil
		},
	}
	tableIdCmd = &cobra.Command{
		Use:   "table-id [name]",
		Short: "Resolves a table name to its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id, err := rpcSession.GetTableId(args[0]); err != nil {
				return err
			} else {
				fmt.Printf("table=%s, id=%d\n", args[0], id)
			}
			return nil
		},
	}
	readCmd = &cobra.Command{
		Use:   "read [table] [key]",
		Short: "Reads the value and version of an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := rpcSession.GetTableId(args[0])
			if err != nil {
				return err
			}
			value, version, err := rpcSession.Read(tableID, []byte(args[1]), nil)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, version=%d, value=%s\n", args[1], version, value)
			return nil
		},
	}
	writeCmd = &cobra.Command{
		Use:   "write [table] [key] [value]",
		Short: "Writes a value and prints the new version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := rpcSession.GetTableId(args[0])
			if err != nil {
				return err
			}
			rules, err := rulesFromFlags(cmd)
			if err != nil {
				return err
			}
			version, err := rpcSession.Write(tableID, []byte(args[1]), []byte(args[2]), rules)
			if err != nil {
				return err
			}
			fmt.Printf("written successfully, version=%d\n", version)
			return nil
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [table] [key]",
		Short: "Removes an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := rpcSession.GetTableId(args[0])
			if err != nil {
				return err
			}
			rules, err := rulesFromFlags(cmd)
			if err != nil {
				return err
			}
			version, err := rpcSession.Remove(tableID, []byte(args[1]), rules)
			if err != nil {
				return err
			}
			fmt.Printf("removed successfully, version=%d\n", version)
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [table] [key] [delta]",
		Short: "Atomically adds delta to an 8-byte integer object",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := rpcSession.GetTableId(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("delta must be a number: %w", err)
			}
			result, version, err := rpcSession.IncrementInt64(tableID, []byte(args[1]), delta, nil)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%d, version=%d\n", args[1], result, version)
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [table]",
		Short: "Enumerates all objects of a table in key order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID, err := rpcSession.GetTableId(args[0])
			if err != nil {
				return err
			}
			count := 0
			it := rpcSession.Iterate(tableID)
			for it.Next() {
				item := it.Item()
				fmt.Printf("key=%s, version=%d, value=%s\n", item.Key, item.Version, item.Value)
				count++
			}
			if err := it.Err(); err != nil {
				return err
			}
			fmt.Printf("%d objects\n", count)
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the node answers and echoes correctly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce := uint64(time.Now().UnixNano())
			start := time.Now()
			echoed, err := rpcSession.Ping(nonce)
			if err != nil {
				return err
			}
			if echoed != nonce {
				return fmt.Errorf("nonce mismatch: sent %d, got %d", nonce, echoed)
			}
			fmt.Printf("pong (%s)\n", time.Since(start))
			return nil
		},
	}
	proxyPingCmd = &cobra.Command{
		Use:   "proxy-ping [locator]",
		Short: "Asks the connected node to ping another node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := cmd.Flags().GetDuration("probe-timeout")
			if err != nil {
				return err
			}
			replyNs, err := rpcSession.ProxyPing(args[0], uint64(timeout.Nanoseconds()))
			if err != nil {
				return err
			}
			if replyNs == client.NoResponse {
				fmt.Printf("%s did not answer within %s\n", args[0], timeout)
			} else {
				fmt.Printf("%s answered in %s\n", args[0], time.Duration(replyNs))
			}
			return nil
		},
	}
	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Prints the node's metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := rpcSession.GetMetrics()
			if err != nil {
				return err
			}
			fmt.Print(string(blob))
			return nil
		},
	}
)

func init() {
	createTableCmd.Flags().Uint32("server-span", 1, util.WrapString("Requested number of servers to spread the table over (informational on a single node)"))

	for _, cmd := range []*cobra.Command{writeCmd, removeCmd} {
		cmd.Flags().Bool("must-exist", false, util.WrapString("Reject the operation if the object does not exist"))
		cmd.Flags().Bool("must-not-exist", false, util.WrapString("Reject the operation if the object already exists"))
		cmd.Flags().Int64("if-version", -1, util.WrapString("Reject the operation unless the object's version matches exactly"))
	}

	proxyPingCmd.Flags().Duration("probe-timeout", time.Second, util.WrapString("How long the node waits for the probed peer to answer"))
}

// rulesFromFlags translates the precondition flags of a command into
// reject rules, nil if no flag was set
func rulesFromFlags(cmd *cobra.Command) (*wire.RejectRules, error) {
	mustExist, err := cmd.Flags().GetBool("must-exist")
	if err != nil {
		return nil, err
	}
	mustNotExist, err := cmd.Flags().GetBool("must-not-exist")
	if err != nil {
		return nil, err
	}
	ifVersion, err := cmd.Flags().GetInt64("if-version")
	if err != nil {
		return nil, err
	}

	rules := &wire.RejectRules{
		DoesntExist: mustExist,
		Exists:      mustNotExist,
	}
	if ifVersion >= 0 {
		rules.GivenVersion = uint64(ifVersion)
		rules.VersionNeGiven = true
	}
	if rules.IsZero() {
		return nil, nil
	}
	return rules, nil
}
