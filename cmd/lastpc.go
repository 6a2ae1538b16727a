package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reserve-protocol/soltrace/ethrpc"
	"github.com/reserve-protocol/soltrace/srclocation"
)

var txnHash string

func init() {
	lastpcCmd.Flags().StringVar(&txnHash, "txn", "", "a transaction hash to inspect")
	lastpcCmd.MarkFlagRequired("txn")
	rootCmd.AddCommand(lastpcCmd)
}

var lastpcCmd = &cobra.Command{
	Use:   "lastpc",
	Short: "Tells you where a txn reverted",
	Long: `Tells you the last line of code that a particular transaction ended
on. This is especially useful for reverts, since the EVM does not provide
error messages or stack traces on its own.`,
	Run: LastPC,
}

func LastPC(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	node, err := ethrpc.Dial(ctx, viper.GetString("rpc_url"))
	check(err, "failed to connect to node")
	defer node.Close()

	entries, err := node.TransactionTrace(ctx, common.HexToHash(txnHash))
	check(err, "failed to fetch trace")
	if len(entries) == 0 {
		fmt.Println("Transaction executed no code.")
		return
	}

	target, err := node.TransactionTarget(ctx, common.HexToHash(txnHash))
	check(err, "failed to resolve transaction target")

	index, files, err := buildIndexForAddress(ctx, target.Hex())
	check(err, "failed to build PC index")

	lastPC, ok := entries[len(entries)-1].PC()
	if !ok {
		fmt.Println("Trace carries no program counters.")
		return
	}
	fmt.Printf("Last program counter: %v\n", lastPC)

	entry, ok := index[lastPC]
	if !ok {
		fmt.Println("Last PC has no source mapping (compiler-generated code).")
		return
	}

	location, ok := srclocation.Resolve(files, entry.FileIndex, entry.Start, entry.Length)
	if !ok {
		fmt.Println("Source range could not be resolved.")
		return
	}

	fmt.Printf("%s %d:%d (%s)\n", location.FilePath, location.LineStart, location.ColStart, entry.Jump.Description())
	fmt.Printf("... %s ...\n", location.Snippet)
}
