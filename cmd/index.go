package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/parser"
)

var (
	indexChain    string
	indexReferrer string
)

var indexCmd = &cobra.Command{
	Use:   "index <tx-hash>",
	Short: "Register a transaction with the Relay API",
	Long: `Submit a mined transaction to the Relay API for indexing, e.g. a deposit that
was sent outside this tool.

Examples:
  relay-swap index 0xabc...def --chain sepolia
  relay-swap index 0xabc...def --chain 84532 --referrer my-dapp`,
	Args: cobra.ExactArgs(1),
	Run:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVar(&indexChain, "chain", fmt.Sprint(config.SepoliaChainID), "Chain name or ID the transaction was mined on")
	indexCmd.Flags().StringVar(&indexReferrer, "referrer", "", "Referrer (default from configuration)")
}

func runIndex(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	network, err := parser.ResolveNetwork(cfg, indexChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	stop := startSpinner(jsonOutput, "Indexing transaction...")
	resp, err := newRelayClient().IndexTransaction(ctx, args[0], network.ChainID, indexReferrer)
	stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		fmt.Println(string(resp))
		return
	}

	printSuccess("Transaction indexed")
	fmt.Printf("  Tx Hash:  %s\n", color.CyanString(args[0]))
	fmt.Printf("  Network:  %s\n", network.Name)
	fmt.Printf("  Response: %s\n\n", string(resp))
}
