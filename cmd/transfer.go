package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/bridge"
	"relay-swap/pkg/parser"
	"relay-swap/pkg/types"
)

var (
	transferChain    string
	transferToken    string
	transferIndex    bool
	transferReferrer string
)

var transferCmd = &cobra.Command{
	Use:   "transfer <to> <amount>",
	Short: "Send native currency or an ERC-20 token",
	Long: `Send a transfer from the signer's wallet and wait for it to be mined. The
amount is in human units (e.g. 1.5). With --index the transaction is registered
with the Relay API afterwards, which is how deposits to a Relay deposit address
are attributed.

Examples:
  relay-swap transfer 0x3e34...76b9 0.01 --chain sepolia
  relay-swap transfer 0x3e34...76b9 1 --chain sepolia --token USDC --index`,
	Args: cobra.ExactArgs(2),
	Run:  runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVar(&transferChain, "chain", fmt.Sprint(config.SepoliaChainID), "Chain name or ID")
	transferCmd.Flags().StringVar(&transferToken, "token", "", "Token symbol or address (default: native currency)")
	transferCmd.Flags().BoolVar(&transferIndex, "index", false, "Register the transaction with the Relay API")
	transferCmd.Flags().StringVar(&transferReferrer, "referrer", "", "Referrer used when indexing")
}

func runTransfer(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	to, err := parser.NormalizeAddress("recipient", args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	network, err := parser.ResolveNetwork(cfg, transferChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	token, err := parser.ResolveCurrency(network, transferToken)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	symbol := transferToken
	if types.IsNativeCurrency(token) {
		symbol = network.NativeSymbol
		token = ""
	}
	req := &types.TransferRequest{
		To:           to,
		Amount:       args[1],
		ChainID:      network.ChainID,
		Currency:     symbol,
		TokenAddress: token,
	}

	ctx, cancel := signalContext()
	defer cancel()

	manager := newChainManager()

	stop := startSpinner(jsonOutput, "Sending transfer...")
	var result *bridge.TransferResult
	if transferIndex {
		bridger := bridge.NewBridger(newRelayClient(), manager, nil, logger)
		result, err = bridger.TransferAndIndex(ctx, req, transferReferrer)
	} else {
		var hash string
		if hash, err = manager.Transfer(ctx, req); err == nil {
			result = &bridge.TransferResult{TxHash: hash, ExplorerURL: manager.ExplorerTxURL(network.ChainID, hash)}
		}
	}
	stop()

	if err != nil {
		if result != nil && result.TxHash != "" && !jsonOutput {
			color.Yellow("\nTransfer %s was mined but indexing failed. Retry with:", result.TxHash)
			color.Cyan("  relay-swap index %s --chain %d\n", result.TxHash, network.ChainID)
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
		return
	}

	printHeader("TRANSFER SENT", 60)
	fmt.Printf("\n  Amount:            %s %s\n", req.Amount, color.YellowString(symbol))
	fmt.Printf("  To:                %s\n", color.CyanString(to))
	fmt.Printf("  Network:           %s\n", network.Name)
	fmt.Printf("  Tx Hash:           %s\n", color.CyanString(result.TxHash))
	if result.ExplorerURL != "" {
		fmt.Printf("  Explorer:          %s\n", color.HiBlackString(result.ExplorerURL))
	}
	if len(result.Index) > 0 {
		fmt.Printf("  Indexed:           %s\n", string(result.Index))
	}
	printFooter(60)
}
