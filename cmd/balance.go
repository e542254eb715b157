package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/parser"
	"relay-swap/pkg/types"
)

var (
	balanceChain string
	balanceToken string
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show a wallet's native or token balance",
	Long: `Show the balance of a wallet on one or all configured chains. The address
defaults to the signer derived from PRIVATE_KEY.

Examples:
  relay-swap balance
  relay-swap balance --chain sepolia --token USDC
  relay-swap balance 0x94b4...1d25 --chain 84532`,
	Args: cobra.MaximumNArgs(1),
	Run:  runBalance,
}

// balanceRow is one line of balance output
type balanceRow struct {
	ChainID int64  `json:"chainId"`
	Network string `json:"network"`
	Token   string `json:"token"`
	*types.BalanceResult
	Error string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceChain, "chain", "", "Chain name or ID (default: every configured chain)")
	balanceCmd.Flags().StringVar(&balanceToken, "token", "", "Token symbol or address (default: native currency)")
}

func runBalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()
	manager := newChainManager()

	var wallet string
	if len(args) == 1 {
		var err error
		if wallet, err = parser.NormalizeAddress("address", args[0]); err != nil {
			printError(err)
			os.Exit(1)
		}
	} else {
		signer, err := manager.SignerAddress()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		wallet = signer.Hex()
	}

	networks := manager.SupportedChains()
	if balanceChain != "" {
		n, err := parser.ResolveNetwork(cfg, balanceChain)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		networks = []config.Network{n}
	}

	ctx, cancel := signalContext()
	defer cancel()

	stop := startSpinner(jsonOutput, "Reading balances...")
	rows := make([]balanceRow, 0, len(networks))
	failed := 0
	for _, n := range networks {
		row := balanceRow{ChainID: n.ChainID, Network: n.Name}

		token, err := parser.ResolveCurrency(n, balanceToken)
		if err == nil {
			row.Token = token
			row.BalanceResult, err = manager.GetBalance(ctx, n.ChainID, wallet, token)
		}
		if err != nil {
			// a single requested chain fails hard, otherwise report and continue
			if len(networks) == 1 {
				stop()
				printError(err)
				os.Exit(1)
			}
			logger.WithField("chain", n.Name).WithError(err).Debug("Failed to read balance")
			row.Error = err.Error()
			failed++
		}
		rows = append(rows, row)
	}
	stop()

	if jsonOutput {
		printJSON(map[string]interface{}{
			"address":  wallet,
			"balances": rows,
		})
	} else {
		displayBalances(wallet, rows)
	}

	if failed == len(rows) {
		os.Exit(1)
	}
}

func displayBalances(wallet string, rows []balanceRow) {
	printHeader("BALANCES", 70)
	fmt.Printf("\n  Address: %s\n\n", color.CyanString(wallet))

	for _, row := range rows {
		if row.Error != "" {
			fmt.Printf("  %-14s %s\n", row.Network, color.RedString(row.Error))
			continue
		}
		fmt.Printf("  %-14s %s %s\n", row.Network, row.Formatted, color.YellowString(row.Symbol))
	}

	printFooter(70)
}
