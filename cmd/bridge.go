package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/bridge"
	"relay-swap/pkg/chain"
	"relay-swap/pkg/poller"
)

var (
	bridgeFlags    routeFlags
	noConfirm      bool
	bridgeInterval time.Duration
	bridgeTimeout  time.Duration
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge <amount> <token> from <chain> to <chain> [for <recipient>]",
	Short: "Quote, deposit and wait for a cross-chain transfer",
	Long: `Run a cross-chain transfer end to end with the Relay API:

  1. check the signer's balance on the origin chain
  2. fetch a quote
  3. send the deposit (a transfer to the deposit address, or the quote's own
     transactions) and register it for indexing
  4. poll the request status until it succeeds or the timeout expires

IMPORTANT:
  - PRIVATE_KEY must be set; the deposit is signed locally
  - Press Ctrl+C to stop waiting; the deposit is not undone

Examples:
  relay-swap bridge 0.2 USDC from sepolia to base-sepolia
  relay-swap bridge 0.01 ETH from sepolia to base-sepolia --deposit-address --yes
  relay-swap bridge 1 USDC from sepolia to base-sepolia for 0x94b4...1d25 --timeout 5m`,
	Args: cobra.MinimumNArgs(6),
	Run:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeFlags.register(bridgeCmd)
	bridgeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	bridgeCmd.Flags().DurationVar(&bridgeInterval, "interval", poller.DefaultInterval, "Status polling interval")
	bridgeCmd.Flags().DurationVar(&bridgeTimeout, "timeout", poller.DefaultTimeout, "How long to wait for success")
}

func runBridge(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	if !cfg.HasSigner() {
		printError(config.ErrMissingPrivateKey)
		os.Exit(1)
	}

	req, err := bridgeFlags.buildBridgeRequest(cfg, args)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// the deposit is paid by the signer, so fail before the preview quote
	if req.User != "" {
		signer, err := newChainManager().SignerAddress()
		if err == nil && !strings.EqualFold(req.User, signer.Hex()) {
			err = errors.Wrapf(chain.ErrInvalidArgument, "user %s is not the signer %s", req.User, signer.Hex())
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	p := poller.New(
		poller.WithInterval(bridgeInterval),
		poller.WithTimeout(bridgeTimeout),
		poller.WithLogger(logger),
	)
	bridger := bridge.NewBridger(newRelayClient(), newChainManager(), p, logger)

	// Show the quote first so the user confirms what will be sent
	stop := startSpinner(jsonOutput, "Fetching quote...")
	preview, err := bridger.Bridge(ctx, req)
	stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayQuote(cfg, req, preview)
	}
	if !preview.Sufficient {
		printError(errors.Wrapf(chain.ErrInsufficientBalance, "have %s %s, need %s",
			preview.Balance.Formatted, preview.Balance.Symbol, req.Amount))
		os.Exit(1)
	}

	if !noConfirm && !jsonOutput {
		if !confirmBridge() {
			fmt.Println("\nBridge cancelled.")
			os.Exit(0)
		}
	}

	req.Execute = true
	stop = startSpinner(jsonOutput, "Sending deposit and waiting for the request to settle...")
	result, err := bridger.Bridge(ctx, req)
	stop()

	if err != nil {
		if result != nil && len(result.TxHashes) > 0 && !jsonOutput {
			color.Yellow("\nDeposit was sent; check progress with:")
			color.Cyan("  relay-swap status --endpoint '%s' --watch\n", result.StatusEndpoint)
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
		return
	}
	displayBridgeResult(cfg, req, result)
}

func displayBridgeResult(cfg *config.Config, req *bridge.BridgeRequest, result *bridge.BridgeResult) {
	printHeader("BRIDGE COMPLETE", 60)

	for _, hash := range result.TxHashes {
		fmt.Printf("\n  Deposit Tx:        %s\n", color.CyanString(hash))
		if n, err := cfg.Network(req.OriginChainID); err == nil {
			if url := n.TxURL(hash); url != "" {
				fmt.Printf("  Explorer:          %s\n", color.HiBlackString(url))
			}
		}
	}
	if result.Status != nil {
		fmt.Printf("  Status:            %s\n", getColoredStatus(result.Status.Status))
		for _, hash := range result.Status.TxHashes {
			fmt.Printf("  Fill Tx:           %s\n", color.HiBlackString(hash))
		}
	}

	printFooter(60)
	printSuccess("Funds delivered on " + networkName(cfg, req.DestinationChainID))
}

func confirmBridge() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with bridge? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
