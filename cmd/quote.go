package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/bridge"
	"relay-swap/pkg/parser"
	"relay-swap/pkg/types"
)

// routeFlags are shared by quote and bridge
type routeFlags struct {
	toToken           string
	user              string
	refundTo          string
	tradeType         string
	referrer          string
	useDepositAddress bool
	externalLiquidity bool
	topupGas          bool
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.toToken, "to-token", "", "Destination token symbol or address (defaults to the same symbol)")
	cmd.Flags().StringVar(&f.user, "user", "", "Address that deposits on the origin chain (defaults to the signer)")
	cmd.Flags().StringVar(&f.refundTo, "refund-to", "", "Refund address on the origin chain")
	cmd.Flags().StringVar(&f.tradeType, "trade-type", types.TradeTypeExactInput, "EXACT_INPUT or EXACT_OUTPUT")
	cmd.Flags().StringVar(&f.referrer, "referrer", "", "Referrer reported to the API")
	cmd.Flags().BoolVar(&f.useDepositAddress, "deposit-address", false, "Ask for a deposit address instead of calldata")
	cmd.Flags().BoolVar(&f.externalLiquidity, "external-liquidity", false, "Allow external liquidity")
	cmd.Flags().BoolVar(&f.topupGas, "topup-gas", false, "Top up gas on the destination chain")
}

// buildBridgeRequest parses "<amount> <token> from <chain> to <chain> [for <address>]" and the route flags
func (f *routeFlags) buildBridgeRequest(cfg *config.Config, args []string) (*bridge.BridgeRequest, error) {
	parsed, err := parser.ParseBridgeCommand(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}

	origin, err := parser.ResolveNetwork(cfg, parsed.Origin)
	if err != nil {
		return nil, err
	}
	destination, err := parser.ResolveNetwork(cfg, parsed.Destination)
	if err != nil {
		return nil, err
	}

	originCurrency, err := parser.ResolveCurrency(origin, parsed.Asset)
	if err != nil {
		return nil, err
	}
	toToken := f.toToken
	if toToken == "" {
		toToken = parsed.Asset
	}
	destinationCurrency, err := parser.ResolveCurrency(destination, toToken)
	if err != nil {
		return nil, err
	}

	req := &bridge.BridgeRequest{
		Recipient:            parsed.Recipient,
		OriginChainID:        origin.ChainID,
		DestinationChainID:   destination.ChainID,
		OriginCurrency:       originCurrency,
		DestinationCurrency:  destinationCurrency,
		Amount:               parsed.Amount,
		TradeType:            strings.ToUpper(f.tradeType),
		Referrer:             f.referrer,
		UseDepositAddress:    f.useDepositAddress,
		UseExternalLiquidity: f.externalLiquidity,
		TopupGas:             f.topupGas,
	}

	if f.user != "" {
		if req.User, err = parser.NormalizeAddress("user", f.user); err != nil {
			return nil, err
		}
	}
	if f.refundTo != "" {
		if req.RefundTo, err = parser.NormalizeAddress("refund address", f.refundTo); err != nil {
			return nil, err
		}
	}
	return req, nil
}

var (
	quoteFlags routeFlags
	rawAmount  bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> from <chain> to <chain> [for <recipient>]",
	Short: "Get a cross-chain quote without sending anything",
	Long: `Request a quote from the Relay API. The origin balance of the user is checked
and a warning is shown when it cannot cover the amount.

Chains may be given by name (see your network table) or by chain ID. Tokens may be
given by symbol (ETH, USDC) or by contract address.

Examples:
  relay-swap quote 0.2 USDC from sepolia to base-sepolia
  relay-swap quote 0.01 ETH from 11155111 to 84532 for 0x94b4...1d25
  relay-swap quote 200000 USDC from sepolia to base-sepolia --raw --user 0x94b4...1d25`,
	Args: cobra.MinimumNArgs(6),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteFlags.register(quoteCmd)
	quoteCmd.Flags().BoolVar(&rawAmount, "raw", false, "Amount is already in the token's smallest unit (skips the balance check)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg := config.Get()

	req, err := quoteFlags.buildBridgeRequest(cfg, args)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if rawAmount {
		quoteRaw(ctx, req, jsonOutput)
		return
	}

	bridger := bridge.NewBridger(newRelayClient(), newChainManager(), nil, logger)

	stop := startSpinner(jsonOutput, "Fetching quote...")
	result, err := bridger.Bridge(ctx, req)
	stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(result)
		return
	}
	displayQuote(cfg, req, result)
}

// quoteRaw sends the amount as given, after validating the request locally
func quoteRaw(ctx context.Context, req *bridge.BridgeRequest, jsonOutput bool) {
	user := req.User
	if user == "" {
		signer, err := newChainManager().SignerAddress()
		if err != nil {
			printError(errors.Wrap(err, "--user is required without a signer"))
			os.Exit(1)
		}
		user = signer.Hex()
	}

	quoteReq := &types.QuoteRequest{
		User:                 user,
		OriginChainID:        req.OriginChainID,
		DestinationChainID:   req.DestinationChainID,
		OriginCurrency:       req.OriginCurrency,
		DestinationCurrency:  req.DestinationCurrency,
		Recipient:            req.Recipient,
		TradeType:            req.TradeType,
		Amount:               req.Amount,
		Referrer:             req.Referrer,
		UseExternalLiquidity: req.UseExternalLiquidity,
		UseDepositAddress:    req.UseDepositAddress,
		TopupGas:             req.TopupGas,
		RefundTo:             req.RefundTo,
	}
	if err := parser.ValidateQuoteRequest(quoteReq); err != nil {
		printError(err)
		os.Exit(1)
	}

	stop := startSpinner(jsonOutput, "Fetching quote...")
	quote, err := newRelayClient().GetQuote(ctx, quoteReq)
	stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(quote)
		return
	}
	printHeader("RELAY QUOTE", 60)
	displaySteps(quote)
	fmt.Printf("\n  Status endpoint:   %s\n", color.CyanString(quote.StatusEndpoint()))
	printFooter(60)
}

func displayQuote(cfg *config.Config, req *bridge.BridgeRequest, result *bridge.BridgeResult) {
	originName, destName := networkName(cfg, req.OriginChainID), networkName(cfg, req.DestinationChainID)

	printHeader("RELAY QUOTE", 60)

	fmt.Printf("\n  From:              %s %s on %s\n", req.Amount, color.YellowString(result.Balance.Symbol), originName)
	fmt.Printf("  To:                %s\n", destName)
	fmt.Printf("  Amount (raw):      %s\n", result.AmountRaw)

	balance := fmt.Sprintf("%s %s", result.Balance.Formatted, result.Balance.Symbol)
	if result.Sufficient {
		fmt.Printf("  Balance:           %s\n", color.GreenString(balance))
	} else {
		fmt.Printf("  Balance:           %s %s\n", color.RedString(balance), color.RedString("(insufficient)"))
	}

	if id := result.Quote.RequestID(); id != "" {
		fmt.Printf("  Request ID:        %s\n", color.CyanString(id))
	}
	if deposit := result.Quote.DepositAddress(); deposit != "" {
		fmt.Printf("  Deposit Address:   %s\n", color.CyanString(deposit))
	}

	displaySteps(result.Quote)
	printFooter(60)
}

func displaySteps(quote *types.Quote) {
	fmt.Printf("\n  Steps:\n")
	for i, step := range quote.Steps {
		desc := step.Description
		if desc == "" {
			desc = step.Action
		}
		fmt.Printf("    %d. %s %s\n", i+1, color.YellowString(step.ID), desc)
		for _, item := range step.Items {
			if item.Data == nil {
				fmt.Printf("       - %s\n", item.Status)
				continue
			}
			fmt.Printf("       - %s  to %s  chain %d\n", item.Status, color.HiBlackString(item.Data.To), item.Data.ChainID)
		}
	}
}

func networkName(cfg *config.Config, chainID int64) string {
	if n, err := cfg.Network(chainID); err == nil && n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("chain %d", chainID)
}
