package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/chain"
	"relay-swap/pkg/client"
)

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "relay-swap",
	Short: "A CLI for cross-chain transfers using the Relay Protocol API",
	Long: `relay-swap is a command-line tool for moving tokens between EVM test networks
with the Relay Protocol API. It fetches quotes, sends the deposit transaction from
your own wallet, registers it for indexing and waits for the request to settle.

Examples:
  relay-swap chains
  relay-swap balance --chain sepolia --token USDC
  relay-swap quote 0.2 USDC from sepolia to base-sepolia
  relay-swap transfer 0x3e34...76b9 1 --chain sepolia --token USDC --index
  relay-swap bridge 0.2 USDC from sepolia to base-sepolia --execute
  relay-swap status 0x1edf...596f --watch`,
	Version:          "0.1.0",
	PersistentPreRun: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// setup loads the configuration once and configures logging for every subcommand
func setup(cmd *cobra.Command, args []string) {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logrus.DebugLevel
	} else if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
}

func newRelayClient() *client.RelayClient {
	return client.NewRelayClient(config.Get(), logger)
}

func newChainManager() *chain.Manager {
	return chain.NewManager(config.Get(), logger)
}

// signalContext is cancelled on Ctrl+C so long waits stop cleanly
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startSpinner shows a spinner unless output is JSON. The returned func stops it.
func startSpinner(jsonOutput bool, suffix string) func() {
	if jsonOutput {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

func printJSON(v interface{}) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

func printHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	padding := (width - len(title)) / 2
	if padding < 0 {
		padding = 0
	}
	color.Green("%s%s", strings.Repeat(" ", padding), title)
	fmt.Println(strings.Repeat("=", width))
}

func printFooter(width int) {
	fmt.Println("\n" + strings.Repeat("=", width) + "\n")
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}
