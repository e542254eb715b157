package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"relay-swap/pkg/poller"
	"relay-swap/pkg/types"
)

var (
	watchStatus    bool
	statusEndpoint string
	watchInterval  time.Duration
	watchTimeout   time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [request-id]",
	Short: "Check the status of a Relay request",
	Long: `Check the status of a cross-chain request by its request ID, or by the
check endpoint returned in a quote.

With --watch the status is polled until it reports success or the timeout
expires. Press Ctrl+C to stop.

Examples:
  relay-swap status 0x1edf...596f
  relay-swap status 0x1edf...596f --watch
  relay-swap status --endpoint '/intents/status?requestId=0x1edf...596f' --watch --interval 5s --timeout 10m`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the request succeeds")
	statusCmd.Flags().StringVar(&statusEndpoint, "endpoint", "", "Status endpoint from a quote's check field")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", poller.DefaultInterval, "Polling interval (when watching)")
	statusCmd.Flags().DurationVar(&watchTimeout, "timeout", poller.DefaultTimeout, "Give up after this long (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	requestID := ""
	endpoint := statusEndpoint
	if len(args) == 1 {
		requestID = args[0]
		endpoint = types.IntentStatusPath + "?requestId=" + requestID
	}
	if endpoint == "" {
		printError(errors.New("a request ID or --endpoint is required"))
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	apiClient := newRelayClient()

	var (
		status *types.StatusResult
		err    error
	)
	if watchStatus {
		if !jsonOutput {
			fmt.Printf("\nWatching request status (%s)\n", color.CyanString(endpoint))
			fmt.Printf("Checking every %s for up to %s. Press Ctrl+C to stop.\n", watchInterval, watchTimeout)
		}
		p := poller.New(
			poller.WithInterval(watchInterval),
			poller.WithTimeout(watchTimeout),
			poller.WithLogger(logger),
		)
		stop := startSpinner(jsonOutput, "Waiting for success...")
		status, err = apiClient.WaitForSuccess(ctx, endpoint, p)
		stop()
	} else {
		stop := startSpinner(jsonOutput, "Checking request status...")
		if requestID != "" {
			status, err = apiClient.GetStatus(ctx, requestID)
		} else {
			status, err = apiClient.GetStatusByEndpoint(ctx, endpoint)
		}
		stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(status)
		return
	}
	displayStatus(status, endpoint)
}

func displayStatus(status *types.StatusResult, endpoint string) {
	printHeader("REQUEST STATUS", 70)

	fmt.Printf("\n  Endpoint:        %s\n", color.CyanString(endpoint))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))
	if status.UpdatedAt > 0 {
		updated := time.Unix(status.UpdatedAt, 0)
		if status.UpdatedAt > 1e12 {
			updated = time.UnixMilli(status.UpdatedAt)
		}
		fmt.Printf("  Last Updated:    %s\n", updated.Format("2006-01-02 15:04:05"))
	}
	if status.Details != "" {
		fmt.Printf("  Details:         %s\n", status.Details)
	}
	for _, hash := range status.InTxHashes {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
	}
	for _, hash := range status.TxHashes {
		fmt.Printf("  Fill Tx:         %s\n", color.HiBlackString(hash))
	}

	// Anything else the API sent
	if fields, err := status.Fields(); err == nil {
		known := map[string]bool{
			"status": true, "details": true, "inTxHashes": true, "txHashes": true, "updatedAt": true,
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			if !known[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-16s %v\n", k+":", fields[k])
		}
	}

	printFooter(70)
}

func getColoredStatus(status string) string {
	label := strings.ToUpper(status)

	switch strings.ToLower(status) {
	case types.StatusSuccess:
		return color.GreenString(label)
	case types.StatusPending, "waiting", "delayed":
		return color.YellowString(label)
	case types.StatusFailure, types.StatusRefund, "refunded":
		return color.RedString(label)
	default:
		return label
	}
}
