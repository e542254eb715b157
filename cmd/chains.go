package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"relay-swap/config"
	"relay-swap/pkg/client"
	"relay-swap/pkg/types"
)

var (
	filterName     string
	configuredOnly bool
)

var chainsCmd = &cobra.Command{
	Use:     "chains",
	Aliases: []string{"list-chains", "ls"},
	Short:   "List chains supported by the Relay API",
	Long: `List the chains supported by the Relay Protocol API. Chains that are also in
your local network table (and can therefore be used for balances and transfers)
are marked.

Examples:
  relay-swap chains
  relay-swap chains --name base
  relay-swap chains --configured
  relay-swap chains --json`,
	Run: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)

	chainsCmd.Flags().StringVar(&filterName, "name", "", "Filter by chain name")
	chainsCmd.Flags().BoolVar(&configuredOnly, "configured", false, "Only show chains in the local network table")
}

func runChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	configured := configuredIDs(newChainManager().SupportedChains())

	ctx, cancel := signalContext()
	defer cancel()

	stop := startSpinner(jsonOutput, "Fetching supported chains...")
	raw, err := newRelayClient().GetChains(ctx)
	stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Unfiltered JSON is passed through untouched
	if jsonOutput && filterName == "" && !configuredOnly {
		fmt.Println(string(raw))
		return
	}

	chains, err := client.DecodeChains(raw)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterChains(chains, configured, filterName, configuredOnly)

	if jsonOutput {
		printJSON(types.ChainsResponse{Chains: filtered})
		return
	}
	displayChains(configured, filtered)
}

// configuredIDs indexes the local network table by chain ID
func configuredIDs(networks []config.Network) map[int64]bool {
	ids := make(map[int64]bool, len(networks))
	for _, n := range networks {
		ids[n.ChainID] = true
	}
	return ids
}

func filterChains(chains []types.Chain, configured map[int64]bool, name string, onlyConfigured bool) []types.Chain {
	var filtered []types.Chain
	for _, c := range chains {
		if name != "" && !strings.Contains(strings.ToLower(c.Name+" "+c.DisplayName), strings.ToLower(name)) {
			continue
		}
		if onlyConfigured && !configured[c.ID] {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func displayChains(configuredChains map[int64]bool, chains []types.Chain) {
	if len(chains) == 0 {
		fmt.Println("\nNo chains found matching the criteria.")
		return
	}

	sort.Slice(chains, func(i, j int) bool { return chains[i].ID < chains[j].ID })

	printHeader("SUPPORTED CHAINS", 90)

	configured := 0
	for _, c := range chains {
		marker := "  "
		if configuredChains[c.ID] {
			marker = color.GreenString("* ")
			configured++
		}

		name := c.DisplayName
		if name == "" {
			name = c.Name
		}
		if c.Disabled {
			name += color.RedString(" (disabled)")
		}

		fmt.Printf("%s%-10d  %-28s  %s\n",
			marker,
			c.ID,
			name,
			color.YellowString(c.Currency.Symbol))
	}

	printFooter(90)
	fmt.Printf("Total: %d chains, %d configured locally (marked *)\n\n", len(chains), configured)
}
