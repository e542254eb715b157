package parser

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"relay-swap/config"
	"relay-swap/pkg/chain"
	"relay-swap/pkg/types"
)

// BridgeCommand is the parsed form of a one-line bridge instruction
type BridgeCommand struct {
	Amount      string
	Asset       string
	Origin      string
	Destination string
	Recipient   string
}

var bridgePattern = regexp.MustCompile(`^(\d+\.?\d*)\s+(\S+)\s+FROM\s+(\S+)\s+TO\s+(\S+)(?:\s+FOR\s+(0X[0-9A-F]{40}))?$`)

// ParseBridgeCommand parses a natural language bridge command
// Examples:
//   - "bridge 0.2 USDC from sepolia to base-sepolia"
//   - "1 ETH from 11155111 to 84532"
//   - "5 usdc from sepolia to base-sepolia for 0x94b4214c2F27d23208c7B66dF60AA23F802a1d25"
func ParseBridgeCommand(command string) (*BridgeCommand, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "BRIDGE ")

	matches := bridgePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, errors.Wrap(chain.ErrInvalidArgument,
			"expected '<amount> <token> from <chain> to <chain> [for <address>]' (e.g. '0.2 USDC from sepolia to base-sepolia')")
	}

	cmd := &BridgeCommand{
		Amount:      matches[1],
		Asset:       matches[2],
		Origin:      strings.ToLower(matches[3]),
		Destination: strings.ToLower(matches[4]),
	}
	if matches[5] != "" {
		cmd.Recipient = common.HexToAddress(matches[5]).Hex()
	}
	return cmd, nil
}

// ResolveNetwork accepts a chain ID or a configured network name
func ResolveNetwork(cfg *config.Config, value string) (config.Network, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return config.Network{}, errors.Wrap(chain.ErrInvalidArgument, "chain is required")
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return cfg.Network(id)
	}
	return cfg.NetworkByName(value)
}

// ResolveCurrency turns a symbol or address into the currency address the API expects.
// The network's native symbol and "native" map to the zero address.
func ResolveCurrency(network config.Network, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "", strings.EqualFold(value, "native"), strings.EqualFold(value, network.NativeSymbol):
		return types.ZeroAddress, nil
	case common.IsHexAddress(value):
		return common.HexToAddress(value).Hex(), nil
	}

	if addr, ok := network.Token(value); ok {
		return common.HexToAddress(addr).Hex(), nil
	}
	return "", errors.Wrapf(chain.ErrInvalidArgument, "unknown token %q on %s", value, network.Name)
}

// NormalizeAddress checksums an address, rejecting malformed input
func NormalizeAddress(what, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.Wrapf(chain.ErrInvalidArgument, "%s is required", what)
	}
	if !common.IsHexAddress(value) {
		return "", errors.Wrapf(chain.ErrInvalidArgument, "invalid %s: %s", what, value)
	}
	return common.HexToAddress(value).Hex(), nil
}

// ValidateQuoteRequest checks that a quote request has all required fields
// and normalizes its addresses in place
func ValidateQuoteRequest(req *types.QuoteRequest) error {
	if req == nil {
		return errors.Wrap(chain.ErrInvalidArgument, "quote request is nil")
	}
	if req.OriginChainID <= 0 || req.DestinationChainID <= 0 {
		return errors.Wrap(chain.ErrInvalidArgument, "origin and destination chain ids are required")
	}

	var err error
	if req.User, err = NormalizeAddress("user", req.User); err != nil {
		return err
	}
	if req.Recipient == "" {
		req.Recipient = req.User
	}
	if req.Recipient, err = NormalizeAddress("recipient", req.Recipient); err != nil {
		return err
	}
	if req.OriginCurrency, err = NormalizeAddress("origin currency", req.OriginCurrency); err != nil {
		return err
	}
	if req.DestinationCurrency, err = NormalizeAddress("destination currency", req.DestinationCurrency); err != nil {
		return err
	}
	if req.RefundTo != "" {
		if req.RefundTo, err = NormalizeAddress("refund address", req.RefundTo); err != nil {
			return err
		}
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return errors.Wrapf(chain.ErrInvalidArgument, "amount must be a positive integer in the smallest unit, got %q", req.Amount)
	}

	switch req.TradeType {
	case "", types.TradeTypeExactInput, types.TradeTypeExactOutput:
	default:
		return errors.Wrapf(chain.ErrInvalidArgument, "trade type must be %s or %s", types.TradeTypeExactInput, types.TradeTypeExactOutput)
	}
	return nil
}
