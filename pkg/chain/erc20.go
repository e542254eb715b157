package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ERC20ABI covers the calls the CLI makes against token contracts
const ERC20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var erc20ABI = mustParseABI(ERC20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// callERC20 packs a view call, executes it and returns the first output
func callERC20(ctx context.Context, backend Backend, token common.Address, method string, args ...interface{}) (interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s data", method)
	}

	result, err := backend.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}
	if len(result) == 0 {
		return nil, errors.Errorf("empty result from %s call on %s", method, token.Hex())
	}

	out, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no outputs from %s", method)
	}
	return out[0], nil
}

func erc20BalanceOf(ctx context.Context, backend Backend, token, owner common.Address) (*big.Int, error) {
	out, err := callERC20(ctx, backend, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out.(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected balanceOf result type %T", out)
	}
	return balance, nil
}

func erc20Decimals(ctx context.Context, backend Backend, token common.Address) (uint8, error) {
	out, err := callERC20(ctx, backend, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out.(uint8)
	if !ok {
		return 0, errors.Errorf("unexpected decimals result type %T", out)
	}
	return decimals, nil
}

func erc20Symbol(ctx context.Context, backend Backend, token common.Address) (string, error) {
	out, err := callERC20(ctx, backend, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out.(string)
	if !ok {
		return "", errors.Errorf("unexpected symbol result type %T", out)
	}
	return symbol, nil
}

func packTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer data")
	}
	return data, nil
}
