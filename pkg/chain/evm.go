package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"relay-swap/config"
	"relay-swap/pkg/types"
	"relay-swap/pkg/units"
)

const defaultReceiptInterval = time.Second

var (
	// ErrInvalidArgument is returned for missing or malformed input, before any RPC call
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientBalance is returned when the wallet cannot cover a transfer
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransactionReverted is returned when a mined transaction has a failed status
	ErrTransactionReverted = errors.New("transaction reverted")
)

// EVMClient reads balances and sends transactions on one EVM network
type EVMClient struct {
	backend    Backend
	network    config.Network
	privateKey *ecdsa.PrivateKey
	from       common.Address
	logger     *logrus.Logger

	// ReceiptInterval is how often the receipt is polled while waiting for confirmation
	ReceiptInterval time.Duration
}

// NewEVMClient wraps backend for network. privateKeyHex may be empty for read-only use.
func NewEVMClient(backend Backend, network config.Network, privateKeyHex string, logger *logrus.Logger) (*EVMClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &EVMClient{
		backend:         backend,
		network:         network,
		logger:          logger,
		ReceiptInterval: defaultReceiptInterval,
	}

	if privateKeyHex != "" {
		privateKey, err := ParsePrivateKey(privateKeyHex)
		if err != nil {
			return nil, err
		}
		e.privateKey = privateKey
		e.from = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	return e, nil
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(config.ErrInvalidConfig, "invalid private key")
	}
	return privateKey, nil
}

// Address returns the signer address, or the zero address if read-only
func (e *EVMClient) Address() common.Address {
	return e.from
}

// Network returns the network the client is bound to
func (e *EVMClient) Network() config.Network {
	return e.network
}

// Close closes the underlying connection
func (e *EVMClient) Close() {
	if e.backend != nil {
		e.backend.Close()
	}
}

// GetBalance returns the native balance of wallet when token is empty or the
// zero address, and the ERC-20 balance otherwise.
func (e *EVMClient) GetBalance(ctx context.Context, wallet, token string) (*types.BalanceResult, error) {
	owner, err := parseAddress("wallet address", wallet)
	if err != nil {
		return nil, err
	}

	if types.IsNativeCurrency(token) {
		raw, err := e.backend.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get native balance")
		}
		return &types.BalanceResult{
			Symbol:    e.network.NativeSymbol,
			Decimals:  e.network.NativeDecimals,
			Raw:       raw,
			Formatted: units.FormatUnits(raw, e.network.NativeDecimals),
		}, nil
	}

	tokenAddr, err := parseAddress("token address", token)
	if err != nil {
		return nil, err
	}

	var (
		raw      *big.Int
		decimals uint8
		symbol   string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = erc20BalanceOf(gctx, e.backend, tokenAddr, owner)
		return err
	})
	g.Go(func() error {
		var err error
		decimals, err = erc20Decimals(gctx, e.backend, tokenAddr)
		return err
	})
	g.Go(func() error {
		var err error
		symbol, err = erc20Symbol(gctx, e.backend, tokenAddr)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "failed to get token balance")
	}

	return &types.BalanceResult{
		Symbol:    symbol,
		Decimals:  decimals,
		Raw:       raw,
		Formatted: units.FormatUnits(raw, decimals),
	}, nil
}

// Transfer sends req.Amount of the native asset or an ERC-20 token to req.To,
// waits for the transaction to be mined and returns its hash.
func (e *EVMClient) Transfer(ctx context.Context, req *types.TransferRequest) (string, error) {
	if e.privateKey == nil {
		return "", config.ErrMissingPrivateKey
	}
	if req == nil {
		return "", errors.Wrap(ErrInvalidArgument, "transfer request is nil")
	}
	if req.ChainID != 0 && req.ChainID != e.network.ChainID {
		return "", errors.Wrapf(ErrInvalidArgument, "transfer for chain %d sent to client for chain %d", req.ChainID, e.network.ChainID)
	}

	to, err := parseAddress("recipient address", req.To)
	if err != nil {
		return "", err
	}

	log := e.logger.WithFields(logrus.Fields{
		"chain": e.network.Name,
		"from":  e.from.Hex(),
		"to":    to.Hex(),
	})

	var tx *ethtypes.Transaction
	if req.IsNative() {
		tx, err = e.transferNative(ctx, log, to, req.Amount)
	} else {
		tx, err = e.transferToken(ctx, log, to, req.TokenAddress, req.Amount)
	}
	if err != nil {
		return "", err
	}

	return tx.Hash().Hex(), nil
}

// transferNative sends the chain's native asset; no contract is consulted
func (e *EVMClient) transferNative(ctx context.Context, log *logrus.Entry, to common.Address, amount string) (*ethtypes.Transaction, error) {
	value, err := units.ParseUnits(amount, e.network.NativeDecimals)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}

	balance, err := e.backend.BalanceAt(ctx, e.from, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	if balance.Cmp(value) < 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance, "have %s wei, need %s wei", balance, value)
	}

	log.WithField("amount", amount+" "+e.network.NativeSymbol).Info("Sending native transfer")

	return e.send(ctx, to, value, nil, nil)
}

// transferToken reads balance, decimals and symbol, then calls transfer on the token
func (e *EVMClient) transferToken(ctx context.Context, log *logrus.Entry, to common.Address, token, amount string) (*ethtypes.Transaction, error) {
	tokenAddr, err := parseAddress("token address", token)
	if err != nil {
		return nil, err
	}

	balance, err := e.GetBalance(ctx, e.from.Hex(), token)
	if err != nil {
		return nil, err
	}
	log.WithField("balance", balance.Formatted+" "+balance.Symbol).Info("Token balance")

	value, err := units.ParseUnits(amount, balance.Decimals)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if balance.Raw.Cmp(value) < 0 {
		return nil, errors.Wrapf(ErrInsufficientBalance, "have %s %s, need %s %s",
			balance.Formatted, balance.Symbol, amount, balance.Symbol)
	}

	data, err := packTransfer(to, value)
	if err != nil {
		return nil, err
	}

	log.WithField("amount", amount+" "+balance.Symbol).Info("Sending token transfer")

	return e.send(ctx, tokenAddr, big.NewInt(0), data, nil)
}

// SendTxData signs and sends a transaction prepared by the Relay API as-is
// and waits for it to be mined.
func (e *EVMClient) SendTxData(ctx context.Context, item *types.TxData) (string, error) {
	if e.privateKey == nil {
		return "", config.ErrMissingPrivateKey
	}
	if item == nil {
		return "", errors.Wrap(ErrInvalidArgument, "transaction data is nil")
	}
	if item.ChainID != 0 && item.ChainID != e.network.ChainID {
		return "", errors.Wrapf(ErrInvalidArgument, "transaction is for chain %d, client is on chain %d", item.ChainID, e.network.ChainID)
	}
	if item.From != "" && !strings.EqualFold(item.From, e.from.Hex()) {
		return "", errors.Wrapf(ErrInvalidArgument, "transaction expects sender %s, signer is %s", item.From, e.from.Hex())
	}

	to, err := parseAddress("transaction target", item.To)
	if err != nil {
		return "", err
	}

	var data []byte
	if item.Data != "" {
		data, err = hexutil.Decode(item.Data)
		if err != nil {
			return "", errors.Wrap(ErrInvalidArgument, "transaction data is not hex")
		}
	}

	value, err := parseBigInt("value", item.Value)
	if err != nil {
		return "", err
	}

	fees := &txFees{}
	if item.Gas != "" {
		gas, err := strconv.ParseUint(item.Gas, 10, 64)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidArgument, "gas %q", item.Gas)
		}
		fees.gas = gas
	}
	if item.MaxFeePerGas != "" {
		if fees.feeCap, err = parseBigInt("maxFeePerGas", item.MaxFeePerGas); err != nil {
			return "", err
		}
		if fees.tipCap, err = parseBigInt("maxPriorityFeePerGas", item.MaxPriorityFeePerGas); err != nil {
			return "", err
		}
	}

	e.logger.WithFields(logrus.Fields{
		"chain": e.network.Name,
		"to":    to.Hex(),
		"value": value.String(),
	}).Info("Sending quote transaction")

	tx, err := e.send(ctx, to, value, data, fees)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// txFees carries gas settings supplied by the API; zero values are filled from the node
type txFees struct {
	gas    uint64
	feeCap *big.Int
	tipCap *big.Int
}

// send builds, signs, submits and confirms a transaction
func (e *EVMClient) send(ctx context.Context, to common.Address, value *big.Int, data []byte, fees *txFees) (*ethtypes.Transaction, error) {
	if fees == nil {
		fees = &txFees{}
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	gas := fees.gas
	if gas == 0 {
		gas, err = e.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  e.from,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to estimate gas")
		}
	}

	chainID := big.NewInt(e.network.ChainID)

	var tx *ethtypes.Transaction
	if fees.feeCap != nil {
		tx = ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: fees.tipCap,
			GasFeeCap: fees.feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get gas price")
		}
		tx = ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signedTx, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), e.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err := e.backend.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	log := e.logger.WithFields(logrus.Fields{
		"chain":  e.network.Name,
		"txHash": signedTx.Hash().Hex(),
	})
	log.Info("Transaction sent, waiting for confirmation")

	receipt, err := e.waitMined(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, errors.Wrapf(ErrTransactionReverted, "%s in block %s", signedTx.Hash().Hex(), receipt.BlockNumber)
	}

	log.WithField("block", receipt.BlockNumber).Info("Transaction confirmed")
	return signedTx, nil
}

// waitMined polls for the receipt until it exists or ctx is done
func (e *EVMClient) waitMined(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	interval := e.ReceiptInterval
	if interval <= 0 {
		interval = defaultReceiptInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		select {
		case <-ctx.Done():
			e.logger.WithField("txHash", hash.Hex()).Error("Stopped waiting for confirmation")
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func parseAddress(what, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, errors.Wrapf(ErrInvalidArgument, "%s is required", what)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.Wrapf(ErrInvalidArgument, "invalid %s: %s", what, value)
	}
	return common.HexToAddress(value), nil
}

func parseBigInt(what, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(value, 0)
	if !ok || n.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s %q", what, value)
	}
	return n, nil
}
