// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"relay-swap/pkg/chain"
)

var erc20 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(chain.ERC20ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Token is a fake ERC-20 contract
type Token struct {
	Symbol   string
	Decimals uint8
	Balances map[common.Address]*big.Int
}

// Backend keeps native and token balances in memory and mines every sent
// transaction immediately.
type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	native   map[common.Address]*big.Int
	tokens   map[common.Address]*Token
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*ethtypes.Receipt
	polls    map[common.Hash]int

	// Calls lists the ERC-20 methods invoked through CallContract
	Calls []string
	// Sent lists every transaction passed to SendTransaction
	Sent []*ethtypes.Transaction
	// PendingPolls is how many receipt lookups return NotFound before the receipt appears
	PendingPolls int
	// RevertAll marks every mined transaction as failed
	RevertAll bool
	// SendErr is returned from SendTransaction when set
	SendErr error
	// Closed counts Close calls
	Closed int

	GasPrice *big.Int
}

// NewBackend creates an empty chain with the given ID
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:  big.NewInt(chainID),
		native:   make(map[common.Address]*big.Int),
		tokens:   make(map[common.Address]*Token),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*ethtypes.Receipt),
		polls:    make(map[common.Hash]int),
		GasPrice: big.NewInt(1_000_000_000),
	}
}

// SetNative sets an account's native balance
func (b *Backend) SetNative(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native[account] = new(big.Int).Set(amount)
}

// Native returns an account's native balance
func (b *Backend) Native(account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return balanceOf(b.native, account)
}

// AddToken deploys a fake token at address
func (b *Backend) AddToken(address common.Address, symbol string, decimals uint8) *Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := &Token{Symbol: symbol, Decimals: decimals, Balances: make(map[common.Address]*big.Int)}
	b.tokens[address] = t
	return t
}

// SetTokenBalance sets an account's balance of token
func (b *Backend) SetTokenBalance(token, account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token].Balances[account] = new(big.Int).Set(amount)
}

// TokenBalance returns an account's balance of token
func (b *Backend) TokenBalance(token, account common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return balanceOf(b.tokens[token].Balances, account)
}

// Dialer returns a chain.Dialer that always hands out this backend
func (b *Backend) Dialer() chain.Dialer {
	return func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		return b, nil
	}
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return b.Native(account), nil
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.To == nil {
		return nil, errors.New("call without target")
	}
	token, ok := b.tokens[*msg.To]
	if !ok {
		// no code at address
		return nil, nil
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}

	method, err := erc20.MethodById(msg.Data[:4])
	if err != nil {
		return nil, errors.New("execution reverted")
	}
	b.Calls = append(b.Calls, method.Name)

	switch method.Name {
	case "balanceOf":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(balanceOf(token.Balances, args[0].(common.Address)))
	case "decimals":
		return method.Outputs.Pack(token.Decimals)
	case "symbol":
		return method.Outputs.Pack(token.Symbol)
	default:
		return nil, errors.Errorf("unsupported call %s", method.Name)
	}
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.To == nil {
		return 0, errors.New("contract creation not supported")
	}
	if err := b.check(msg.From, *msg.To, msg.Value, msg.Data); err != nil {
		return 0, err
	}
	if len(msg.Data) == 0 {
		return 21000, nil
	}
	return 60000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SendErr != nil {
		return b.SendErr
	}

	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return errors.Wrap(err, "invalid signature")
	}
	if tx.ChainId().Cmp(b.chainID) != 0 {
		return errors.Errorf("wrong chain id %s", tx.ChainId())
	}
	if tx.Nonce() != b.nonces[from] {
		return errors.Errorf("nonce %d, expected %d", tx.Nonce(), b.nonces[from])
	}
	b.nonces[from]++
	b.Sent = append(b.Sent, tx)

	status := ethtypes.ReceiptStatusSuccessful
	if b.RevertAll || b.check(from, *tx.To(), tx.Value(), tx.Data()) != nil {
		status = ethtypes.ReceiptStatusFailed
	} else {
		b.apply(from, *tx.To(), tx.Value(), tx.Data())
	}

	b.receipts[tx.Hash()] = &ethtypes.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(b.Sent))),
		GasUsed:     tx.Gas(),
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	b.polls[txHash]++
	if b.polls[txHash] <= b.PendingPolls {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed++
}

// check reports whether a call would revert
func (b *Backend) check(from, to common.Address, value *big.Int, data []byte) error {
	if value != nil && value.Sign() > 0 && balanceOf(b.native, from).Cmp(value) < 0 {
		return errors.New("insufficient funds for transfer")
	}
	token, ok := b.tokens[to]
	if !ok || len(data) < 4 {
		return nil
	}
	method, err := erc20.MethodById(data[:4])
	if err != nil || method.Name != "transfer" {
		return nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return errors.New("execution reverted")
	}
	if balanceOf(token.Balances, from).Cmp(args[1].(*big.Int)) < 0 {
		return errors.New("execution reverted: ERC20: transfer amount exceeds balance")
	}
	return nil
}

func (b *Backend) apply(from, to common.Address, value *big.Int, data []byte) {
	if value != nil && value.Sign() > 0 {
		b.native[from] = new(big.Int).Sub(balanceOf(b.native, from), value)
		b.native[to] = new(big.Int).Add(balanceOf(b.native, to), value)
	}
	token, ok := b.tokens[to]
	if !ok || len(data) < 4 {
		return
	}
	method, err := erc20.MethodById(data[:4])
	if err != nil || method.Name != "transfer" {
		return
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return
	}
	recipient := args[0].(common.Address)
	amount := args[1].(*big.Int)
	token.Balances[from] = new(big.Int).Sub(balanceOf(token.Balances, from), amount)
	token.Balances[recipient] = new(big.Int).Add(balanceOf(token.Balances, recipient), amount)
}

func balanceOf(balances map[common.Address]*big.Int, account common.Address) *big.Int {
	if v, ok := balances[account]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}
