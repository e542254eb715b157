package chain_test

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-swap/config"
	"relay-swap/pkg/chain"
	"relay-swap/pkg/chain/chaintest"
	"relay-swap/pkg/types"
)

func newManager(t *testing.T, privateKey string, dial chain.Dialer) *chain.Manager {
	cfg := &config.Config{
		BaseURL:    config.DefaultBaseURL,
		PrivateKey: privateKey,
		Networks:   config.DefaultNetworks(),
	}
	require.NoError(t, cfg.Validate())

	return chain.NewManager(cfg, quietLogger(),
		chain.WithDialer(dial),
		chain.WithClientOption(func(c *chain.EVMClient) { c.ReceiptInterval = time.Millisecond }),
	)
}

func failingDialer(t *testing.T) chain.Dialer {
	return func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		t.Fatalf("unexpected dial to %s", rpcURL)
		return nil, nil
	}
}

func TestManagerTransferWithoutKey(t *testing.T) {
	m := newManager(t, "", failingDialer(t))

	_, err := m.Transfer(context.Background(), &types.TransferRequest{
		To:      recipient.Hex(),
		Amount:  "1",
		ChainID: config.SepoliaChainID,
	})
	assert.ErrorIs(t, err, config.ErrMissingPrivateKey)

	_, err = m.SignerAddress()
	assert.ErrorIs(t, err, config.ErrMissingPrivateKey)
}

func TestManagerUnknownChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	m := newManager(t, hex.EncodeToString(crypto.FromECDSA(key)), failingDialer(t))

	_, err := m.Transfer(context.Background(), &types.TransferRequest{
		To:      recipient.Hex(),
		Amount:  "1",
		ChainID: 1,
	})
	assert.ErrorIs(t, err, config.ErrUnknownChain)

	_, err = m.GetBalance(context.Background(), 1, recipient.Hex(), "")
	assert.ErrorIs(t, err, config.ErrUnknownChain)
}

func TestManagerBalanceRequiresWallet(t *testing.T) {
	m := newManager(t, "", failingDialer(t))

	_, err := m.GetBalance(context.Background(), config.SepoliaChainID, "", "")
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)
}

func TestManagerRoutesByChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	from := crypto.PubkeyToAddress(key.PublicKey)

	backends := map[string]*chaintest.Backend{
		config.DefaultNetworks()[0].RPCURL: chaintest.NewBackend(config.SepoliaChainID),
		config.DefaultNetworks()[1].RPCURL: chaintest.NewBackend(config.BaseSepoliaChainID),
	}
	for _, b := range backends {
		b.AddToken(usdc, "USDC", 6)
		b.SetTokenBalance(usdc, from, big.NewInt(3_000_000))
	}
	base := backends[config.DefaultNetworks()[1].RPCURL]

	m := newManager(t, hex.EncodeToString(crypto.FromECDSA(key)), func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		b, ok := backends[rpcURL]
		if !ok {
			return nil, errors.New("no such endpoint")
		}
		return b, nil
	})

	addr, err := m.SignerAddress()
	require.NoError(t, err)
	assert.Equal(t, from, addr)

	hash, err := m.Transfer(context.Background(), &types.TransferRequest{
		To:           recipient.Hex(),
		Amount:       "1",
		ChainID:      config.BaseSepoliaChainID,
		TokenAddress: usdc.Hex(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	require.Len(t, base.Sent, 1)
	assert.Equal(t, 1, base.Closed)
	assert.Equal(t, "https://sepolia.basescan.org/tx/"+hash, m.ExplorerTxURL(config.BaseSepoliaChainID, hash))

	balance, err := m.GetBalance(context.Background(), config.BaseSepoliaChainID, recipient.Hex(), usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, "1", balance.Formatted)
	assert.Equal(t, 2, base.Closed)

	for url, b := range backends {
		if b != base {
			assert.Empty(t, b.Sent, url)
		}
	}
}

func TestManagerDialError(t *testing.T) {
	m := newManager(t, "", func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		return nil, errors.New("connection refused")
	})

	_, err := m.GetBalance(context.Background(), config.SepoliaChainID, recipient.Hex(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestManagerSendTxDataUsesItemChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	from := crypto.PubkeyToAddress(key.PublicKey)

	backend := chaintest.NewBackend(config.SepoliaChainID)
	backend.SetNative(from, big.NewInt(10_000))

	var dialed string
	m := newManager(t, hex.EncodeToString(crypto.FromECDSA(key)), func(ctx context.Context, rpcURL string) (chain.Backend, error) {
		dialed = rpcURL
		return backend, nil
	})

	_, err := m.SendTxData(context.Background(), &types.TxData{
		From:    from.Hex(),
		To:      recipient.Hex(),
		Value:   "10",
		ChainID: config.SepoliaChainID,
	})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultNetworks()[0].RPCURL, dialed)
	assert.Len(t, m.SupportedChains(), 2)
}
