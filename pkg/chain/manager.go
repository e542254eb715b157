package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relay-swap/config"
	"relay-swap/pkg/types"
)

// Manager resolves chain IDs to configured networks and opens a fresh client per call
type Manager struct {
	config *config.Config
	dial   Dialer
	logger *logrus.Logger

	// applied to every client before use
	clientOpts []func(*EVMClient)
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithDialer replaces the ethclient dialer
func WithDialer(dial Dialer) ManagerOption {
	return func(m *Manager) {
		m.dial = dial
	}
}

// WithClientOption adjusts every EVMClient the manager opens
func WithClientOption(opt func(*EVMClient)) ManagerOption {
	return func(m *Manager) {
		m.clientOpts = append(m.clientOpts, opt)
	}
}

// NewManager creates a new chain manager
func NewManager(cfg *config.Config, logger *logrus.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &Manager{
		config: cfg,
		dial:   DialEthclient,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SupportedChains returns the configured networks in order
func (m *Manager) SupportedChains() []config.Network {
	return m.config.Networks
}

// SignerAddress derives the configured signer's address without touching the network
func (m *Manager) SignerAddress() (common.Address, error) {
	if !m.config.HasSigner() {
		return common.Address{}, config.ErrMissingPrivateKey
	}
	privateKey, err := ParsePrivateKey(m.config.PrivateKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// ExplorerTxURL returns the explorer link for hash on chainID, or ""
func (m *Manager) ExplorerTxURL(chainID int64, hash string) string {
	network, err := m.config.Network(chainID)
	if err != nil {
		return ""
	}
	return network.TxURL(hash)
}

// Open dials the network for chainID. Callers must Close the client.
func (m *Manager) Open(ctx context.Context, chainID int64, withSigner bool) (*EVMClient, error) {
	if withSigner && !m.config.HasSigner() {
		return nil, config.ErrMissingPrivateKey
	}

	network, err := m.config.Network(chainID)
	if err != nil {
		return nil, err
	}

	backend, err := m.dial(ctx, network.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to RPC endpoint for chain %d", chainID)
	}

	privateKey := ""
	if withSigner {
		privateKey = m.config.PrivateKey
	}

	client, err := NewEVMClient(backend, network, privateKey, m.logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	for _, opt := range m.clientOpts {
		opt(client)
	}

	return client, nil
}

// GetBalance returns a wallet's native or ERC-20 balance on chainID
func (m *Manager) GetBalance(ctx context.Context, chainID int64, wallet, token string) (*types.BalanceResult, error) {
	if wallet == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "wallet address is required")
	}

	client, err := m.Open(ctx, chainID, false)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.GetBalance(ctx, wallet, token)
}

// Transfer sends a native or ERC-20 transfer and waits for confirmation
func (m *Manager) Transfer(ctx context.Context, req *types.TransferRequest) (string, error) {
	if req == nil {
		return "", errors.Wrap(ErrInvalidArgument, "transfer request is nil")
	}

	client, err := m.Open(ctx, req.ChainID, true)
	if err != nil {
		return "", err
	}
	defer client.Close()

	hash, err := client.Transfer(ctx, req)
	if err != nil {
		return "", err
	}

	m.logger.WithFields(logrus.Fields{
		"txHash":   hash,
		"explorer": client.Network().TxURL(hash),
	}).Info("Transfer completed")

	return hash, nil
}

// SendTxData relays a quote step item's transaction on the chain it names
func (m *Manager) SendTxData(ctx context.Context, item *types.TxData) (string, error) {
	if item == nil {
		return "", errors.Wrap(ErrInvalidArgument, "transaction data is nil")
	}

	client, err := m.Open(ctx, item.ChainID, true)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return client.SendTxData(ctx, item)
}
