package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relay-swap/pkg/chain"
	"relay-swap/pkg/poller"
	"relay-swap/pkg/types"
	"relay-swap/pkg/units"
)

// API is the part of the Relay client the flows need
type API interface {
	GetQuote(ctx context.Context, req *types.QuoteRequest) (*types.Quote, error)
	IndexTransaction(ctx context.Context, txHash string, chainID int64, referrer string) (json.RawMessage, error)
	WaitForSuccess(ctx context.Context, endpoint string, p *poller.Poller) (*types.StatusResult, error)
}

// Chains is the part of the chain manager the flows need
type Chains interface {
	SignerAddress() (common.Address, error)
	ExplorerTxURL(chainID int64, hash string) string
	GetBalance(ctx context.Context, chainID int64, wallet, token string) (*types.BalanceResult, error)
	Transfer(ctx context.Context, req *types.TransferRequest) (string, error)
	SendTxData(ctx context.Context, item *types.TxData) (string, error)
}

// Bridger runs the quote, deposit, index and wait sequences against the API and the chains
type Bridger struct {
	api    API
	chains Chains
	poller *poller.Poller
	logger *logrus.Logger
}

// NewBridger creates a Bridger. A nil poller uses the default interval and timeout.
func NewBridger(api API, chains Chains, p *poller.Poller, logger *logrus.Logger) *Bridger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if p == nil {
		p = poller.New(poller.WithLogger(logger))
	}
	return &Bridger{
		api:    api,
		chains: chains,
		poller: p,
		logger: logger,
	}
}

// TransferResult is the outcome of TransferAndIndex
type TransferResult struct {
	TxHash      string          `json:"txHash"`
	ExplorerURL string          `json:"explorerUrl,omitempty"`
	Index       json.RawMessage `json:"index,omitempty"`
}

// TransferAndIndex sends a transfer and registers its hash with the API
func (b *Bridger) TransferAndIndex(ctx context.Context, req *types.TransferRequest, referrer string) (*TransferResult, error) {
	hash, err := b.chains.Transfer(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transfer")
	}

	result := &TransferResult{
		TxHash:      hash,
		ExplorerURL: b.chains.ExplorerTxURL(req.ChainID, hash),
	}

	index, err := b.api.IndexTransaction(ctx, hash, req.ChainID, referrer)
	if err != nil {
		// the transfer is already on chain, hand the hash back with the error
		return result, errors.Wrapf(err, "failed to index transaction %s", hash)
	}
	result.Index = index

	return result, nil
}

// BridgeRequest describes a cross-chain move. Amount is in human units of the origin currency.
type BridgeRequest struct {
	User                 string
	Recipient            string
	OriginChainID        int64
	DestinationChainID   int64
	OriginCurrency       string
	DestinationCurrency  string
	Amount               string
	TradeType            string
	Referrer             string
	RefundTo             string
	UseDepositAddress    bool
	UseExternalLiquidity bool
	TopupGas             bool

	// Execute sends the deposit and waits for the request to succeed.
	// Without it only the quote is fetched.
	Execute bool
}

// BridgeResult is the outcome of Bridge
type BridgeResult struct {
	Balance        *types.BalanceResult `json:"balance"`
	AmountRaw      string               `json:"amountRaw"`
	Sufficient     bool                 `json:"sufficient"`
	Quote          *types.Quote         `json:"quote"`
	TxHashes       []string             `json:"txHashes,omitempty"`
	Index          json.RawMessage      `json:"index,omitempty"`
	StatusEndpoint string               `json:"statusEndpoint,omitempty"`
	Status         *types.StatusResult  `json:"status,omitempty"`
}

// Bridge checks the origin balance, fetches a quote and, when asked, executes it
func (b *Bridger) Bridge(ctx context.Context, req *BridgeRequest) (*BridgeResult, error) {
	if req == nil {
		return nil, errors.Wrap(chain.ErrInvalidArgument, "bridge request is nil")
	}

	user := req.User
	if user == "" || req.Execute {
		signer, err := b.chains.SignerAddress()
		if err != nil {
			return nil, errors.Wrap(err, "user is required when no signer is configured")
		}
		// the signer pays for the deposit, so it must be the quoted user
		if user != "" && !strings.EqualFold(user, signer.Hex()) {
			return nil, errors.Wrapf(chain.ErrInvalidArgument, "user %s is not the signer %s", user, signer.Hex())
		}
		user = signer.Hex()
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = user
	}

	log := b.logger.WithFields(logrus.Fields{
		"origin":      req.OriginChainID,
		"destination": req.DestinationChainID,
		"currency":    req.OriginCurrency,
		"amount":      req.Amount,
	})

	balance, err := b.chains.GetBalance(ctx, req.OriginChainID, user, req.OriginCurrency)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read origin balance")
	}

	amount, err := units.ParseUnits(req.Amount, balance.Decimals)
	if err != nil {
		return nil, errors.Wrap(chain.ErrInvalidArgument, err.Error())
	}

	result := &BridgeResult{
		Balance:    balance,
		AmountRaw:  amount.String(),
		Sufficient: balance.Raw.Cmp(amount) >= 0,
	}
	if !result.Sufficient {
		if req.Execute {
			return nil, errors.Wrapf(chain.ErrInsufficientBalance, "have %s %s, need %s %s",
				balance.Formatted, balance.Symbol, req.Amount, balance.Symbol)
		}
		log.WithField("balance", balance.Formatted).Warn("Insufficient balance")
	}

	quote, err := b.api.GetQuote(ctx, &types.QuoteRequest{
		User:                 user,
		OriginChainID:        req.OriginChainID,
		DestinationChainID:   req.DestinationChainID,
		OriginCurrency:       req.OriginCurrency,
		DestinationCurrency:  req.DestinationCurrency,
		Recipient:            recipient,
		TradeType:            req.TradeType,
		Amount:               result.AmountRaw,
		Referrer:             req.Referrer,
		UseExternalLiquidity: req.UseExternalLiquidity,
		UseDepositAddress:    req.UseDepositAddress,
		TopupGas:             req.TopupGas,
		RefundTo:             req.RefundTo,
	})
	if err != nil {
		return nil, err
	}
	result.Quote = quote
	result.StatusEndpoint = quote.StatusEndpoint()

	log.WithFields(logrus.Fields{
		"requestId": quote.RequestID(),
		"steps":     len(quote.Steps),
	}).Info("Quote received")

	if !req.Execute {
		return result, nil
	}

	if err := b.execute(ctx, req, quote, result, log); err != nil {
		return result, err
	}

	if result.StatusEndpoint == "" {
		return result, errors.New("quote has no status endpoint to wait on")
	}

	status, err := b.api.WaitForSuccess(ctx, result.StatusEndpoint, b.poller)
	if err != nil {
		return result, err
	}
	result.Status = status

	return result, nil
}

func (b *Bridger) execute(ctx context.Context, req *BridgeRequest, quote *types.Quote, result *BridgeResult, log *logrus.Entry) error {
	pending := pendingItems(quote)

	// calldata from the API is relayed as-is unless a plain deposit was asked for
	if deposit := quote.DepositAddress(); deposit != "" && (req.UseDepositAddress || len(pending) == 0) {
		log.WithField("depositAddress", deposit).Info("Transferring to deposit address")

		transfer, err := b.TransferAndIndex(ctx, &types.TransferRequest{
			To:           deposit,
			Amount:       req.Amount,
			ChainID:      req.OriginChainID,
			Currency:     result.Balance.Symbol,
			TokenAddress: req.OriginCurrency,
		}, req.Referrer)
		if transfer != nil {
			result.TxHashes = append(result.TxHashes, transfer.TxHash)
			result.Index = transfer.Index
		}
		return err
	}

	for _, p := range pending {
		log.WithFields(logrus.Fields{
			"step": p.step,
			"to":   p.data.To,
		}).Info("Sending step transaction")

		hash, err := b.chains.SendTxData(ctx, p.data)
		if err != nil {
			return errors.Wrapf(err, "failed to send %s step", p.step)
		}
		result.TxHashes = append(result.TxHashes, hash)
	}

	if len(result.TxHashes) == 0 {
		return errors.New("quote has no transaction to send")
	}
	return nil
}

type pendingItem struct {
	step string
	data *types.TxData
}

// pendingItems lists the incomplete step items that carry a transaction, in order
func pendingItems(quote *types.Quote) []pendingItem {
	var pending []pendingItem
	for _, step := range quote.Steps {
		for _, item := range step.Items {
			if item.Status == types.ItemStatusComplete || item.Data == nil {
				continue
			}
			pending = append(pending, pendingItem{step: step.ID, data: item.Data})
		}
	}
	return pending
}
