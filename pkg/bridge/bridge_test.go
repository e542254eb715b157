package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-swap/config"
	"relay-swap/pkg/chain"
	"relay-swap/pkg/chain/chaintest"
	"relay-swap/pkg/client"
	"relay-swap/pkg/poller"
	"relay-swap/pkg/types"
)

var (
	usdc      = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	baseUSDC  = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	recipient = common.HexToAddress("0x94b4214c2F27d23208c7B66dF60AA23F802a1d25")
	solver    = common.HexToAddress("0x3e34b27a9bf37D8424e1a58aC7fc4D06914B76B9")
)

// relayServer answers quote, index and status calls from canned bodies
type relayServer struct {
	mu       sync.Mutex
	quote    string
	statuses []string
	indexErr bool

	quotes   []types.QuoteRequest
	indexed  []types.IndexRequest
	statusQs []string
}

func (s *relayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	body, _ := io.ReadAll(r.Body)

	switch r.URL.Path {
	case "/quote":
		var req types.QuoteRequest
		_ = json.Unmarshal(body, &req)
		s.quotes = append(s.quotes, req)
		_, _ = w.Write([]byte(s.quote))
	case "/transactions/index":
		if s.indexErr {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"indexer unavailable"}`))
			return
		}
		var req types.IndexRequest
		_ = json.Unmarshal(body, &req)
		s.indexed = append(s.indexed, req)
		_, _ = w.Write([]byte(`{"message":"Success"}`))
	case types.IntentStatusPath:
		s.statusQs = append(s.statusQs, r.URL.RawQuery)
		status := s.statuses[0]
		if len(s.statuses) > 1 {
			s.statuses = s.statuses[1:]
		}
		_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

type fixture struct {
	server  *relayServer
	backend *chaintest.Backend
	from    common.Address
	bridger *Bridger
}

func newFixture(t *testing.T) *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server := &relayServer{statuses: []string{types.StatusSuccess}}
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := &config.Config{
		BaseURL:    srv.URL,
		Source:     "relay-swap-test",
		Referrer:   config.DefaultReferrer,
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
		Networks:   config.DefaultNetworks(),
	}
	require.NoError(t, cfg.Validate())

	backend := chaintest.NewBackend(config.SepoliaChainID)
	backend.AddToken(usdc, "USDC", 6)

	manager := chain.NewManager(cfg, logger,
		chain.WithDialer(backend.Dialer()),
		chain.WithClientOption(func(c *chain.EVMClient) { c.ReceiptInterval = time.Millisecond }),
	)
	p := poller.New(
		poller.WithInterval(time.Millisecond),
		poller.WithTimeout(time.Second),
		poller.WithLogger(logger),
	)

	return &fixture{
		server:  server,
		backend: backend,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		bridger: NewBridger(client.NewRelayClient(cfg, logger), manager, p, logger),
	}
}

func (f *fixture) request(execute bool) *BridgeRequest {
	return &BridgeRequest{
		Recipient:           recipient.Hex(),
		OriginChainID:       config.SepoliaChainID,
		DestinationChainID:  config.BaseSepoliaChainID,
		OriginCurrency:      usdc.Hex(),
		DestinationCurrency: baseUSDC,
		Amount:              "0.2",
		Execute:             execute,
	}
}

func transferCalldata(to common.Address, amount int64) string {
	return "0xa9059cbb" +
		hex.EncodeToString(common.LeftPadBytes(to.Bytes(), 32)) +
		hex.EncodeToString(common.LeftPadBytes(big.NewInt(amount).Bytes(), 32))
}

func TestTransferAndIndex(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(1_000_000))

	result, err := f.bridger.TransferAndIndex(context.Background(), &types.TransferRequest{
		To:           recipient.Hex(),
		Amount:       "0.25",
		ChainID:      config.SepoliaChainID,
		TokenAddress: usdc.Hex(),
	}, "")
	require.NoError(t, err)

	assert.Len(t, result.TxHash, 66)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/"+result.TxHash, result.ExplorerURL)
	assert.JSONEq(t, `{"message":"Success"}`, string(result.Index))

	require.Len(t, f.server.indexed, 1)
	assert.Equal(t, types.IndexRequest{
		TxHash:   result.TxHash,
		ChainID:  "11155111",
		Referrer: config.DefaultReferrer,
	}, f.server.indexed[0])
	assert.Equal(t, big.NewInt(250_000), f.backend.TokenBalance(usdc, recipient))
}

func TestTransferAndIndexKeepsHashWhenIndexFails(t *testing.T) {
	f := newFixture(t)
	f.server.indexErr = true
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(1_000_000))

	result, err := f.bridger.TransferAndIndex(context.Background(), &types.TransferRequest{
		To:           recipient.Hex(),
		Amount:       "0.25",
		ChainID:      config.SepoliaChainID,
		TokenAddress: usdc.Hex(),
	}, "")
	require.Error(t, err)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	require.NotNil(t, result)
	assert.NotEmpty(t, result.TxHash)
	assert.Len(t, f.backend.Sent, 1)
}

func TestTransferAndIndexFailedTransfer(t *testing.T) {
	f := newFixture(t)

	_, err := f.bridger.TransferAndIndex(context.Background(), &types.TransferRequest{
		To:           recipient.Hex(),
		Amount:       "0.25",
		ChainID:      config.SepoliaChainID,
		TokenAddress: usdc.Hex(),
	}, "")
	assert.ErrorIs(t, err, chain.ErrInsufficientBalance)
	assert.Empty(t, f.server.indexed)
}

func TestBridgeQuoteOnlyWarnsOnShortBalance(t *testing.T) {
	f := newFixture(t)
	f.server.quote = `{"steps":[{"id":"deposit","requestId":"0xabc","items":[]}]}`
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(100_000))

	result, err := f.bridger.Bridge(context.Background(), f.request(false))
	require.NoError(t, err)

	assert.False(t, result.Sufficient)
	assert.Equal(t, "200000", result.AmountRaw)
	assert.Equal(t, "0.1", result.Balance.Formatted)
	assert.Equal(t, "/intents/status?requestId=0xabc", result.StatusEndpoint)
	assert.Nil(t, result.Status)
	assert.Empty(t, f.backend.Sent)

	require.Len(t, f.server.quotes, 1)
	q := f.server.quotes[0]
	assert.Equal(t, f.from.Hex(), q.User)
	assert.Equal(t, recipient.Hex(), q.Recipient)
	assert.Equal(t, "200000", q.Amount)
	assert.Equal(t, types.TradeTypeExactInput, q.TradeType)
	assert.EqualValues(t, config.BaseSepoliaChainID, q.DestinationChainID)
}

func TestBridgeExecuteRejectsShortBalance(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(100_000))

	_, err := f.bridger.Bridge(context.Background(), f.request(true))
	assert.ErrorIs(t, err, chain.ErrInsufficientBalance)
	assert.Empty(t, f.server.quotes)
}

func TestBridgeExecuteStepItems(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))
	f.server.statuses = []string{types.StatusPending, types.StatusPending, types.StatusSuccess}
	f.server.quote = fmt.Sprintf(`{
		"steps": [{
			"id": "deposit",
			"requestId": "0x1edf",
			"items": [
				{"status": "complete", "data": {"from": %[1]q, "to": %[2]q, "data": "0x", "value": "0", "chainId": 11155111}},
				{
					"status": "incomplete",
					"data": {
						"from": %[1]q,
						"to": %[2]q,
						"data": %[3]q,
						"value": "0",
						"chainId": 11155111,
						"gas": "59745",
						"maxFeePerGas": "135695787",
						"maxPriorityFeePerGas": "135695776"
					},
					"check": {"endpoint": "/intents/status?requestId=0x1edf", "method": "GET"}
				}
			]
		}]
	}`, f.from.Hex(), usdc.Hex(), transferCalldata(solver, 200_000))

	result, err := f.bridger.Bridge(context.Background(), f.request(true))
	require.NoError(t, err)

	require.Len(t, result.TxHashes, 1)
	require.Len(t, f.backend.Sent, 1)
	assert.Equal(t, f.backend.Sent[0].Hash().Hex(), result.TxHashes[0])
	assert.Equal(t, big.NewInt(200_000), f.backend.TokenBalance(usdc, solver))

	require.NotNil(t, result.Status)
	assert.True(t, result.Status.IsSuccess())
	assert.Equal(t, []string{"requestId=0x1edf", "requestId=0x1edf", "requestId=0x1edf"}, f.server.statusQs)
	assert.Empty(t, f.server.indexed)
}

func TestBridgeExecuteDepositAddress(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))
	f.server.quote = fmt.Sprintf(`{
		"steps": [{
			"id": "deposit",
			"requestId": "0x77",
			"depositAddress": %q,
			"items": [{"status": "incomplete", "check": {"endpoint": "/intents/status?requestId=0x77", "method": "GET"}}]
		}]
	}`, solver.Hex())

	req := f.request(true)
	req.UseDepositAddress = true
	result, err := f.bridger.Bridge(context.Background(), req)
	require.NoError(t, err)

	require.True(t, f.server.quotes[0].UseDepositAddress)
	require.Len(t, result.TxHashes, 1)
	assert.Equal(t, big.NewInt(200_000), f.backend.TokenBalance(usdc, solver))

	require.Len(t, f.server.indexed, 1)
	assert.Equal(t, result.TxHashes[0], f.server.indexed[0].TxHash)
	assert.True(t, result.Status.IsSuccess())
}

func TestBridgeExecuteTimesOut(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))
	f.server.statuses = []string{types.StatusPending}
	f.server.quote = fmt.Sprintf(`{
		"steps": [{
			"id": "deposit",
			"requestId": "0x99",
			"depositAddress": %q,
			"items": []
		}]
	}`, solver.Hex())

	f.bridger.poller = poller.New(poller.WithInterval(time.Millisecond), poller.WithTimeout(10*time.Millisecond))

	result, err := f.bridger.Bridge(context.Background(), f.request(true))
	assert.ErrorIs(t, err, poller.ErrTimeout)
	require.NotNil(t, result)
	assert.Len(t, result.TxHashes, 1)
	assert.True(t, strings.HasSuffix(result.StatusEndpoint, "requestId=0x99"))
}

func TestBridgeExecuteNothingToSend(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))
	f.server.quote = `{"steps":[{"id":"deposit","requestId":"0x1","items":[{"status":"complete"}]}]}`

	_, err := f.bridger.Bridge(context.Background(), f.request(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transaction")
	assert.Empty(t, f.server.statusQs)
}

func TestBridgeExecuteRelaysCalldataAlongsideDepositAddress(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))

	// the API appends the request id after the ABI-encoded arguments
	calldata := transferCalldata(solver, 200_000) + "1edf"
	f.server.quote = fmt.Sprintf(`{
		"steps": [{
			"id": "deposit",
			"requestId": "0x1edf",
			"depositAddress": %[1]q,
			"items": [{
				"status": "incomplete",
				"data": {"from": %[2]q, "to": %[3]q, "data": %[4]q, "value": "0", "chainId": 11155111},
				"check": {"endpoint": "/intents/status?requestId=0x1edf", "method": "GET"}
			}]
		}]
	}`, solver.Hex(), f.from.Hex(), usdc.Hex(), calldata)

	result, err := f.bridger.Bridge(context.Background(), f.request(true))
	require.NoError(t, err)

	require.Len(t, f.backend.Sent, 1)
	tx := f.backend.Sent[0]
	assert.Equal(t, usdc, *tx.To())
	assert.Equal(t, calldata, "0x"+hex.EncodeToString(tx.Data()))
	assert.Len(t, tx.Data(), 70)
	assert.Equal(t, big.NewInt(200_000), f.backend.TokenBalance(usdc, solver))

	assert.Equal(t, []string{tx.Hash().Hex()}, result.TxHashes)
	assert.Empty(t, f.server.indexed)
	assert.True(t, result.Status.IsSuccess())
}

func TestBridgeExecuteRejectsUserOtherThanSigner(t *testing.T) {
	f := newFixture(t)
	f.backend.SetTokenBalance(usdc, f.from, big.NewInt(500_000))
	f.backend.SetTokenBalance(usdc, recipient, big.NewInt(500_000))
	f.server.quote = `{"steps":[{"id":"deposit","requestId":"0xabc","items":[]}]}`

	req := f.request(true)
	req.User = recipient.Hex()

	_, err := f.bridger.Bridge(context.Background(), req)
	assert.ErrorIs(t, err, chain.ErrInvalidArgument)
	assert.Empty(t, f.server.quotes)
	assert.Empty(t, f.backend.Sent)

	// the signer itself, in any case, is accepted
	req.User = strings.ToLower(f.from.Hex())
	req.Execute = false
	_, err = f.bridger.Bridge(context.Background(), req)
	require.NoError(t, err)

	// quoting for another wallet without executing is allowed
	req.User = recipient.Hex()
	result, err := f.bridger.Bridge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0.5", result.Balance.Formatted)
	assert.Equal(t, recipient.Hex(), f.server.quotes[len(f.server.quotes)-1].User)
}
