package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relay-swap/config"
	"relay-swap/pkg/poller"
	"relay-swap/pkg/types"
)

const (
	// SourceHeader identifies the integrating application to the API
	SourceHeader = "x-relay-source"

	defaultTimeout = 30 * time.Second
)

// APIError is returned for any non-2xx response
type APIError struct {
	Phase      string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: API error (status %d): %s", e.Phase, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Phase, e.StatusCode, e.Body)
}

// RelayClient talks to the Relay Protocol HTTP API
type RelayClient struct {
	http     *resty.Client
	referrer string
	logger   *logrus.Logger
}

// NewRelayClient creates a client with the base URL, bearer key and source header from cfg
func NewRelayClient(cfg *config.Config, logger *logrus.Logger) *RelayClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	httpClient := resty.New().
		SetHostURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader(SourceHeader, cfg.Source).
		SetTimeout(defaultTimeout)

	referrer := cfg.Referrer
	if referrer == "" {
		referrer = config.DefaultReferrer
	}

	return &RelayClient{
		http:     httpClient,
		referrer: referrer,
		logger:   logger,
	}
}

// GetChains returns the raw list of chains supported by the API
func (c *RelayClient) GetChains(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/chains")
	if err := c.checkResponse("chains", resp, err); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

// DecodeChains turns the raw GET /chains body into typed chains
func DecodeChains(raw json.RawMessage) ([]types.Chain, error) {
	var resp types.ChainsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode chains")
	}
	return resp.Chains, nil
}

// GetQuote requests a quote. TradeType and Referrer are defaulted when empty.
func (c *RelayClient) GetQuote(ctx context.Context, req *types.QuoteRequest) (*types.Quote, error) {
	if req == nil {
		return nil, errors.New("quote: request is nil")
	}

	body := *req
	if body.TradeType == "" {
		body.TradeType = types.TradeTypeExactInput
	}
	if body.Referrer == "" {
		body.Referrer = c.referrer
	}

	c.logger.WithFields(logrus.Fields{
		"originChainId":      body.OriginChainID,
		"destinationChainId": body.DestinationChainID,
		"amount":             body.Amount,
		"useDepositAddress":  body.UseDepositAddress,
	}).Debug("Requesting quote")

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/quote")
	if err := c.checkResponse("quote", resp, err); err != nil {
		return nil, err
	}

	var quote types.Quote
	if err := json.Unmarshal(resp.Body(), &quote); err != nil {
		return nil, errors.Wrap(err, "quote: failed to decode response")
	}
	return &quote, nil
}

// GetStatus fetches the status of a request by ID
func (c *RelayClient) GetStatus(ctx context.Context, requestID string) (*types.StatusResult, error) {
	if requestID == "" {
		return nil, errors.New("status: request id is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("requestId", requestID).
		Get(types.IntentStatusPath)
	return c.decodeStatus(resp, err)
}

// GetStatusByEndpoint fetches a status from a check endpoint returned in a quote
func (c *RelayClient) GetStatusByEndpoint(ctx context.Context, endpoint string) (*types.StatusResult, error) {
	if endpoint == "" {
		return nil, errors.New("status: endpoint is required")
	}

	resp, err := c.http.R().SetContext(ctx).Get(endpoint)
	return c.decodeStatus(resp, err)
}

// WaitForSuccess polls endpoint with p until the status is success
func (c *RelayClient) WaitForSuccess(ctx context.Context, endpoint string, p *poller.Poller) (*types.StatusResult, error) {
	if p == nil {
		p = poller.New(poller.WithLogger(c.logger))
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"interval": p.Interval(),
		"timeout":  p.Timeout(),
	}).Info("Waiting for request to succeed")

	return p.WaitForSuccess(ctx, func(ctx context.Context) (*types.StatusResult, error) {
		return c.GetStatusByEndpoint(ctx, endpoint)
	})
}

// IndexTransaction registers a transaction with the API for indexing and attribution
func (c *RelayClient) IndexTransaction(ctx context.Context, txHash string, chainID int64, referrer string) (json.RawMessage, error) {
	if txHash == "" {
		return nil, errors.New("index: transaction hash is required")
	}
	if referrer == "" {
		referrer = c.referrer
	}

	body := types.IndexRequest{
		TxHash:   txHash,
		ChainID:  strconv.FormatInt(chainID, 10),
		Referrer: referrer,
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/transactions/index")
	if err := c.checkResponse("index", resp, err); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"txHash":  txHash,
		"chainId": chainID,
	}).Info("Transaction indexed")

	return json.RawMessage(resp.Body()), nil
}

func (c *RelayClient) decodeStatus(resp *resty.Response, err error) (*types.StatusResult, error) {
	if err := c.checkResponse("status", resp, err); err != nil {
		return nil, err
	}

	var status types.StatusResult
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, errors.Wrap(err, "status: failed to decode response")
	}
	return &status, nil
}

// checkResponse turns transport failures and non-2xx responses into errors
func (c *RelayClient) checkResponse(phase string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.WithField("phase", phase).WithError(err).Error("Relay API request failed")
		return errors.Wrapf(err, "%s: request failed", phase)
	}

	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{
		Phase:      phase,
		StatusCode: resp.StatusCode(),
		Body:       string(resp.Body()),
	}

	// Try to extract the actual error message from the response
	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(resp.Body(), &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			apiErr.Message = message
		}
	}

	c.logger.WithFields(logrus.Fields{
		"phase":  phase,
		"status": apiErr.StatusCode,
	}).Error(apiErr.Body)

	return apiErr
}
