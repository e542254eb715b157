package types

import "encoding/json"

const (
	// TradeTypeExactInput fixes the amount sent on the origin chain
	TradeTypeExactInput = "EXACT_INPUT"
	// TradeTypeExactOutput fixes the amount received on the destination chain
	TradeTypeExactOutput = "EXACT_OUTPUT"

	ItemStatusComplete = "complete"
)

// QuoteRequest is the body of POST /quote
type QuoteRequest struct {
	User                 string `json:"user"`
	OriginChainID        int64  `json:"originChainId"`
	DestinationChainID   int64  `json:"destinationChainId"`
	OriginCurrency       string `json:"originCurrency"`
	DestinationCurrency  string `json:"destinationCurrency"`
	Recipient            string `json:"recipient"`
	TradeType            string `json:"tradeType"`
	Amount               string `json:"amount"` // smallest unit of the origin currency
	Referrer             string `json:"referrer"`
	UseExternalLiquidity bool   `json:"useExternalLiquidity"`
	UseDepositAddress    bool   `json:"useDepositAddress"`
	TopupGas             bool   `json:"topupGas"`
	RefundTo             string `json:"refundTo,omitempty"`
}

// Quote is the response of POST /quote. Only the parts the CLI acts on are typed.
type Quote struct {
	Steps   []Step          `json:"steps"`
	Fees    json.RawMessage `json:"fees,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Step is one stage of executing a quote, e.g. an approval or the deposit itself
type Step struct {
	ID             string     `json:"id"`
	Action         string     `json:"action,omitempty"`
	Description    string     `json:"description,omitempty"`
	Kind           string     `json:"kind,omitempty"`
	RequestID      string     `json:"requestId,omitempty"`
	DepositAddress string     `json:"depositAddress,omitempty"`
	Items          []StepItem `json:"items"`
}

// StepItem carries a ready-to-sign transaction and where to poll for its progress
type StepItem struct {
	Status string  `json:"status"`
	Data   *TxData `json:"data,omitempty"`
	Check  *Check  `json:"check,omitempty"`
}

// TxData holds raw transaction fields as returned by the API
type TxData struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	ChainID              int64  `json:"chainId"`
	Gas                  string `json:"gas,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// Check describes the status endpoint for a step item
type Check struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
}

// DepositAddress returns the first deposit address found in the steps
func (q *Quote) DepositAddress() string {
	for _, s := range q.Steps {
		if s.DepositAddress != "" {
			return s.DepositAddress
		}
	}
	return ""
}

// RequestID returns the first request ID found in the steps
func (q *Quote) RequestID() string {
	for _, s := range q.Steps {
		if s.RequestID != "" {
			return s.RequestID
		}
	}
	return ""
}

// StatusEndpoint returns the last check endpoint in the quote, falling back to
// the intent status endpoint for the request ID.
func (q *Quote) StatusEndpoint() string {
	endpoint := ""
	for _, s := range q.Steps {
		for _, item := range s.Items {
			if item.Check != nil && item.Check.Endpoint != "" {
				endpoint = item.Check.Endpoint
			}
		}
	}
	if endpoint != "" {
		return endpoint
	}
	if id := q.RequestID(); id != "" {
		return IntentStatusPath + "?requestId=" + id
	}
	return ""
}
