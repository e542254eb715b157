package types

import "math/big"

// ZeroAddress is how the API refers to a chain's native currency
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TransferRequest describes a token transfer. An empty TokenAddress means the native asset.
type TransferRequest struct {
	To           string
	Amount       string // human readable, e.g. "1.5"
	ChainID      int64
	Currency     string
	TokenAddress string
}

// IsNative reports whether the request moves the chain's native asset
func (r *TransferRequest) IsNative() bool {
	return IsNativeCurrency(r.TokenAddress)
}

// IsNativeCurrency reports whether a currency address denotes the native asset
func IsNativeCurrency(address string) bool {
	return address == "" || address == ZeroAddress
}

// BalanceResult is a wallet balance for one asset
type BalanceResult struct {
	Symbol    string   `json:"symbol"`
	Decimals  uint8    `json:"decimals"`
	Raw       *big.Int `json:"raw"`
	Formatted string   `json:"formatted"`
}

// IndexRequest is the body of POST /transactions/index
type IndexRequest struct {
	TxHash   string `json:"txHash"`
	ChainID  string `json:"chainId"`
	Referrer string `json:"referrer"`
}

// Chain is one entry of GET /chains
type Chain struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	DisplayName    string   `json:"displayName"`
	HTTPRPCURL     string   `json:"httpRpcUrl,omitempty"`
	ExplorerURL    string   `json:"explorerUrl,omitempty"`
	Disabled       bool     `json:"disabled,omitempty"`
	DepositEnabled bool     `json:"depositEnabled,omitempty"`
	Currency       Currency `json:"currency"`
}

// Currency describes a chain's native currency
type Currency struct {
	ID       string `json:"id,omitempty"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// ChainsResponse is the body of GET /chains
type ChainsResponse struct {
	Chains []Chain `json:"chains"`
}
