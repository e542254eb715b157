package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuote = `{
  "steps": [
    {
      "id": "deposit",
      "action": "Confirm transaction in your wallet",
      "kind": "transaction",
      "requestId": "0x1edf2158f0075fbaf75f64b8db9b7f56d1dcac1ac1eed7ccd8a44587b8e4596f",
      "depositAddress": "0x3e34b27a9bf37d8424e1a58ac7fc4d06914b76b9",
      "items": [
        {
          "status": "incomplete",
          "data": {
            "from": "0x94b4214c2F27d23208c7B66dF60AA23F802a1d25",
            "to": "0x1c7d4b196cb0c7b01d743fbc6116a902379c7238",
            "data": "0xa9059cbb",
            "value": "0",
            "chainId": 11155111,
            "gas": "59745",
            "maxFeePerGas": "135695787",
            "maxPriorityFeePerGas": "135695776"
          },
          "check": {
            "endpoint": "/intents/status?requestId=0x1edf2158f0075fbaf75f64b8db9b7f56d1dcac1ac1eed7ccd8a44587b8e4596f",
            "method": "GET"
          }
        }
      ]
    }
  ],
  "fees": {"gas": {"amount": "1"}}
}`

func TestQuoteHelpers(t *testing.T) {
	var q Quote
	require.NoError(t, json.Unmarshal([]byte(sampleQuote), &q))

	assert.Equal(t, "0x3e34b27a9bf37d8424e1a58ac7fc4d06914b76b9", q.DepositAddress())
	assert.Equal(t, "0x1edf2158f0075fbaf75f64b8db9b7f56d1dcac1ac1eed7ccd8a44587b8e4596f", q.RequestID())

	require.NotEmpty(t, q.Steps)
	require.NotEmpty(t, q.Steps[0].Items)
	item := q.Steps[0].Items[0]
	require.NotNil(t, item.Data)
	assert.Equal(t, int64(11155111), item.Data.ChainID)
	assert.Equal(t, "59745", item.Data.Gas)
	assert.Equal(t, item.Check.Endpoint, q.StatusEndpoint())
	assert.JSONEq(t, `{"gas": {"amount": "1"}}`, string(q.Fees))
}

func TestQuoteStatusEndpointFallback(t *testing.T) {
	q := Quote{Steps: []Step{{RequestID: "0xabc"}}}
	assert.Equal(t, "/intents/status?requestId=0xabc", q.StatusEndpoint())

	assert.Empty(t, (&Quote{}).StatusEndpoint())
}

func TestQuoteRequestOmitsEmptyRefund(t *testing.T) {
	body, err := json.Marshal(QuoteRequest{OriginChainID: 1, Amount: "10"})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "refundTo")
	assert.Contains(t, string(body), `"originChainId":1`)
	assert.Contains(t, string(body), `"useDepositAddress":false`)
}

func TestStatusResultKeepsPayload(t *testing.T) {
	var s StatusResult
	require.NoError(t, json.Unmarshal([]byte(`{"status":"success","foo":1}`), &s))

	assert.True(t, s.IsSuccess())
	assert.JSONEq(t, `{"status":"success","foo":1}`, string(s.Raw))

	fields, err := s.Fields()
	require.NoError(t, err)
	assert.EqualValues(t, 1, fields["foo"])

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","foo":1}`, string(out))
}

func TestStatusResultPending(t *testing.T) {
	var s StatusResult
	require.NoError(t, json.Unmarshal([]byte(`{"status":"pending"}`), &s))
	assert.False(t, s.IsSuccess())

	var nilStatus *StatusResult
	assert.False(t, nilStatus.IsSuccess())
}

func TestIsNativeCurrency(t *testing.T) {
	assert.True(t, IsNativeCurrency(""))
	assert.True(t, IsNativeCurrency(ZeroAddress))
	assert.False(t, IsNativeCurrency("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"))

	req := TransferRequest{TokenAddress: ""}
	assert.True(t, req.IsNative())
}
