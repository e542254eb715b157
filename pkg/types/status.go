package types

import "encoding/json"

const (
	// IntentStatusPath is the API path for polling a request
	IntentStatusPath = "/intents/status"

	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailure = "failure"
	StatusRefund  = "refund"
)

// StatusResult is the response of the status endpoint. Raw keeps the full payload.
type StatusResult struct {
	Status             string   `json:"status"`
	Details            string   `json:"details,omitempty"`
	InTxHashes         []string `json:"inTxHashes,omitempty"`
	TxHashes           []string `json:"txHashes,omitempty"`
	UpdatedAt          int64    `json:"updatedAt,omitempty"`
	OriginChainID      int64    `json:"originChainId,omitempty"`
	DestinationChainID int64    `json:"destinationChainId,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// IsSuccess reports whether the terminal success status was reached
func (s *StatusResult) IsSuccess() bool {
	return s != nil && s.Status == StatusSuccess
}

func (s *StatusResult) UnmarshalJSON(data []byte) error {
	type plain StatusResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = StatusResult(p)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (s StatusResult) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain StatusResult
	return json.Marshal(plain(s))
}

// Fields decodes the raw payload into a generic map
func (s *StatusResult) Fields() (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if len(s.Raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(s.Raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
