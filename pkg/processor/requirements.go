package processor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// wireRequirement accepts both the compact {to, amount} form and the x402
// {payTo, maxAmountRequired} form of a single payment option
type wireRequirement struct {
	Scheme            string          `json:"scheme"`
	Network           string          `json:"network"`
	To                string          `json:"to"`
	PayTo             string          `json:"payTo"`
	Amount            json.RawMessage `json:"amount"`
	MaxAmountRequired string          `json:"maxAmountRequired"`
	Asset             string          `json:"asset"`
	Data              string          `json:"data"`
	Resource          string          `json:"resource"`
	Description       string          `json:"description"`
	MaxTimeoutSeconds int             `json:"maxTimeoutSeconds"`
	Extra             json.RawMessage `json:"extra"`
}

// envelope is the x402 402-response body: {x402Version, error, accepts: [...]}
type envelope struct {
	X402Version int               `json:"x402Version"`
	Error       string            `json:"error"`
	Accepts     []json.RawMessage `json:"accepts"`
}

// RequirementFromResponse extracts the requirement of a 402 response. The
// X-Payment-Required header takes precedence over the body.
func RequirementFromResponse(header http.Header, body []byte) (*types.PaymentRequirement, error) {
	if h := header.Get(constants.HeaderPaymentRequired); h != "" {
		return ParseRequirement([]byte(h))
	}
	return ParseRequirement(body)
}

// ParseRequirement decodes a payment requirement. It accepts a single object,
// an array of options or an x402 envelope, either as raw JSON or base64 JSON.
// Only the first listed option is used. It returns nil when there is nothing
// to decode and a PaymentFailed error when the input is malformed.
func ParseRequirement(raw []byte) (*types.PaymentRequirement, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	if !json.Valid(raw) {
		decoded, ok := decodeBase64JSON(string(raw))
		if !ok {
			return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements: invalid JSON", nil)
		}
		raw = decoded
	}

	switch raw[0] {
	case '[':
		var options []json.RawMessage
		if err := json.Unmarshal(raw, &options); err != nil {
			return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements", err)
		}
		if len(options) == 0 {
			return nil, nil
		}
		return parseOption(options[0])
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements", err)
		}
		if _, ok := probe["accepts"]; ok {
			return parseEnvelope(raw)
		}
		return parseOption(raw)
	case 'n':
		return nil, nil
	}
	return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements: expected object or array", nil)
}

func parseEnvelope(raw []byte) (*types.PaymentRequirement, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements envelope", err)
	}
	if len(env.Accepts) == 0 {
		return nil, nil
	}
	return parseOption(env.Accepts[0])
}

func parseOption(raw json.RawMessage) (*types.PaymentRequirement, error) {
	var w wireRequirement
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, types.NewPaymentFailedError("", "Failed to parse payment requirements", err)
	}
	if w.Scheme == "" || w.Network == "" {
		return nil, nil
	}

	amount, err := decodeAmount(w.Amount)
	if err != nil {
		return nil, types.NewPaymentFailedError(w.Network, "Failed to parse payment amount", err)
	}
	if amount == "" {
		amount = w.MaxAmountRequired
	}
	to := w.To
	if to == "" {
		to = w.PayTo
	}

	req := &types.PaymentRequirement{
		Scheme:            w.Scheme,
		Network:           w.Network,
		To:                to,
		Amount:            amount,
		Asset:             w.Asset,
		Data:              w.Data,
		Resource:          w.Resource,
		Description:       w.Description,
		MaxTimeoutSeconds: w.MaxTimeoutSeconds,
	}
	if len(w.Extra) > 0 && string(w.Extra) != "null" {
		req.Extra = w.Extra
	}
	return req, nil
}

// decodeAmount accepts a JSON string or a bare integer literal
func decodeAmount(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	literal := string(raw)
	if strings.ContainsAny(literal, ".eE-+") {
		return "", fmt.Errorf("amount must be an unsigned integer, got %s", literal)
	}
	return literal, nil
}

func decodeBase64JSON(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(s)
		if err == nil && json.Valid(decoded) {
			return bytes.TrimSpace(decoded), true
		}
	}
	return nil, false
}
