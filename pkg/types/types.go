package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	x402types "github.com/coinbase/x402/go/pkg/types"
	"github.com/shopspring/decimal"
)

// PaymentRequirement is the normalized form of a single payment option
// advertised by a 402 response. Amounts are atomic units as a decimal string.
type PaymentRequirement struct {
	Scheme            string          `json:"scheme"`
	Network           string          `json:"network"`
	To                string          `json:"to"`
	Amount            string          `json:"amount"`
	Asset             string          `json:"asset,omitempty"`
	Data              string          `json:"data,omitempty"`
	Resource          string          `json:"resource,omitempty"`
	Description       string          `json:"description,omitempty"`
	MaxTimeoutSeconds int             `json:"maxTimeoutSeconds,omitempty"`
	Extra             json.RawMessage `json:"extra,omitempty"`
}

// ExtraString returns a string field from the requirement's extra object,
// or "" if absent.
func (r *PaymentRequirement) ExtraString(key string) string {
	if len(r.Extra) == 0 {
		return ""
	}
	var extra map[string]any
	if err := json.Unmarshal(r.Extra, &extra); err != nil {
		return ""
	}
	s, _ := extra[key].(string)
	return s
}

// PaymentAuthorization is the signed token attached to the retried request.
// Payload holds the chain-specific proof (EvmPayload or ExactSolanaPayload).
type PaymentAuthorization struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	To          string          `json:"to"`
	Amount      string          `json:"amount"`
	Payer       string          `json:"payer"`
	Payload     json.RawMessage `json:"payload"`
}

// Encode serializes the authorization into its header form (base64 JSON).
func (a *PaymentAuthorization) Encode() (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment authorization: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePaymentAuthorization parses an X-Payment header value.
func DecodePaymentAuthorization(header string) (*PaymentAuthorization, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid payment header encoding: %w", err)
	}
	var auth PaymentAuthorization
	if err := json.Unmarshal(raw, &auth); err != nil {
		return nil, fmt.Errorf("invalid payment header payload: %w", err)
	}
	return &auth, nil
}

// EvmPayload is the EIP-3009 proof carried by an EVM authorization.
// Data is the ABI encoding of (address to, uint256 amount).
type EvmPayload struct {
	Signature     string                                  `json:"signature"`
	Authorization *x402types.ExactEvmPayloadAuthorization `json:"authorization"`
	Data          string                                  `json:"data"`
}

// ExactSolanaPayload represents the Solana-specific payment payload
type ExactSolanaPayload struct {
	Transaction string `json:"transaction"` // Base64-encoded partially signed transaction
	FeePayer    string `json:"feePayer,omitempty"`
}

// SettlementReceipt is the settlement confirmation returned in the
// retried response's headers.
type SettlementReceipt struct {
	Success     *bool  `json:"success,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// PaymentInfo is the caller-visible summary of a paid request
type PaymentInfo struct {
	Success         bool            `json:"success"`
	Payer           string          `json:"payer"`
	Amount          string          `json:"amount"`
	AmountFormatted decimal.Decimal `json:"amountFormatted"`
	Network         string          `json:"network"`
	TxHash          string          `json:"txHash"`
	ExplorerLink    string          `json:"explorerLink"`
}

// RequestOptions carries the caller's request shape through both attempts
type RequestOptions struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Result is returned by a paid request. Payment is nil when no 402 occurred.
type Result struct {
	Response *http.Response
	Payment  *PaymentInfo
}
