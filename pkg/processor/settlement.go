package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/sigweihq/x402fetch/pkg/utils"
)

// settlementHeaders are checked in order; the first present one wins
var settlementHeaders = []string{constants.HeaderSettlement, constants.HeaderPaymentResponse}

// ExtractSettlement reads the settlement receipt from response headers. The
// value may be raw JSON or base64 JSON. It returns nil when no receipt is
// present.
func ExtractSettlement(get func(string) string) (*types.SettlementReceipt, error) {
	for _, name := range settlementHeaders {
		value := strings.TrimSpace(get(name))
		if value == "" {
			continue
		}

		raw := []byte(value)
		if !json.Valid(raw) {
			decoded, ok := decodeBase64JSON(value)
			if !ok {
				return nil, fmt.Errorf("malformed %s header", name)
			}
			raw = decoded
		}

		var receipt types.SettlementReceipt
		if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&receipt); err != nil {
			return nil, fmt.Errorf("malformed %s header: %w", name, err)
		}
		return &receipt, nil
	}
	return nil, nil
}

// BuildExplorerLink appends txID to the explorer base URL, keeping any query
// string (e.g. "?cluster=devnet") after the transaction segment. It returns ""
// when either input is empty.
func BuildExplorerLink(txID, explorerBase string) string {
	if txID == "" || explorerBase == "" {
		return ""
	}

	base, query, hasQuery := strings.Cut(explorerBase, "?")
	link := strings.TrimRight(base, "/") + "/" + url.PathEscape(txID)
	if hasQuery {
		link += "?" + query
	}
	return link
}

// BuildPaymentInfo summarizes a paid call. accepted reports whether the
// server accepted the retried request; a receipt that explicitly reports
// failure overrides it.
func BuildPaymentInfo(req *types.PaymentRequirement, payer string, receipt *types.SettlementReceipt, explorerBase string, accepted bool) *types.PaymentInfo {
	info := &types.PaymentInfo{
		Success:         accepted,
		Payer:           payer,
		Amount:          req.Amount,
		AmountFormatted: utils.FormatTokenAmount(req.Amount, tokenDecimals(req)),
		Network:         req.Network,
	}
	if receipt == nil {
		return info
	}

	if receipt.Success != nil && !*receipt.Success {
		info.Success = false
	}
	if receipt.Payer != "" && info.Payer == "" {
		info.Payer = receipt.Payer
	}
	info.TxHash = receipt.Transaction
	info.ExplorerLink = BuildExplorerLink(receipt.Transaction, explorerBase)
	return info
}

func tokenDecimals(req *types.PaymentRequirement) int32 {
	var extra struct {
		Decimals *uint8 `json:"decimals"`
	}
	if len(req.Extra) > 0 && json.Unmarshal(req.Extra, &extra) == nil && extra.Decimals != nil {
		return int32(*extra.Decimals)
	}
	return constants.USDCDecimals
}
