package processor

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSettlement(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"success":true,"transaction":"0xfeed","network":"base"}`))

	tests := []struct {
		name    string
		headers map[string]string
		wantTx  string
		wantNil bool
		wantErr bool
	}{
		{
			name:    "raw json settlement header",
			headers: map[string]string{"X-Settlement": `{"transaction":"0xdeadbeef"}`},
			wantTx:  "0xdeadbeef",
		},
		{
			name:    "base64 payment response header",
			headers: map[string]string{"X-Payment-Response": encoded},
			wantTx:  "0xfeed",
		},
		{
			name: "settlement header wins",
			headers: map[string]string{
				"X-Settlement":       `{"transaction":"first"}`,
				"X-Payment-Response": encoded,
			},
			wantTx: "first",
		},
		{name: "absent", headers: map[string]string{}, wantNil: true},
		{name: "malformed", headers: map[string]string{"X-Settlement": "%%%"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			receipt, err := ExtractSettlement(h.Get)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, receipt)
				return
			}
			require.NotNil(t, receipt)
			assert.Equal(t, tt.wantTx, receipt.Transaction)
		})
	}
}

func TestBuildExplorerLink(t *testing.T) {
	tests := []struct {
		name string
		tx   string
		base string
		want string
	}{
		{name: "plain base", tx: "abc123", base: "https://basescan.org/tx", want: "https://basescan.org/tx/abc123"},
		{name: "trailing slash", tx: "abc123", base: "https://basescan.org/tx/", want: "https://basescan.org/tx/abc123"},
		{
			name: "query string kept after tx",
			tx:   "abc123",
			base: "https://explorer.solana.com/tx?cluster=devnet",
			want: "https://explorer.solana.com/tx/abc123?cluster=devnet",
		},
		{name: "empty tx", tx: "", base: "https://basescan.org/tx", want: ""},
		{name: "no base", tx: "abc123", base: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildExplorerLink(tt.tx, tt.base))
		})
	}
}

func TestBuildPaymentInfo(t *testing.T) {
	req := &types.PaymentRequirement{Scheme: "exact", Network: "base", To: "0xabc", Amount: "1500"}

	t.Run("settled", func(t *testing.T) {
		info := BuildPaymentInfo(req, "0xpayer", &types.SettlementReceipt{Transaction: "0xdeadbeef"}, "https://basescan.org/tx", true)
		assert.True(t, info.Success)
		assert.Equal(t, "0xpayer", info.Payer)
		assert.Equal(t, "1500", info.Amount)
		assert.True(t, decimal.RequireFromString("0.0015").Equal(info.AmountFormatted))
		assert.Equal(t, "0xdeadbeef", info.TxHash)
		assert.Equal(t, "https://basescan.org/tx/0xdeadbeef", info.ExplorerLink)
	})

	t.Run("receipt reports failure", func(t *testing.T) {
		failed := false
		info := BuildPaymentInfo(req, "0xpayer", &types.SettlementReceipt{Success: &failed, ErrorReason: "insufficient_funds"}, "", true)
		assert.False(t, info.Success)
		assert.Empty(t, info.ExplorerLink)
	})

	t.Run("not accepted", func(t *testing.T) {
		info := BuildPaymentInfo(req, "0xpayer", nil, "https://basescan.org/tx", false)
		assert.False(t, info.Success)
		assert.Empty(t, info.TxHash)
		assert.Empty(t, info.ExplorerLink)
	})

	t.Run("custom decimals", func(t *testing.T) {
		withDecimals := *req
		withDecimals.Extra = json.RawMessage(`{"decimals":2}`)
		info := BuildPaymentInfo(&withDecimals, "0xpayer", nil, "", true)
		assert.True(t, decimal.RequireFromString("15").Equal(info.AmountFormatted))
	})
}
