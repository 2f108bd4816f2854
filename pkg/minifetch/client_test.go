package minifetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/sigweihq/x402fetch/pkg/chains/evm"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecipient = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"

// fakeAPI stands in for the Minifetch API: a free preflight endpoint and paid
// extraction endpoints that demand an x402 payment
type fakeAPI struct {
	t *testing.T

	mu          sync.Mutex
	allowed     bool
	extractCode int
	paidCalls   int
	queries     map[string]url.Values
}

func (f *fakeAPI) requirement() *types.PaymentRequirement {
	return &types.PaymentRequirement{
		Scheme:  constants.SchemeExact,
		Network: constants.NetworkBaseSepolia,
		To:      testRecipient,
		Amount:  "1000",
		Asset:   constants.USDCAddressBaseSepolia,
		Extra:   json.RawMessage(`{"name":"USDC","version":"2"}`),
	}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.queries[r.URL.Path] = r.URL.Query()
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == preflightPath {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": []map[string]any{{
				"data": map[string]any{"url": r.URL.Query().Get("url"), "allowed": f.allowed, "message": "Disallowed by robots.txt"},
			}},
		})
		return
	}

	req := f.requirement()
	header := r.Header.Get(constants.HeaderPayment)
	if header == "" {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"x402Version": 1,
			"error":       "X-PAYMENT header is required",
			"accepts": []map[string]any{{
				"scheme":            req.Scheme,
				"network":           req.Network,
				"maxAmountRequired": req.Amount,
				"payTo":             req.To,
				"asset":             req.Asset,
				"resource":          "http://" + r.Host + r.URL.Path,
				"maxTimeoutSeconds": 60,
				"extra":             req.Extra,
			}},
		})
		return
	}

	auth, err := types.DecodePaymentAuthorization(header)
	if !assert.NoError(f.t, err) || !assert.NoError(f.t, evm.VerifyAuthorization(auth, req)) {
		w.WriteHeader(http.StatusPaymentRequired)
		return
	}

	f.mu.Lock()
	f.paidCalls++
	f.mu.Unlock()

	if f.extractCode != 0 && f.extractCode != http.StatusOK {
		w.WriteHeader(f.extractCode)
		_, _ = w.Write([]byte(`{"error":"upstream fetch failed"}`))
		return
	}

	receipt, _ := json.Marshal(map[string]any{"success": true, "transaction": "0xabc", "network": req.Network})
	w.Header().Set(constants.HeaderPaymentResponse, base64.StdEncoding.EncodeToString(receipt))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"results": []map[string]any{{"data": map[string]any{"title": "Example Domain"}}},
	})
}

func newTestClient(t *testing.T, allowed bool) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{t: t, allowed: allowed, queries: map[string]url.Values{}}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		Network:    constants.NetworkBaseSepolia,
		PrivateKey: testEVMKey,
		APIBaseURL: server.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client, api
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(ClientConfig{Network: "base"}, nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrConfiguration))
}

func TestPreflightURLCheck(t *testing.T) {
	client, api := newTestClient(t, true)

	check, err := client.PreflightURLCheck(context.Background(), "example.com/page")
	require.NoError(t, err)

	allowed, _ := check.Allowed()
	assert.True(t, allowed)
	assert.Equal(t, "https://example.com/page", api.queries[preflightPath].Get("url"))
	assert.Zero(t, api.paidCalls)
}

func TestPreflightURLCheck_Errors(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		client, api := newTestClient(t, true)
		_, err := client.PreflightURLCheck(context.Background(), "http://192.168.1.1/admin")
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.ErrInvalidInput))
		assert.Empty(t, api.queries)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{PrivateKey: testEVMKey, APIBaseURL: server.URL}, nil)
		require.NoError(t, err)

		_, err = client.PreflightURLCheck(context.Background(), "example.com")
		require.Error(t, err)

		var perr *types.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, types.ErrNetwork, perr.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	})
}

func TestExtractURLMetadata(t *testing.T) {
	client, api := newTestClient(t, true)

	resp, err := client.ExtractURLMetadata(context.Background(), "https://example.com", MetadataOptions{IncludeResponseBody: true})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Example Domain", resp.Results[0]["data"].(map[string]any)["title"])

	require.NotNil(t, resp.Payment)
	assert.True(t, resp.Payment.Success)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", resp.Payment.Payer)
	assert.Equal(t, "0xabc", resp.Payment.TxHash)
	assert.Equal(t, "https://sepolia.basescan.org/tx/0xabc", resp.Payment.ExplorerLink)
	assert.Equal(t, "base-sepolia", resp.Payment.Network)

	query := api.queries[extractMetadataPath]
	assert.Equal(t, "https://example.com", query.Get("url"))
	assert.Equal(t, "true", query.Get("includeResponseBody"))
	assert.Equal(t, 1, api.paidCalls)
}

func TestExtractEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		call      func(*Client) (*types.PaidEndpointResponse, error)
		wantQuery map[string]string
	}{
		{
			name: "links",
			path: extractLinksPath,
			call: func(c *Client) (*types.PaidEndpointResponse, error) {
				return c.ExtractURLLinks(context.Background(), "example.com")
			},
		},
		{
			name: "preview",
			path: extractPreviewPath,
			call: func(c *Client) (*types.PaidEndpointResponse, error) {
				return c.ExtractURLPreview(context.Background(), "example.com")
			},
		},
		{
			name: "content with media urls",
			path: extractContentPath,
			call: func(c *Client) (*types.PaidEndpointResponse, error) {
				return c.ExtractURLContent(context.Background(), "example.com", ContentOptions{IncludeMediaURLs: true})
			},
			wantQuery: map[string]string{"includeMediaUrls": "true"},
		},
		{
			name: "metadata without body",
			path: extractMetadataPath,
			call: func(c *Client) (*types.PaidEndpointResponse, error) {
				return c.ExtractURLMetadata(context.Background(), "example.com", MetadataOptions{})
			},
			wantQuery: map[string]string{"includeResponseBody": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, api := newTestClient(t, true)

			resp, err := tt.call(client)
			require.NoError(t, err)
			require.NotNil(t, resp.Payment)
			assert.True(t, resp.Payment.Success)

			query := api.queries[tt.path]
			require.NotNil(t, query)
			assert.Equal(t, "https://example.com", query.Get("url"))
			for k, v := range tt.wantQuery {
				assert.Equal(t, v, query.Get(k), k)
			}
		})
	}
}

func TestExtract_FailedAfterPayment(t *testing.T) {
	client, api := newTestClient(t, true)
	api.extractCode = http.StatusBadGateway

	_, err := client.ExtractURLPreview(context.Background(), "example.com")
	require.Error(t, err)

	var perr *types.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrExtractionFailed, perr.Kind)
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.Contains(t, perr.Error(), "upstream fetch failed")
}

func TestExtract_InvalidURL(t *testing.T) {
	client, api := newTestClient(t, true)

	for _, target := range []string{"", "ftp://example.com", "localhost:8080", "https://example.com/file.pdf"} {
		_, err := client.ExtractURLLinks(context.Background(), target)
		require.Error(t, err, target)
		assert.True(t, types.IsKind(err, types.ErrInvalidInput), target)
	}
	assert.Empty(t, api.queries)
}

func TestCheckAndExtract(t *testing.T) {
	t.Run("blocked by robots", func(t *testing.T) {
		client, api := newTestClient(t, false)

		_, err := client.CheckAndExtractURLLinks(context.Background(), "example.com")
		require.Error(t, err)

		var perr *types.Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, types.ErrRobotsBlocked, perr.Kind)
		assert.Equal(t, "example.com", perr.URL)
		assert.Equal(t, "Disallowed by robots.txt", perr.Message)
		assert.Zero(t, api.paidCalls)
		assert.NotContains(t, api.queries, extractLinksPath)
	})

	t.Run("allowed", func(t *testing.T) {
		client, api := newTestClient(t, true)

		checks := []func() (*types.PaidEndpointResponse, error){
			func() (*types.PaidEndpointResponse, error) {
				return client.CheckAndExtractURLMetadata(context.Background(), "example.com", MetadataOptions{})
			},
			func() (*types.PaidEndpointResponse, error) {
				return client.CheckAndExtractURLLinks(context.Background(), "example.com")
			},
			func() (*types.PaidEndpointResponse, error) {
				return client.CheckAndExtractURLPreview(context.Background(), "example.com")
			},
			func() (*types.PaidEndpointResponse, error) {
				return client.CheckAndExtractURLContent(context.Background(), "example.com", ContentOptions{})
			},
		}
		for _, check := range checks {
			resp, err := check()
			require.NoError(t, err)
			assert.True(t, resp.Payment.Success)
		}
		assert.Equal(t, len(checks), api.paidCalls)
	})
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  *HTTPError
		want string
	}{
		{name: "status only", err: &HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}, want: "HTTP 502: 502 Bad Gateway"},
		{name: "json error", err: &HTTPError{StatusCode: 400, Body: []byte(`{"error":"bad url"}`)}, want: "HTTP 400: bad url"},
		{
			name: "json error with message",
			err:  &HTTPError{StatusCode: 400, Body: []byte(`{"error":"bad url","message":"missing host"}`)},
			want: "HTTP 400: bad url - missing host",
		},
		{
			name: "plain body",
			err:  &HTTPError{StatusCode: 500, Status: "500 Internal Server Error", Body: []byte("oops")},
			want: "HTTP 500: 500 Internal Server Error - oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	assert.True(t, (&HTTPError{StatusCode: http.StatusPaymentRequired}).IsPaymentRequired())
	assert.True(t, (&HTTPError{StatusCode: http.StatusTooManyRequests}).IsRateLimited())
}
