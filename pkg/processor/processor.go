package processor

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sigweihq/x402fetch/pkg/chains"
	"github.com/sigweihq/x402fetch/pkg/chains/evm"
	"github.com/sigweihq/x402fetch/pkg/chains/svm"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/metrics"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/sigweihq/x402fetch/pkg/utils"
)

var validate = validator.New()

// Config holds what a PaymentProcessor needs to pay for requests on one network
type Config struct {
	Network     string        `validate:"required"`
	PrivateKey  string        `validate:"-"`
	ExplorerURL string        `validate:"omitempty,url"`
	RPCEndpoint string        `validate:"omitempty,url"`
	// Timeout bounds a whole Execute call: both attempts and the signing in
	// between. Zero uses constants.DefaultRequestTimeout.
	Timeout time.Duration `validate:"gte=0"`

	// Optional overrides. Signer takes precedence over PrivateKey.
	HTTPClient *http.Client     `validate:"-"`
	Signer     chains.Signer    `validate:"-"`
	Registry   *chains.Registry `validate:"-"`
	Metrics    metrics.Recorder `validate:"-"`
}

// PaymentProcessor performs HTTP requests and settles x402 payment challenges
// with a single signer. It holds no per-call state and is safe for concurrent use.
type PaymentProcessor struct {
	network     string
	explorerURL string
	signer      chains.Signer
	httpClient  *http.Client
	timeout     time.Duration
	metrics     metrics.Recorder

	logger *slog.Logger
}

// NewPaymentProcessor validates cfg and builds the signer for its network family
func NewPaymentProcessor(cfg Config, logger *slog.Logger) (*PaymentProcessor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, types.NewConfigurationError("invalid payment configuration", err)
	}

	family, err := chains.ParseFamily(cfg.Network)
	if err != nil {
		return nil, types.NewConfigurationError("unsupported network "+cfg.Network, err)
	}

	signer := cfg.Signer
	if signer == nil {
		if cfg.PrivateKey == "" {
			return nil, types.NewConfigurationError("private key is required", nil)
		}
		registry := cfg.Registry
		if registry == nil {
			registry = defaultRegistry()
		}
		signer, err = registry.CreateSigner(cfg.PrivateKey, family, chains.SignerOptions{
			Network:     cfg.Network,
			RPCEndpoint: cfg.RPCEndpoint,
		})
		if err != nil {
			return nil, types.NewConfigurationError("failed to create signer", err)
		}
	}
	if signer.Family() != family {
		return nil, types.NewConfigurationError(
			"signer family "+string(signer.Family())+" does not match network "+cfg.Network, nil)
	}

	explorerURL := cfg.ExplorerURL
	if explorerURL == "" {
		explorerURL = constants.ExplorerURLs[chains.NetworkName(cfg.Network)]
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.CreateHTTPClientWithTimeouts(cfg.Timeout)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = constants.DefaultRequestTimeout
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	logger.Info("Payment processor initialized",
		"network", cfg.Network,
		"family", family,
		"payer", signer.Address())

	return &PaymentProcessor{
		network:     cfg.Network,
		explorerURL: explorerURL,
		signer:      signer,
		httpClient:  httpClient,
		timeout:     timeout,
		metrics:     recorder,
		logger:      logger,
	}, nil
}

// defaultRegistry returns the global registry with the built-in families registered
func defaultRegistry() *chains.Registry {
	registry := chains.InitGlobalRegistry()
	if !registry.IsSupported(chains.FamilyEVM) {
		evm.InitEVMSigners()
	}
	if !registry.IsSupported(chains.FamilySolana) {
		svm.InitSVMSigners()
	}
	return registry
}

func (p *PaymentProcessor) Network() string {
	return p.network
}

func (p *PaymentProcessor) Signer() chains.Signer {
	return p.signer
}

// Execute sends the request and, if the server answers 402, pays and retries
// exactly once. Responses other than 402 are returned untouched with a nil
// Payment. A second 402 is returned with Payment.Success false and no error.
//
// The configured Timeout covers the whole call. The deadline is released when
// the caller closes the returned response body.
func (p *PaymentProcessor) Execute(ctx context.Context, url string, opts *types.RequestOptions) (result *types.Result, err error) {
	if opts == nil {
		opts = &types.RequestOptions{}
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer func() {
		if result == nil || result.Response == nil {
			cancel()
			return
		}
		result.Response.Body = &cancelOnClose{ReadCloser: result.Response.Body, cancel: cancel}
	}()
	callID := uuid.NewString()
	logger := p.logger.With("callID", callID, "url", url)
	labels := map[string]string{"network": p.network}

	start := time.Now()
	defer func() {
		p.metrics.ObserveLatency(metrics.OperationExecute, time.Since(start), labels)
	}()

	resp, err := p.send(ctx, url, opts, "")
	if err != nil {
		logger.Error("Request failed", "error", err)
		return nil, types.NewNetworkError("request failed", 0, err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return &types.Result{Response: resp}, nil
	}

	p.metrics.IncCounter(metrics.EventPaymentRequired, labels)
	body, err := utils.ReadLimitedBody(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, p.fail(logger, labels, types.NewNetworkError("failed to read 402 response", resp.StatusCode, err))
	}

	req, err := RequirementFromResponse(resp.Header, body)
	if err != nil {
		return nil, p.fail(logger, labels, err)
	}
	if req == nil {
		return nil, p.fail(logger, labels, types.NewPaymentFailedError("", "No payment requirements found in 402 response", nil))
	}
	logger.Info("Payment required",
		"network", req.Network,
		"scheme", req.Scheme,
		"to", req.To,
		"amount", req.Amount)

	auth, err := BuildAuthorization(ctx, req, p.signer)
	if err != nil {
		return nil, p.fail(logger, labels, err)
	}
	header, err := auth.Encode()
	if err != nil {
		return nil, p.fail(logger, labels, types.NewPaymentFailedError(req.Network, "Failed to encode payment authorization", err))
	}

	retry, err := p.send(ctx, url, opts, header)
	if err != nil {
		return nil, p.fail(logger, labels, types.NewNetworkError("paid request failed", 0, err))
	}

	switch {
	case retry.StatusCode == http.StatusPaymentRequired:
		logger.Warn("Payment not accepted, server still requires payment", "network", req.Network)
		p.metrics.IncCounter(metrics.EventPaymentUnsettled, labels)
		return &types.Result{
			Response: retry,
			Payment:  BuildPaymentInfo(req, p.signer.Address(), nil, p.explorerURL, false),
		}, nil
	case retry.StatusCode < 200 || retry.StatusCode >= 300:
		drain(retry.Body)
		return nil, p.fail(logger, labels, types.NewNetworkError("Payment request failed: "+retry.Status, retry.StatusCode, nil))
	}

	receipt, err := ExtractSettlement(retry.Header.Get)
	if err != nil {
		logger.Warn("Ignoring malformed settlement receipt", "error", err)
	}
	info := BuildPaymentInfo(req, p.signer.Address(), receipt, p.explorerURL, true)

	if info.TxHash != "" {
		p.metrics.IncCounter(metrics.EventPaymentSettled, labels)
		logger.Info("Payment settled", "txHash", info.TxHash, "explorer", info.ExplorerLink)
	} else {
		p.metrics.IncCounter(metrics.EventPaymentUnsettled, labels)
		logger.Info("Payment accepted without settlement receipt")
	}
	return &types.Result{Response: retry, Payment: info}, nil
}

// send issues one attempt. User headers are applied first so the payment
// header cannot be overridden.
func (p *PaymentProcessor) send(ctx context.Context, url string, opts *types.RequestOptions, paymentHeader string) (*http.Response, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if len(opts.Body) > 0 && req.Header.Get(constants.HeaderContentType) == "" && utils.IsJSON(opts.Body) {
		req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	if paymentHeader != "" {
		req.Header.Set(constants.HeaderPayment, paymentHeader)
	}

	return p.httpClient.Do(req)
}

func (p *PaymentProcessor) fail(logger *slog.Logger, labels map[string]string, err error) error {
	p.metrics.IncCounter(metrics.EventPaymentFailed, labels)
	logger.Error("Payment failed", "error", err)
	return err
}

// cancelOnClose releases the call's deadline once the caller is done with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, constants.MaxResponseBodySize))
	body.Close()
}
