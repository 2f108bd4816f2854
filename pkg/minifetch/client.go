package minifetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sigweihq/x402fetch/pkg/processor"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/sigweihq/x402fetch/pkg/utils"
)

// Endpoint paths relative to the API base URL
const (
	preflightPath       = "/api/v1/free/preflight/url-check"
	extractMetadataPath = "/api/v1/x402/extract/url-metadata"
	extractLinksPath    = "/api/v1/x402/extract/url-links"
	extractPreviewPath  = "/api/v1/x402/extract/url-preview"
	extractContentPath  = "/api/v1/x402/extract/url-content"
)

// MetadataOptions tunes ExtractURLMetadata
type MetadataOptions struct {
	IncludeResponseBody bool
}

// ContentOptions tunes ExtractURLContent
type ContentOptions struct {
	IncludeMediaURLs bool
}

// Client calls the Minifetch extraction API, paying for each extraction with
// x402. It is safe for concurrent use.
type Client struct {
	config     ClientConfig
	processor  *processor.PaymentProcessor
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and builds the payment processor for its network
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := InitConfig(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = utils.CreateHTTPClientWithTimeouts(cfg.Timeout)
	}

	p, err := processor.NewPaymentProcessor(processor.Config{
		Network:     cfg.Network,
		PrivateKey:  cfg.PrivateKey,
		ExplorerURL: cfg.ExplorerURL,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
		Metrics:     cfg.Metrics,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		processor:  p,
		httpClient: httpClient,
		logger:     logger.With("component", "minifetch"),
	}, nil
}

// Config returns the initialized configuration
func (c *Client) Config() ClientConfig {
	return c.config
}

// Payer returns the address that pays for extractions
func (c *Client) Payer() string {
	return c.processor.Signer().Address()
}

// PreflightURLCheck asks whether robots.txt allows fetching targetURL. It is
// free and never triggers a payment.
func (c *Client) PreflightURLCheck(ctx context.Context, targetURL string) (*types.PreflightCheckResponse, error) {
	normalized, err := utils.ValidateAndNormalizeURL(targetURL)
	if err != nil {
		return nil, err
	}

	var result types.PreflightCheckResponse
	if err := getJSON(ctx, c.httpClient, c.endpoint(preflightPath, url.Values{"url": {normalized}}), &result); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return nil, types.NewNetworkError("Preflight check failed", httpErr.StatusCode, httpErr)
		}
		return nil, types.NewNetworkError("Preflight check failed", 0, err)
	}
	return &result, nil
}

// ExtractURLMetadata extracts page metadata (paid)
func (c *Client) ExtractURLMetadata(ctx context.Context, targetURL string, opts MetadataOptions) (*types.PaidEndpointResponse, error) {
	params := url.Values{}
	if opts.IncludeResponseBody {
		params.Set("includeResponseBody", "true")
	}
	return c.extract(ctx, "Metadata", extractMetadataPath, targetURL, params)
}

// ExtractURLLinks extracts the links of a page (paid)
func (c *Client) ExtractURLLinks(ctx context.Context, targetURL string) (*types.PaidEndpointResponse, error) {
	return c.extract(ctx, "Links", extractLinksPath, targetURL, url.Values{})
}

// ExtractURLPreview extracts title, description and image of a page (paid)
func (c *Client) ExtractURLPreview(ctx context.Context, targetURL string) (*types.PaidEndpointResponse, error) {
	return c.extract(ctx, "Preview", extractPreviewPath, targetURL, url.Values{})
}

// ExtractURLContent extracts page content as markdown (paid)
func (c *Client) ExtractURLContent(ctx context.Context, targetURL string, opts ContentOptions) (*types.PaidEndpointResponse, error) {
	params := url.Values{}
	if opts.IncludeMediaURLs {
		params.Set("includeMediaUrls", "true")
	}
	return c.extract(ctx, "Content", extractContentPath, targetURL, params)
}

// CheckAndExtractURLMetadata runs the preflight check first and fails with
// RobotsBlocked instead of paying when the URL is disallowed
func (c *Client) CheckAndExtractURLMetadata(ctx context.Context, targetURL string, opts MetadataOptions) (*types.PaidEndpointResponse, error) {
	if err := c.ensureAllowed(ctx, targetURL); err != nil {
		return nil, err
	}
	return c.ExtractURLMetadata(ctx, targetURL, opts)
}

func (c *Client) CheckAndExtractURLLinks(ctx context.Context, targetURL string) (*types.PaidEndpointResponse, error) {
	if err := c.ensureAllowed(ctx, targetURL); err != nil {
		return nil, err
	}
	return c.ExtractURLLinks(ctx, targetURL)
}

func (c *Client) CheckAndExtractURLPreview(ctx context.Context, targetURL string) (*types.PaidEndpointResponse, error) {
	if err := c.ensureAllowed(ctx, targetURL); err != nil {
		return nil, err
	}
	return c.ExtractURLPreview(ctx, targetURL)
}

func (c *Client) CheckAndExtractURLContent(ctx context.Context, targetURL string, opts ContentOptions) (*types.PaidEndpointResponse, error) {
	if err := c.ensureAllowed(ctx, targetURL); err != nil {
		return nil, err
	}
	return c.ExtractURLContent(ctx, targetURL, opts)
}

func (c *Client) ensureAllowed(ctx context.Context, targetURL string) error {
	check, err := c.PreflightURLCheck(ctx, targetURL)
	if err != nil {
		return err
	}
	if allowed, message := check.Allowed(); !allowed {
		if message == "" {
			message = "URL is blocked by robots.txt"
		}
		c.logger.Info("Extraction skipped, blocked by robots.txt", "url", targetURL)
		return types.NewRobotsBlockedError(targetURL, message)
	}
	return nil
}

// extract validates the target, performs the paid request and decodes the
// shared response shape
func (c *Client) extract(ctx context.Context, kind, path, targetURL string, params url.Values) (*types.PaidEndpointResponse, error) {
	normalized, err := utils.ValidateAndNormalizeURL(targetURL)
	if err != nil {
		return nil, err
	}
	params.Set("url", normalized)

	result, err := c.processor.Execute(ctx, c.endpoint(path, params), nil)
	if err != nil {
		return nil, err
	}
	defer result.Response.Body.Close()

	var data types.PaidEndpointResponse
	if err := decodeResponse(result.Response, &data); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return nil, types.NewExtractionFailedError(kind+" extraction failed", httpErr.StatusCode, httpErr)
		}
		return nil, types.NewExtractionFailedError(kind+" extraction failed", result.Response.StatusCode, err)
	}

	data.Payment = result.Payment
	return &data, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	return c.config.APIBaseURL + path + "?" + params.Encode()
}
