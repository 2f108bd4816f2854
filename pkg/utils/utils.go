package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// unsupportedExtensions are document formats the extraction API cannot parse
var unsupportedExtensions = []string{
	".pdf", ".txt", ".md", ".doc", ".docx",
	".xls", ".xlsx", ".zip", ".tar", ".gz",
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// CreateHTTPClientWithTimeouts returns a client whose timeout applies to each
// request, plus per-phase transport timeouts. A zero timeout uses
// constants.DefaultRequestTimeout.
func CreateHTTPClientWithTimeouts(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
			ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
			ExpectContinueTimeout: constants.ExpectContinueTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Disable redirects to prevent redirect-based SSRF
		},
	}
}

// ValidateAPIBaseURL requires an absolute https URL. Plain http is accepted
// only for loopback hosts, which local test servers use.
func ValidateAPIBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("API base URL must be absolute: %s", rawURL)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return nil
		}
	}
	return fmt.Errorf("API base URL must use HTTPS: %s", rawURL)
}

// ValidateAndNormalizeURL validates a user-supplied target URL and returns its
// normalized form. A missing scheme defaults to https. Failures are
// InvalidInput errors.
func ValidateAndNormalizeURL(raw string) (string, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return "", types.NewInvalidInputError(raw, "URL must be a non-empty string")
	}

	if !schemePattern.MatchString(normalized) {
		if strings.Contains(normalized, "://") {
			return "", types.NewInvalidInputError(normalized, "Protocol must be http or https")
		}
		normalized = "https://" + normalized
	}

	if len(normalized) > constants.MaxURLLength {
		return "", types.NewInvalidInputError(normalized,
			fmt.Sprintf("URL exceeds maximum length of %d characters", constants.MaxURLLength))
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", types.NewInvalidInputError(normalized, "Invalid URL format")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", types.NewInvalidInputError(normalized, "Protocol must be http or https, got: "+parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", types.NewInvalidInputError(normalized, "URL must have a valid hostname")
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range unsupportedExtensions {
		if strings.HasSuffix(path, ext) {
			return "", types.NewInvalidInputError(normalized,
				fmt.Sprintf("Unsupported file format: %s. Only HTML pages are supported.", ext))
		}
	}

	if IsPrivateOrLocalhost(hostname) {
		return "", types.NewInvalidInputError(normalized, "Cannot fetch from localhost or private IP addresses")
	}

	return normalized, nil
}

// IsPrivateOrLocalhost reports whether hostname names the local machine or a
// private, link-local or unspecified address
func IsPrivateOrLocalhost(hostname string) bool {
	host := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}

// IsJSON reports whether body parses as a single JSON value
func IsJSON(body []byte) bool {
	return len(body) > 0 && json.Valid(body)
}

// FormatTokenAmount converts atomic units into a decimal token amount, e.g.
// "1500" with 6 decimals is 0.0015. Invalid input yields zero.
func FormatTokenAmount(atomic string, decimals int32) decimal.Decimal {
	v, ok := new(big.Int).SetString(atomic, 10)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ReadLimitedBody reads at most constants.MaxResponseBodySize bytes
func ReadLimitedBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, int64(constants.MaxResponseBodySize)))
}
