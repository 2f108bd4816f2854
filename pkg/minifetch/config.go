package minifetch

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/metrics"
	"github.com/sigweihq/x402fetch/pkg/types"
	"github.com/sigweihq/x402fetch/pkg/utils"
)

// DefaultNetwork is used when ClientConfig.Network is empty
const DefaultNetwork = constants.NetworkBase

var (
	validate = validator.New()

	evmKeyPattern    = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	solanaKeyPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{87,88}$`)
)

// ClientConfig configures a Client. Only PrivateKey is required.
type ClientConfig struct {
	Network     string        `validate:"omitempty,oneof=base base-sepolia solana solana-devnet"`
	PrivateKey  string        `validate:"required"`
	ExplorerURL string        `validate:"omitempty,url"`
	APIBaseURL  string        `validate:"omitempty,url"`
	Timeout     time.Duration `validate:"gte=0"`

	HTTPClient *http.Client     `validate:"-"`
	Metrics    metrics.Recorder `validate:"-"`
}

// InitConfig validates cfg and fills per-network defaults for the API base
// URL, the explorer URL and the timeout. Every failure is a ConfigurationError.
func InitConfig(cfg ClientConfig) (ClientConfig, error) {
	cfg.PrivateKey = strings.TrimSpace(cfg.PrivateKey)
	if cfg.PrivateKey == "" {
		return cfg, types.NewConfigurationError("Private key is required", nil)
	}
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, types.NewConfigurationError("invalid client configuration", err)
	}
	if err := validatePrivateKey(cfg.PrivateKey, cfg.Network); err != nil {
		return cfg, err
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = constants.APIBaseURLs[cfg.Network]
	} else if err := utils.ValidateAPIBaseURL(cfg.APIBaseURL); err != nil {
		return cfg, types.NewConfigurationError("invalid API base URL", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = constants.ExplorerURLs[cfg.Network]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = constants.DefaultRequestTimeout
	}
	return cfg, nil
}

// validatePrivateKey checks the key's textual format for the network's family.
// Key material itself is checked when the signer is built.
func validatePrivateKey(privateKey, network string) error {
	if network == constants.NetworkSolana || network == constants.NetworkSolanaDevnet {
		if !solanaKeyPattern.MatchString(privateKey) {
			return types.NewConfigurationError("Invalid Solana private key format (expected base58 string)", nil)
		}
		return nil
	}

	if !evmKeyPattern.MatchString(strings.TrimPrefix(privateKey, "0x")) {
		return types.NewConfigurationError("Invalid EVM private key format (expected 64-character hex string)", nil)
	}
	return nil
}
