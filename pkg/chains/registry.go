package chains

import (
	"sort"
	"sync"

	"github.com/sigweihq/x402fetch/pkg/types"
)

// SignerOptions carries per-client settings a factory may need beyond the key
type SignerOptions struct {
	// Network is the configured network (e.g. "base-sepolia", "solana-devnet")
	Network string

	// RPCEndpoint overrides the default RPC endpoint where a signer needs one
	RPCEndpoint string
}

// SignerFactory builds a Signer from a private credential
type SignerFactory func(credential string, opts SignerOptions) (Signer, error)

// Registry manages signer factories for the supported chain families
type Registry struct {
	factories map[Family]SignerFactory
	mu        sync.RWMutex
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Family]SignerFactory)}
}

// InitGlobalRegistry initializes the global signer registry
func InitGlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// GetGlobalRegistry returns the global signer registry (returns nil if not initialized)
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// ResetGlobalRegistry resets the global registry (useful for testing)
func ResetGlobalRegistry() {
	globalRegistry = nil
	globalRegistryOnce = sync.Once{}
}

// Register registers a factory for a family. Re-registering replaces the
// previous factory.
func (r *Registry) Register(family Family, factory SignerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = factory
}

// Get retrieves the factory for a family
func (r *Registry) Get(family Family) (SignerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[family]
	return factory, ok
}

// IsSupported checks if a family has a registered factory
func (r *Registry) IsSupported(family Family) bool {
	_, ok := r.Get(family)
	return ok
}

// GetSupportedFamilies returns the registered families in sorted order
func (r *Registry) GetSupportedFamilies() []Family {
	r.mu.RLock()
	defer r.mu.RUnlock()

	families := make([]Family, 0, len(r.factories))
	for family := range r.factories {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

// Unregister removes a factory (useful for testing)
func (r *Registry) Unregister(family Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, family)
}

// CreateSigner builds a signer for the given family. Any failure, including an
// unregistered family, is reported as PaymentFailed.
func (r *Registry) CreateSigner(credential string, family Family, opts SignerOptions) (Signer, error) {
	if credential == "" {
		return nil, types.NewPaymentFailedError(opts.Network, "private key required to create signer", nil)
	}

	factory, ok := r.Get(family)
	if !ok {
		return nil, types.NewPaymentFailedError(opts.Network, "unsupported chain family: "+string(family), nil)
	}

	signer, err := factory(credential, opts)
	if err != nil {
		return nil, types.NewPaymentFailedError(opts.Network, "failed to create "+string(family)+" signer", err)
	}
	if signer.Family() != family {
		return nil, types.NewPaymentFailedError(opts.Network, "signer family mismatch: expected "+string(family)+", got "+string(signer.Family()), nil)
	}
	return signer, nil
}
