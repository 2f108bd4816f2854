package svm

import (
	"github.com/sigweihq/x402fetch/pkg/chains"
)

// NewSignerFactory returns a chains.SignerFactory producing Solana signers.
// A non-empty SignerOptions.RPCEndpoint replaces the network's official endpoint.
func NewSignerFactory(opts ...Option) chains.SignerFactory {
	return func(credential string, o chains.SignerOptions) (chains.Signer, error) {
		all := append([]Option{WithRPCEndpoint(o.RPCEndpoint)}, opts...)
		return NewSigner(credential, o.Network, all...)
	}
}

// InitSVMSigners registers the Solana signer factory on the global registry.
// Calling it again replaces the factory (idempotent).
func InitSVMSigners(opts ...Option) *chains.Registry {
	registry := chains.InitGlobalRegistry()
	registry.Register(chains.FamilySolana, NewSignerFactory(opts...))
	return registry
}
