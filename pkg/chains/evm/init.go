package evm

import (
	"github.com/sigweihq/x402fetch/pkg/chains"
)

// NewSignerFactory returns a chains.SignerFactory producing EVM signers with
// the given options
func NewSignerFactory(opts ...Option) chains.SignerFactory {
	return func(credential string, _ chains.SignerOptions) (chains.Signer, error) {
		return NewSigner(credential, opts...)
	}
}

// InitEVMSigners registers the EVM signer factory on the global registry.
// Calling it again replaces the factory (idempotent).
func InitEVMSigners(opts ...Option) *chains.Registry {
	registry := chains.InitGlobalRegistry()
	registry.Register(chains.FamilyEVM, NewSignerFactory(opts...))
	return registry
}
