package evm

import "fmt"

// UnsupportedNetworkError is returned when a network has no known chain ID
type UnsupportedNetworkError struct {
	Network string
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: %s", e.Network)
}

// InvalidAmountError is returned when an amount is not a uint256 decimal string
type InvalidAmountError struct {
	Amount string
	Err    error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %v", e.Amount, e.Err)
}

func (e *InvalidAmountError) Unwrap() error {
	return e.Err
}

// MismatchError is returned when an authorization does not match a requirement
type MismatchError struct {
	Field    string
	Got      string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("authorization %s mismatch: got %s, expected %s", e.Field, e.Got, e.Expected)
}
