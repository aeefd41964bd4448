package types

import "errors"

var (
	// ErrMalformedAccount is returned when a stored account tuple fails to
	// decode.
	ErrMalformedAccount = errors.New("types: malformed account encoding")

	// ErrMalformedHeader is returned when a stored/received header fails to
	// decode.
	ErrMalformedHeader = errors.New("types: malformed header encoding")

	// ErrMalformedTx is returned when a transaction envelope fails to decode
	// or carries an unrecognized type byte.
	ErrMalformedTx = errors.New("types: malformed transaction encoding")

	// ErrInvalidSig is returned when a transaction's signature does not
	// recover to a valid sender.
	ErrInvalidSig = errors.New("types: invalid transaction signature")
)
