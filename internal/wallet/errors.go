package wallet

import "errors"

// Wallet errors.
var (
	ErrNotFound          = errors.New("wallet not found")
	ErrKeyNotFound       = errors.New("private key for address not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoFunds           = errors.New("address has no unspent outputs")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLink              = errors.New("wallet link verification failed")
	ErrWeakPassword      = errors.New("password too weak")
)
