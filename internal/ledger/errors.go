package ledger

import (
	"errors"
	"fmt"
)

// Ledger errors.
var (
	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errors.New("ledger unreachable")
	// ErrNotInBlock is returned when a transaction is not part of any block yet.
	ErrNotInBlock = errors.New("transaction not in any block")
	// ErrLink is returned when the wallet link handshake is refused.
	ErrLink = errors.New("wallet link failed")
)

// HTTPError is returned when the ledger answers with an unexpected status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is makes every HTTPError match ErrNetwork.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNetwork
}
