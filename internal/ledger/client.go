// Package ledger is the HTTP client for a naivecoin node and its shop.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Klingon-tech/naivecoin-wallet/internal/log"
	"github.com/Klingon-tech/naivecoin-wallet/internal/wallet"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/tx"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a reply is read.
const maxBodySize = 8 << 20

// breakerTrip is the number of consecutive transport failures that opens
// the circuit.
const breakerTrip = 5

// Client talks to one naivecoin node.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a client for the node at baseURL.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, DefaultTimeout)
}

// NewWithTimeout creates a client with a custom per-request timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    base,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerTrip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Ledger.Warn().
					Str("node", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Ledger circuit state changed")
			},
		}),
	}
}

// BaseURL returns the node URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// reply is a raw HTTP answer.
type reply struct {
	status int
	body   []byte
}

func (r *reply) text() string {
	return strings.TrimSpace(string(r.body))
}

// do performs one request through the circuit breaker. Only transport
// failures and 5xx replies count against the breaker; other statuses are
// returned for the caller to interpret. A request abandoned because ctx
// ended is not held against the node.
func (c *Client) do(ctx context.Context, method, target, contentType string, body []byte) (*reply, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + target
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, target, err)
	}

	var abandoned error
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				abandoned = cerr
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, target, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				abandoned = cerr
				return nil, nil
			}
			return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
		}
		r := &reply{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, &HTTPError{Method: method, URL: target, StatusCode: r.status, Body: r.text()}
		}
		return r, nil
	})
	if abandoned != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, target, abandoned)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, c.baseURL, err)
	}
	if err != nil {
		if r, ok := out.(*reply); ok && r != nil {
			return r, err
		}
		return nil, err
	}
	return out.(*reply), nil
}

func (c *Client) get(ctx context.Context, path string) (*reply, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *Client) postJSON(ctx context.Context, target string, v any) (*reply, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, target, "application/json", body)
}

func unexpected(method, target string, r *reply) error {
	return &HTTPError{Method: method, URL: target, StatusCode: r.status, Body: r.text()}
}

// Balance returns the confirmed balance of address. A reply that is not
// JSON is reported as balance -1 with the reply text as status.
func (c *Client) Balance(ctx context.Context, address string) (Balance, error) {
	path := "/operator/" + url.PathEscape(address) + "/balance"
	r, err := c.get(ctx, path)
	if err != nil && r == nil {
		return Balance{}, err
	}

	var b Balance
	if jerr := json.Unmarshal(r.body, &b); jerr != nil {
		return Balance{Balance: -1, Status: r.text()}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	if r.status != http.StatusOK {
		return Balance{}, unexpected(http.MethodGet, path, r)
	}
	return b, nil
}

// Unspent lists the unspent outputs owned by address.
func (c *Client) Unspent(ctx context.Context, address string) ([]tx.UTXO, error) {
	path := "/blockchain/transactions/unspent?address=" + url.QueryEscape(address)
	r, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if r.status != http.StatusOK {
		return nil, unexpected(http.MethodGet, path, r)
	}
	var utxos []tx.UTXO
	if err := json.Unmarshal(r.body, &utxos); err != nil {
		return nil, fmt.Errorf("decode unspent outputs: %w", err)
	}
	return utxos, nil
}

// BlockTransactionIDs returns the ids of every transaction in the block
// that contains txID, or ErrNotInBlock if no block does yet.
func (c *Client) BlockTransactionIDs(ctx context.Context, txID string) ([]string, error) {
	path := "/blockchain/blocks/transactions/" + url.PathEscape(txID)
	r, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	switch r.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotInBlock, txID)
	default:
		return nil, unexpected(http.MethodGet, path, r)
	}

	var blk blockTransactions
	if err := json.Unmarshal(r.body, &blk); err != nil {
		return nil, fmt.Errorf("decode block for %s: %w", txID, err)
	}
	ids := make([]string, 0, len(blk.Transactions))
	for _, t := range blk.Transactions {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// SendTransaction submits a signed transaction. The node echoes the
// accepted transaction, which is decoded and validated before returning.
func (c *Client) SendTransaction(ctx context.Context, t *tx.Transaction) (*tx.Transaction, error) {
	const path = "/blockchain/transactions"
	r, err := c.postJSON(ctx, path, t)
	if err != nil {
		return nil, err
	}
	if r.status != http.StatusCreated {
		return nil, unexpected(http.MethodPost, path, r)
	}
	accepted, err := tx.Decode(r.body)
	if err != nil {
		return nil, fmt.Errorf("decode accepted transaction: %w", err)
	}

	l := log.WithTx(log.Ledger, t.ID)
	l.Info().Str("node", c.baseURL).Msg("Transaction submitted")
	return accepted, nil
}

// RequestLink posts addresses to a shop link URL and returns the
// challenges to sign.
func (c *Client) RequestLink(ctx context.Context, linkURL string, addresses []string) (*LinkRequest, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: no addresses to link", ErrLink)
	}
	form := url.Values{"addresses": addresses}
	r, err := c.do(ctx, http.MethodPost, linkURL, "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if r.status != http.StatusOK {
		return nil, linkFailure("link request", r)
	}
	var lr LinkRequest
	if err := json.Unmarshal(r.body, &lr); err != nil {
		return nil, fmt.Errorf("%w: decode link request: %v", ErrLink, err)
	}
	return &lr, nil
}

// SendVerification returns the signed challenges for walletID.
func (c *Client) SendVerification(ctx context.Context, walletID string, entries []wallet.VerificationEntry) (*LinkResult, error) {
	const path = "/shop/cart/wallet/anonymous/verify"
	r, err := c.postJSON(ctx, path, verifyRequest{WalletID: walletID, VerificationData: entries})
	if err != nil {
		if r != nil {
			return nil, linkFailure("verification", r)
		}
		return nil, err
	}
	if r.status != http.StatusCreated {
		return nil, linkFailure("verification", r)
	}
	var res LinkResult
	if err := json.Unmarshal(r.body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode verification result: %v", ErrLink, err)
	}
	return &res, nil
}

// linkFailure turns a refused shop reply into ErrLink, using the status
// message when the body carries one.
func linkFailure(step string, r *reply) error {
	var sr statusReply
	if err := json.Unmarshal(r.body, &sr); err == nil && sr.Status != "" {
		return fmt.Errorf("%w: %s: %s (status %d)", ErrLink, step, sr.Status, r.status)
	}
	return fmt.Errorf("%w: %s: status %d: %s", ErrLink, step, r.status, r.text())
}
