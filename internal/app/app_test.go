package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/naivecoin-wallet/config"
	"github.com/Klingon-tech/naivecoin-wallet/internal/ledger"
	"github.com/Klingon-tech/naivecoin-wallet/internal/storage"
	"github.com/Klingon-tech/naivecoin-wallet/internal/wallet"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/crypto"
	"github.com/Klingon-tech/naivecoin-wallet/pkg/tx"
)

const testPassword = "correct horse battery staple wallet"

var recipient = crypto.HashString("recipient")

// fakeNode is an in-memory naivecoin node with its shop routes.
type fakeNode struct {
	mu        sync.Mutex
	unspent   map[string][]tx.UTXO
	submitted []*tx.Transaction
	mined     map[string]bool
	linked    []wallet.VerificationEntry
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{
		unspent: make(map[string][]tx.UTXO),
		mined:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /operator/{addr}/balance", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		var total uint64
		for _, u := range n.unspent[r.PathValue("addr")] {
			total += u.Amount
		}
		writeJSON(w, http.StatusOK, map[string]any{"balance": total})
	})
	mux.HandleFunc("GET /blockchain/transactions/unspent", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		utxos := n.unspent[r.URL.Query().Get("address")]
		if utxos == nil {
			utxos = []tx.UTXO{}
		}
		writeJSON(w, http.StatusOK, utxos)
	})
	mux.HandleFunc("POST /blockchain/transactions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got, err := tx.Decode(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if err := got.Verify(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		n.mu.Lock()
		n.submitted = append(n.submitted, got)
		n.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	})
	mux.HandleFunc("GET /blockchain/blocks/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		id := r.PathValue("id")
		if !n.mined[id] {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"index":        7,
			"transactions": []map[string]string{{"id": id}},
		})
	})
	mux.HandleFunc("POST /shop/cart/wallet/anonymous/{linkID}", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "bad form"})
			return
		}
		var entries []wallet.VerificationEntry
		for _, addr := range r.PostForm["addresses"] {
			entries = append(entries, wallet.VerificationEntry{Address: addr, Data: "challenge-" + addr[:8]})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "Address link success",
			"wallet":    "shop-wallet",
			"verf_data": entries,
		})
	})
	mux.HandleFunc("POST /shop/cart/wallet/anonymous/verify", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WalletID string                     `json:"walletId"`
			Entries  []wallet.VerificationEntry `json:"verf_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "bad body"})
			return
		}
		for _, e := range req.Entries {
			if !crypto.VerifySignature(e.Address, e.Signature, crypto.HashString(e.Data)) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"status":   "Wallet link verificate failed",
					"walletId": req.WalletID,
				})
				return
			}
		}
		n.mu.Lock()
		n.linked = req.Entries
		n.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]string{
			"status":   "Wallet link verificate success",
			"walletId": req.WalletID,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) fund(address string, amount uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unspent[address] = append(n.unspent[address], tx.UTXO{
		Transaction: crypto.HashString(address + "-coinbase"),
		Index:       uint32(len(n.unspent[address])),
		Amount:      amount,
		Address:     address,
	})
}

func (n *fakeNode) mine(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mined[id] = true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func testConfig(t *testing.T, nodeURL string) *config.Config {
	t.Helper()
	cfg := config.Default(config.Mainnet)
	cfg.DataDir = t.TempDir()
	cfg.Ledger.URL = nodeURL
	cfg.Ledger.Timeout = 2 * time.Second
	cfg.Wallet.ArgonMemory = 32
	cfg.Wallet.ArgonIterations = 1
	cfg.Tracker.Enabled = false
	return cfg
}

func testApp(t *testing.T) (*App, *fakeNode) {
	t.Helper()
	node, srv := newFakeNode(t)
	a, err := New(testConfig(t, srv.URL), storage.NewMemory())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, node
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "ftp://nowhere")
	if _, err := New(cfg, storage.NewMemory()); err == nil {
		t.Fatal("expected error for invalid ledger URL")
	}
}

func TestCreateWallet(t *testing.T) {
	a, _ := testApp(t)

	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatalf("CreateWallet() error: %v", err)
	}
	if len(w.KeyPairs) != 1 {
		t.Fatalf("keys = %d, want 1", len(w.KeyPairs))
	}
	open, err := a.Wallet()
	if err != nil || open != w {
		t.Fatalf("Wallet() = %v, %v", open, err)
	}

	if _, err := a.CreateWallet(testPassword); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("second create: got %v, want ErrWalletExists", err)
	}
}

func TestCreateWallet_WeakPassword(t *testing.T) {
	a, _ := testApp(t)
	if _, err := a.CreateWallet("hunter2"); !errors.Is(err, wallet.ErrWeakPassword) {
		t.Fatalf("got %v, want ErrWeakPassword", err)
	}
}

func TestOpenWallet(t *testing.T) {
	a, _ := testApp(t)
	created, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.NewAddress(); err != nil {
		t.Fatal(err)
	}
	want := created.Addresses()

	opened, err := a.OpenWallet(testPassword)
	if err != nil {
		t.Fatalf("OpenWallet() error: %v", err)
	}
	if opened.ID != created.ID {
		t.Errorf("id = %s, want %s", opened.ID, created.ID)
	}
	got := opened.Addresses()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("addresses = %v, want %v", got, want)
	}

	if _, err := a.OpenWallet("some other five word password"); !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestNoWallet(t *testing.T) {
	a, _ := testApp(t)
	ctx := context.Background()

	if _, err := a.NewAddress(); !errors.Is(err, ErrNoWallet) {
		t.Errorf("NewAddress: %v", err)
	}
	if _, err := a.Addresses(); !errors.Is(err, ErrNoWallet) {
		t.Errorf("Addresses: %v", err)
	}
	if _, err := a.Send(ctx, "a", "b", 1); !errors.Is(err, ErrNoWallet) {
		t.Errorf("Send: %v", err)
	}
	if _, err := a.Link(ctx, "http://shop/x"); !errors.Is(err, ErrNoWallet) {
		t.Errorf("Link: %v", err)
	}
}

func TestBalance(t *testing.T) {
	a, node := testApp(t)
	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	addr := w.Addresses()[0]
	node.fund(addr, 30)
	node.fund(addr, 12)

	b, err := a.Balance(context.Background(), addr)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if b.Balance != 42 {
		t.Errorf("balance = %d, want 42", b.Balance)
	}
}

func TestSend_RecordsPending(t *testing.T) {
	a, node := testApp(t)
	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	from := w.Addresses()[0]
	node.fund(from, 5_000_000_000)

	rec, err := a.Send(context.Background(), from, recipient, 1_000_000_000)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if rec.Confirmed {
		t.Error("new record should be pending")
	}
	outs := rec.Data.Outputs
	if len(outs) != 2 || outs[0].Amount != 1_000_000_000 || outs[1].Amount != 3_999_999_999 {
		t.Fatalf("outputs = %+v", outs)
	}

	node.mu.Lock()
	submitted := len(node.submitted)
	node.mu.Unlock()
	if submitted != 1 {
		t.Fatalf("node saw %d transactions, want 1", submitted)
	}

	hist, err := a.History()
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != rec.ID {
		t.Fatalf("history = %+v", hist)
	}
}

func TestSend_InsufficientFunds(t *testing.T) {
	a, node := testApp(t)
	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	from := w.Addresses()[0]
	node.fund(from, 5_000_000_000)

	_, err = a.Send(context.Background(), from, recipient, 4_999_999_999)
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	hist, _ := a.History()
	if len(hist) != 0 {
		t.Fatalf("failed send recorded: %+v", hist)
	}
}

func TestSend_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blockchain/transactions/unspent", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []tx.UTXO{{
			Transaction: crypto.HashString("funding"),
			Amount:      100,
			Address:     r.URL.Query().Get("address"),
		}})
	})
	mux.HandleFunc("POST /blockchain/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "double spend"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a, err := New(testConfig(t, srv.URL), storage.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Send(context.Background(), w.Addresses()[0], recipient, 10)
	var he *ledger.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("got %v, want HTTPError 400", err)
	}
	hist, _ := a.History()
	if len(hist) != 0 {
		t.Fatalf("rejected send recorded: %+v", hist)
	}
}

func TestSend_ConfirmedByTracker(t *testing.T) {
	a, node := testApp(t)
	w, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	from := w.Addresses()[0]
	node.fund(from, 100)

	rec, err := a.Send(context.Background(), from, recipient, 10)
	if err != nil {
		t.Fatal(err)
	}

	confirmed, err := a.Tracker().Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(confirmed) != 0 {
		t.Fatalf("confirmed before mining: %v", confirmed)
	}

	node.mine(rec.ID)
	confirmed, err = a.Tracker().Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0] != rec.ID {
		t.Fatalf("confirmed = %v", confirmed)
	}

	select {
	case v := <-a.Notifications():
		if v.(string) != rec.ID {
			t.Fatalf("notification = %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}

	hist, err := a.History()
	if err != nil {
		t.Fatal(err)
	}
	if !hist[0].Confirmed || hist[0].ConfirmedAt == nil {
		t.Fatalf("record not confirmed: %+v", hist[0])
	}
}

func TestLink(t *testing.T) {
	a, node := testApp(t)
	if _, err := a.CreateWallet(testPassword); err != nil {
		t.Fatal(err)
	}
	if _, err := a.NewAddress(); err != nil {
		t.Fatal(err)
	}

	res, err := a.Link(context.Background(), a.Config().Ledger.URL+"/shop/cart/wallet/anonymous/link-1")
	if err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	if res.WalletID != "shop-wallet" {
		t.Errorf("walletId = %s", res.WalletID)
	}
	node.mu.Lock()
	linked := len(node.linked)
	node.mu.Unlock()
	if linked != 2 {
		t.Errorf("linked %d addresses, want 2", linked)
	}
}

func TestStart_TrackerDisabled(t *testing.T) {
	a, _ := testApp(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := a.Drain(); len(got) != 0 {
		t.Fatalf("Drain() = %v", got)
	}
}

func TestOpen_Badger(t *testing.T) {
	_, srv := newFakeNode(t)
	cfg := testConfig(t, srv.URL)
	cfg.Log.File = ""
	if err := config.EnsureDataDirs(cfg); err != nil {
		t.Fatal(err)
	}

	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	created, err := a.CreateWallet(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	id := created.ID
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	a, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer a.Close()
	w, err := a.OpenWallet(testPassword)
	if err != nil {
		t.Fatalf("OpenWallet() error: %v", err)
	}
	if w.ID != id {
		t.Fatalf("id = %s, want %s", w.ID, id)
	}
}
