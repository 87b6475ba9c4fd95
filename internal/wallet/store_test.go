package wallet

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Klingon-tech/naivecoin-wallet/internal/storage"
)

func testStore(t *testing.T) (*Store, storage.DB) {
	t.Helper()
	db := storage.NewMemory()
	return NewStore(db, fastParams()), db
}

func TestStore_SaveLoad(t *testing.T) {
	s, _ := testStore(t)
	w := testWallet(t, 2)

	if err := s.Save(w); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := s.LoadFromPassword(testPassword)
	if err != nil {
		t.Fatalf("LoadFromPassword() error: %v", err)
	}

	if loaded.ID != w.ID || loaded.PasswordHash != w.PasswordHash {
		t.Errorf("loaded id/hash = %s/%s, want %s/%s", loaded.ID, loaded.PasswordHash, w.ID, w.PasswordHash)
	}
	if loaded.Secret != w.Secret {
		t.Error("secret did not survive the roundtrip")
	}
	if len(loaded.KeyPairs) != 2 || loaded.KeyPairs[1] != w.KeyPairs[1] {
		t.Errorf("key pairs = %+v", loaded.KeyPairs)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	s, _ := testStore(t)
	if _, err := s.LoadFromPassword("no such wallet"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadFromPassword() error = %v, want ErrNotFound", err)
	}
}

func TestStore_UpsertKeepsID(t *testing.T) {
	s, _ := testStore(t)

	first := testWallet(t, 1)
	if err := s.Save(first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A second wallet object for the same password updates the record.
	second := testWallet(t, 2)
	if err := s.Save(second); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if second.ID != first.ID {
		t.Error("Save() should adopt the stored wallet id")
	}

	loaded, err := s.LoadFromPassword(testPassword)
	if err != nil {
		t.Fatalf("LoadFromPassword() error: %v", err)
	}
	if loaded.ID != first.ID {
		t.Errorf("loaded id = %s, want %s", loaded.ID, first.ID)
	}
	if len(loaded.KeyPairs) != 2 {
		t.Errorf("loaded %d keys, want 2", len(loaded.KeyPairs))
	}
}

func TestStore_AddressAfterLoad(t *testing.T) {
	s, _ := testStore(t)
	w := testWallet(t, 1)
	s.Save(w)

	loaded, err := s.LoadFromPassword(testPassword)
	if err != nil {
		t.Fatalf("LoadFromPassword() error: %v", err)
	}
	addr, err := loaded.GenerateAddress()
	if err != nil {
		t.Fatalf("GenerateAddress() error: %v", err)
	}
	if err := s.Save(loaded); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fresh := testWallet(t, 2)
	if addr != fresh.KeyPairs[1].PublicKey {
		t.Error("loaded wallet should continue the same chain")
	}
}

func TestStore_NoPlaintextSecrets(t *testing.T) {
	s, db := testStore(t)
	w := testWallet(t, 1)
	s.Save(w)

	raw, err := db.Get(append([]byte("wallet/"), w.PasswordHash...))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	text := string(raw)
	if strings.Contains(text, w.Secret) || strings.Contains(text, w.KeyPairs[0].PrivateKey) {
		t.Error("secret key material stored in plaintext")
	}
	if strings.Contains(text, testPassword) {
		t.Error("password stored in plaintext")
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec.WalletID != w.ID || rec.Version != recordVersion {
		t.Errorf("record = %+v", rec)
	}
}

func TestStore_LockedWalletCannotSave(t *testing.T) {
	s, _ := testStore(t)
	w := testWallet(t, 0)
	w.Lock()
	if err := s.Save(w); err == nil {
		t.Error("Save() of a locked wallet should fail")
	}
}

func TestStore_Exists(t *testing.T) {
	s, _ := testStore(t)
	ok, _ := s.Exists(testPassword)
	if ok {
		t.Error("Exists() = true before save")
	}
	s.Save(testWallet(t, 0))
	ok, _ = s.Exists(testPassword)
	if !ok {
		t.Error("Exists() = false after save")
	}
}

func TestStore_ConcurrentSave(t *testing.T) {
	s, _ := testStore(t)

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		w, err := FromPassword(testPassword)
		if err != nil {
			t.Fatalf("FromPassword() error: %v", err)
		}
		wg.Add(1)
		go func(i int, w *Wallet) {
			defer wg.Done()
			if err := s.Save(w); err != nil {
				t.Errorf("Save() error: %v", err)
			}
			ids[i] = w.ID
		}(i, w)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent saves produced different ids: %v", ids)
		}
	}
}

func TestStore_Badger(t *testing.T) {
	db, err := storage.NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	s := NewStore(db, fastParams())
	w := testWallet(t, 1)
	if err := s.Save(w); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := s.LoadFromPassword(testPassword)
	if err != nil {
		t.Fatalf("LoadFromPassword() error: %v", err)
	}
	if loaded.KeyPairs[0] != w.KeyPairs[0] {
		t.Error("badger roundtrip lost key material")
	}
}
