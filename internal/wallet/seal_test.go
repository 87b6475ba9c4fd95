package wallet

import (
	"bytes"
	"errors"
	"testing"
)

// fastParams returns low-cost Argon2 params for fast tests.
func fastParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64, // 64 KiB (minimal)
		Iterations:  1,
		Parallelism: 1,
	}
}

func TestSealOpen_Roundtrip(t *testing.T) {
	plaintext := []byte(`{"secret":"abcd","key_pairs":[]}`)
	password := []byte("five words make a password")
	ad := []byte("wallet-id")

	sealed, err := seal(plaintext, password, ad, fastParams())
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	got, err := open(sealed, password, ad)
	if err != nil {
		t.Fatalf("open() error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("open() = %q, want %q", got, plaintext)
	}
}

func TestOpen_WrongPassword(t *testing.T) {
	sealed, err := seal([]byte("secret"), []byte("correct"), nil, fastParams())
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	if _, err := open(sealed, []byte("wrong"), nil); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("open() error = %v, want ErrWrongPassword", err)
	}
}

func TestOpen_WrongAdditionalData(t *testing.T) {
	sealed, err := seal([]byte("secret"), []byte("pw"), []byte("id-1"), fastParams())
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	if _, err := open(sealed, []byte("pw"), []byte("id-2")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("open() error = %v, want ErrWrongPassword", err)
	}
}

func TestOpen_Malformed(t *testing.T) {
	sealed, err := seal([]byte("data"), []byte("pw"), nil, fastParams())
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:10] }},
		{"bad version", func(b []byte) []byte { b[0] = 9; return b }},
		{"zero iterations", func(b []byte) []byte {
			copy(b[1+SaltSize+4:], []byte{0, 0, 0, 0})
			return b
		}},
		{"corrupted tag", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := append([]byte(nil), sealed...)
			if _, err := open(tt.mutate(c), []byte("pw"), nil); err == nil {
				t.Error("open() should fail")
			}
		})
	}
}

func TestSeal_DifferentEachTime(t *testing.T) {
	a, _ := seal([]byte("same"), []byte("pw"), nil, fastParams())
	b, _ := seal([]byte("same"), []byte("pw"), nil, fastParams())
	if bytes.Equal(a, b) {
		t.Error("sealing twice should use a fresh salt and nonce")
	}
}

func TestEncryptionParams_Validate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("DefaultParams().Validate() error: %v", err)
	}
	bad := []EncryptionParams{
		{Memory: 64, Iterations: 0, Parallelism: 1},
		{Memory: 64, Iterations: 1, Parallelism: 0},
		{Memory: 4, Iterations: 1, Parallelism: 1},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", p)
		}
	}
	if _, err := seal([]byte("x"), []byte("pw"), nil, bad[0]); err == nil {
		t.Error("seal() should reject invalid params")
	}
}
