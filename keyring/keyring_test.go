package keyring_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/keyring"
	sigiltest "github.com/sigil-dev/sigil/testing"
	"github.com/sigil-dev/sigil/types"
)

func TestPair_SignerContract(t *testing.T) {
	sigiltest.RunSignerSuite(t, func() extrinsic.Signer { return keyring.Alice() })
}

func TestDevAccounts(t *testing.T) {
	pairs := map[string]*keyring.Pair{
		"Alice":   keyring.Alice(),
		"Bob":     keyring.Bob(),
		"Charlie": keyring.Charlie(),
		"Dave":    keyring.Dave(),
	}
	seen := make(map[types.AccountID]string)
	for name, p := range pairs {
		id := p.AccountID()
		if other, dup := seen[id]; dup {
			t.Fatalf("%s and %s share account id %s", name, other, id)
		}
		seen[id] = name
	}
	if keyring.Alice().AccountID() != keyring.Alice().AccountID() {
		t.Fatal("Alice's account id changed between calls")
	}
}

func TestFromSeed_Deterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	a := keyring.FromSeed(seed)
	b := keyring.FromSeed(seed)
	if a.AccountID() != b.AccountID() {
		t.Fatalf("same seed gave accounts %s and %s", a.AccountID(), b.AccountID())
	}

	seed[0] ^= 0x01
	c := keyring.FromSeed(seed)
	if c.AccountID() == a.AccountID() {
		t.Fatal("different seeds gave the same account")
	}
}

func TestFromMnemonic(t *testing.T) {
	const phrase = "legal winner thank year wave sausage worth useful legal winner thank yellow"

	a, err := keyring.FromMnemonic(phrase, "")
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	b, err := keyring.FromMnemonic(phrase, "")
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if a.AccountID() != b.AccountID() {
		t.Fatal("same mnemonic gave different accounts")
	}

	salted, err := keyring.FromMnemonic(phrase, "TREZOR")
	if err != nil {
		t.Fatalf("FromMnemonic with password: %v", err)
	}
	if salted.AccountID() == a.AccountID() {
		t.Fatal("password did not change the derived account")
	}

	if _, err := keyring.FromMnemonic("not a real mnemonic phrase", ""); err == nil {
		t.Fatal("FromMnemonic accepted a bad phrase")
	}
}

func TestGenerate(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte{0x2a}, 32))
	p, err := keyring.Generate(r)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := keyring.FromSeed([32]byte(bytes.Repeat([]byte{0x2a}, 32)))
	if p.AccountID() != want.AccountID() {
		t.Fatalf("Generate account = %s, want %s", p.AccountID(), want.AccountID())
	}

	if _, err := keyring.Generate(bytes.NewReader([]byte{0x01, 0x02})); err == nil {
		t.Fatal("Generate accepted a short entropy source")
	}
}

func TestPair_Verify(t *testing.T) {
	alice := keyring.Alice()
	payload := []byte("account nonce 7")

	sig, err := alice.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !alice.Verify(payload, sig) {
		t.Fatal("Verify rejected the pair's own signature")
	}
	if keyring.Bob().Verify(payload, sig) {
		t.Fatal("Bob verified Alice's signature")
	}
	if alice.Verify([]byte("account nonce 8"), sig) {
		t.Fatal("Verify accepted a signature over different bytes")
	}

	tampered := sig
	tampered.Scheme = types.SchemeSr25519
	if alice.Verify(payload, tampered) {
		t.Fatal("Verify accepted a foreign scheme tag")
	}
}

func TestRestricted(t *testing.T) {
	alice := keyring.Alice()
	payload := []byte("transfer 1000")

	allowed := keyring.Restrict(alice, alice.AccountID())
	if allowed.AccountID() != alice.AccountID() {
		t.Fatalf("AccountID = %s, want %s", allowed.AccountID(), alice.AccountID())
	}
	sig, err := allowed.Sign(payload)
	if err != nil {
		t.Fatalf("Sign through allow list: %v", err)
	}
	if !alice.Verify(payload, sig) {
		t.Fatal("allow-listed signature does not verify")
	}

	denied := keyring.Restrict(alice, keyring.Bob().AccountID())
	if _, err := denied.Sign(payload); !errors.Is(err, keyring.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}

	empty := keyring.Restrict(alice)
	if _, err := empty.Sign(payload); !errors.Is(err, keyring.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed for an empty allow list", err)
	}
}

func TestRestricted_RefusalSurfacesThroughSigning(t *testing.T) {
	call := extrinsic.Call{PalletIndex: 5, CallIndex: 0}
	payload, err := extrinsic.BuildPayload(call, extrinsic.Options{})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	denied := keyring.Restrict(keyring.Alice())
	_, err = extrinsic.Sign(payload, denied)
	if !errors.Is(err, extrinsic.ErrSignerRejected) {
		t.Fatalf("err = %v, want ErrSignerRejected", err)
	}
	if !errors.Is(err, keyring.ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed in the chain", err)
	}
	if !strings.Contains(err.Error(), keyring.Alice().AccountID().String()) {
		t.Fatalf("refusal does not name the account: %v", err)
	}
}

func TestPair_SS58RoundTrip(t *testing.T) {
	id := keyring.Alice().AccountID()

	addr, err := id.SS58(42)
	if err != nil {
		t.Fatalf("SS58: %v", err)
	}
	back, network, err := types.ParseSS58(addr)
	if err != nil {
		t.Fatalf("ParseSS58(%q): %v", addr, err)
	}
	if back != id {
		t.Fatalf("round trip changed the account: %s != %s", back, id)
	}
	if network != 42 {
		t.Fatalf("network = %d, want 42", network)
	}
}
