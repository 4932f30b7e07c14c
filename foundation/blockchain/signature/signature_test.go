package signature_test

import (
	"encoding/hex"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexKey   = "18e14a7b6a307f426a94f8114701e7c8e774e7f9a47e2c2035db29a206321725"
	pubHex     = "0250863ad64a87ae8a2fe83c1af1a8403cb53f53e486d8511dad8a04887e5b2352"
	address    = "1PMycacnJaSqwwJqjawXBErnLsZ7RkXUAs"
	otherHexPK = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// =============================================================================

func Test_Address(t *testing.T) {
	t.Log("Given the need to derive addresses from public keys.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a known private key.", testID)
		{
			pk, err := crypto.HexToECDSA(pkHexKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the private key: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the private key.", success, testID)

			if got := signature.PublicKeyHex(pk.PublicKey); got != pubHex {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, pubHex)
				t.Fatalf("\t%s\tTest %d:\tShould get back the compressed public key.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the compressed public key.", success, testID)

			if got := signature.PublicKeyToAddress(pk.PublicKey); got != address {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, address)
				t.Fatalf("\t%s\tTest %d:\tShould get back the right address.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the right address.", success, testID)

			got, err := signature.AddressFromHex(pubHex)
			if err != nil || got != address {
				t.Fatalf("\t%s\tTest %d:\tShould derive the same address from hex: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould derive the same address from hex.", success, testID)

			if err := signature.ValidateAddress(address); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould validate the address: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould validate the address.", success, testID)

			if err := signature.ValidateAddress(address[:len(address)-1] + "t"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an address with a bad checksum.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an address with a bad checksum.", success, testID)

			if _, err := signature.AddressFromHex("zz"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a bad public key.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a bad public key.", success, testID)
		}
	}
}

func Test_Signing(t *testing.T) {
	type table struct {
		name    string
		signer  string
		checker string
		tamper  bool
		valid   bool
	}

	tt := []table{
		{name: "valid", signer: pkHexKey, checker: pkHexKey, valid: true},
		{name: "wrong-key", signer: pkHexKey, checker: otherHexPK, valid: false},
		{name: "tampered", signer: pkHexKey, checker: pkHexKey, tamper: true, valid: false},
	}

	t.Log("Given the need to sign and verify spend digests.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s signature.", testID, tst.name)
			{
				f := func(t *testing.T) {
					signer, err := crypto.HexToECDSA(tst.signer)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the signer key: %s", failed, testID, err)
					}
					checker, err := crypto.HexToECDSA(tst.checker)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the checker key: %s", failed, testID, err)
					}

					digest := signature.SpendDigest(signature.Sum([]byte("tx")), 1)

					sig, err := signature.Sign(digest, signer)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to sign the digest: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to sign the digest.", success, testID)

					if len(sig) != 128 {
						t.Fatalf("\t%s\tTest %d:\tShould get a 64 byte compact signature, got %d hex chars.", failed, testID, len(sig))
					}

					if tst.tamper {
						digest[0] ^= 0xFF
					}

					err = signature.Verify(signature.PublicKeyHex(checker.PublicKey), sig, hex.EncodeToString(digest[:]))
					switch tst.valid {
					case true:
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould verify the signature: %s", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould verify the signature.", success, testID)
					default:
						if err == nil {
							t.Fatalf("\t%s\tTest %d:\tShould reject the signature.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould reject the signature.", success, testID)
					}
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Hash(t *testing.T) {
	t.Log("Given the need to hash values.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen hashing raw bytes and values.", testID)
		{
			exp := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
			h := signature.Sum([]byte("abc"))
			if got := hex.EncodeToString(h[:]); got != exp {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, got)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, exp)
				t.Fatalf("\t%s\tTest %d:\tShould get back the sha256 of the data.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the sha256 of the data.", success, testID)

			split := signature.Sum([]byte("a"), []byte("bc"))
			if split != h {
				t.Fatalf("\t%s\tTest %d:\tShould hash the concatenation of the parts.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hash the concatenation of the parts.", success, testID)

			value := struct {
				Name  string
				Value uint64
			}{
				Name:  "Bill",
				Value: 10,
			}

			if signature.Hash(value) != signature.Hash(value) {
				t.Fatalf("\t%s\tTest %d:\tShould get back the same hash twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the same hash twice.", success, testID)

			value.Value++
			if signature.Hash(value) == signature.Hash(struct {
				Name  string
				Value uint64
			}{Name: "Bill", Value: 10}) {
				t.Fatalf("\t%s\tTest %d:\tShould get a different hash for different values.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get a different hash for different values.", success, testID)

			if signature.SpendDigest(h, 0) == signature.SpendDigest(h, 1) {
				t.Fatalf("\t%s\tTest %d:\tShould bind the spend digest to the output index.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould bind the spend digest to the output index.", success, testID)
		}
	}
}
