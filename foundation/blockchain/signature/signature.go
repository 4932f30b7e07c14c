// Package signature provides helper functions for handling the blockchain
// hashing, signature and address needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ZeroHash represents a hash code of zeros.
var ZeroHash [32]byte

// AddressVersion is the version byte prepended to the hash160 of a public
// key before the base58check encoding.
const AddressVersion byte = 0x00

// signatureLength is the size of a compact R|S signature.
const signatureLength = 64

// =============================================================================

// Sum returns the sha256 of the concatenation of the provided byte slices.
func Sum(data ...[]byte) [32]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hash returns a unique hash for the value based on its canonical RLP
// encoding. A value that can't be encoded hashes to the ZeroHash.
func Hash(value any) [32]byte {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return ZeroHash
	}

	return sha256.Sum256(data)
}

// SpendDigest returns the standard message signed by the owner of an output
// to authorize spending it: sha256(txHash || index).
func SpendDigest(txHash [32]byte, index uint32) [32]byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)

	return Sum(txHash[:], idx[:])
}

// =============================================================================

// PublicKeyBytes returns the compressed form of the public key.
func PublicKeyBytes(pk ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(&pk)
}

// PublicKeyHex returns the compressed public key as a hex string.
func PublicKeyHex(pk ecdsa.PublicKey) string {
	return hex.EncodeToString(PublicKeyBytes(pk))
}

// Address derives the address for the serialized public key:
// base58(version || ripemd160(sha256(pk)) || checksum).
func Address(publicKey []byte) string {
	return base58.CheckEncode(btcutil.Hash160(publicKey), AddressVersion)
}

// AddressFromHex derives the address for a hex encoded public key.
func AddressFromHex(publicKeyHex string) (string, error) {
	pk, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("decoding public key: %w", err)
	}

	if _, err := crypto.DecompressPubkey(pk); err != nil {
		if _, err := crypto.UnmarshalPubkey(pk); err != nil {
			return "", errors.New("invalid public key")
		}
	}

	return Address(pk), nil
}

// PublicKeyToAddress derives the address for the specified public key.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return Address(PublicKeyBytes(pk))
}

// ValidateAddress checks the address is base58check encoded with the
// expected version byte and a 20 byte payload.
func ValidateAddress(address string) error {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return fmt.Errorf("decoding address: %w", err)
	}

	if version != AddressVersion {
		return fmt.Errorf("invalid address version %d", version)
	}

	if len(payload) != 20 {
		return fmt.Errorf("invalid address length %d", len(payload))
	}

	return nil
}

// =============================================================================

// Sign uses the specified private key to sign the 32 byte digest. The
// signature is returned as the hex encoding of the compact R|S form.
func Sign(digest [32]byte, privateKey *ecdsa.PrivateKey) (string, error) {

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", err
	}

	// Check the signature against the public key before handing it out.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(&privateKey.PublicKey), digest[:], rs) {
		return "", errors.New("invalid signature")
	}

	return hex.EncodeToString(rs), nil
}

// Verify checks the hex encoded signature was produced over the hex encoded
// 32 byte message by the owner of the hex encoded public key.
func Verify(publicKeyHex string, sigHex string, msgHex string) error {
	pk, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decoding signature: %w", err)
	}

	msg, err := hex.DecodeString(msgHex)
	if err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}

	if len(sig) != signatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	if len(msg) != 32 {
		return fmt.Errorf("invalid message length %d", len(msg))
	}

	if !crypto.VerifySignature(pk, msg, sig) {
		return errors.New("signature verification failed")
	}

	return nil
}
