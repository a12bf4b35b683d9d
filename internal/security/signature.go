package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ErrInvalidSignatureEncoding is returned by RecoverSigner for signatures
// that are not 65 bytes of hex or carry an unknown recovery id.
var ErrInvalidSignatureEncoding = errors.New("invalid signature encoding")

// IsWalletAddress reports whether s is a syntactically valid wallet address
// (0x followed by 40 hex digits). Checksum casing is not enforced; addresses
// are compared case-insensitively everywhere.
func IsWalletAddress(s string) bool {
	return walletAddressPattern.MatchString(s)
}

// VerifyWalletSignature reports whether signature over message was produced
// by the key behind wallet. It is a pure predicate: malformed addresses,
// malformed signatures, and failed recoveries all yield false, never an
// error, so callers have a single rejection path.
func VerifyWalletSignature(wallet, message, signature string) bool {
	if !IsWalletAddress(wallet) {
		return false
	}
	recovered, err := RecoverSigner(message, signature)
	if err != nil {
		return false
	}
	return strings.EqualFold(recovered, wallet)
}

// RecoverSigner recovers the signer address from a personal-message
// signature (EIP-191: the message is prefixed and Keccak-256 hashed before
// signing). signature is hex, optionally 0x-prefixed, in r||s||v layout with
// v either {0,1} or {27,28}.
func RecoverSigner(message, signature string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}
	if len(raw) != 65 {
		return "", ErrInvalidSignatureEncoding
	}
	v := raw[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", ErrInvalidSignatureEncoding
	}

	// RecoverCompact expects v||r||s with v in [27,30].
	compact := make([]byte, 65)
	compact[0] = v
	copy(compact[1:], raw[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageDigest(message))
	if err != nil {
		return "", err
	}
	return AddressFromPubKey(pub), nil
}

// PersonalMessageDigest returns the Keccak-256 digest of message under the
// EIP-191 personal-sign envelope ("\x19Ethereum Signed Message:\n" + length).
func PersonalMessageDigest(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return h.Sum(nil)
}

// AddressFromPubKey derives the wallet address for a secp256k1 public key:
// the last 20 bytes of the Keccak-256 of the uncompressed key without its
// 0x04 prefix, rendered as lowercase hex.
func AddressFromPubKey(pub *btcec.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}
