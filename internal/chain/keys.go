package chain

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

const (
	// Ed25519 scheme flag, prepended to public keys and signatures.
	ed25519Flag byte = 0x00

	bech32PrivPrefix = "suiprivkey"
)

// Default derivation path for ed25519 accounts: m/44'/784'/0'/0'/0'.
var defaultDerivationPath = []uint32{44, 784, 0, 0, 0}

// Sponsor is the server-owned keypair that signs and pays for every
// submitted transaction.
type Sponsor struct {
	Address string
	priv    ed25519.PrivateKey
}

// LoadSponsor decodes the sponsor secret. Three encodings are accepted: a
// 12/24-word mnemonic, a bech32 string prefixed "suiprivkey", or 64 hex
// characters (optional 0x prefix).
func LoadSponsor(secret string) (*Sponsor, error) {
	secret = strings.TrimSpace(secret)

	var seed []byte
	switch {
	case strings.HasPrefix(secret, bech32PrivPrefix):
		decoded, err := decodeBech32Key(secret)
		if err != nil {
			return nil, invalidSecretError(err)
		}
		seed = decoded

	case looksLikeHex(secret):
		decoded, err := hex.DecodeString(strings.TrimPrefix(secret, "0x"))
		if err != nil {
			return nil, invalidSecretError(err)
		}
		seed = decoded

	default:
		words := len(strings.Fields(secret))
		if (words != 12 && words != 24) || !bip39.IsMnemonicValid(secret) {
			return nil, invalidSecretError(fmt.Errorf("not a valid mnemonic"))
		}
		seed = deriveEd25519Seed(bip39.NewSeed(secret, ""), defaultDerivationPath)
	}

	if len(seed) != ed25519.SeedSize {
		return nil, invalidSecretError(fmt.Errorf("decoded key is %d bytes, want %d", len(seed), ed25519.SeedSize))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Sponsor{
		Address: deriveAddress(priv.Public().(ed25519.PublicKey)),
		priv:    priv,
	}, nil
}

// SignTransaction produces the serialized signature for raw transaction
// bytes: base64(flag || sig || pubkey) over the blake2b digest of the
// intent message.
func (s *Sponsor) SignTransaction(txBytes []byte) string {
	// Intent prefix: scope=TransactionData, version, app id.
	msg := append([]byte{0, 0, 0}, txBytes...)
	digest := blake2b.Sum256(msg)
	sig := ed25519.Sign(s.priv, digest[:])

	pub := s.priv.Public().(ed25519.PublicKey)
	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, ed25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized)
}

func invalidSecretError(cause error) error {
	return fmt.Errorf("invalid sponsor secret (%v): expected a 12/24-word mnemonic, a bech32 key prefixed %q, or 64 hex characters (optional 0x prefix)", cause, bech32PrivPrefix)
}

func looksLikeHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// decodeBech32Key unwraps a suiprivkey string into the 32-byte seed.
func decodeBech32Key(s string) ([]byte, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, err
	}
	if hrp != bech32PrivPrefix {
		return nil, fmt.Errorf("unexpected prefix %q", hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	// flag byte + 32-byte seed
	if len(raw) != 33 || raw[0] != ed25519Flag {
		return nil, fmt.Errorf("unsupported key payload")
	}
	return raw[1:], nil
}

// deriveEd25519Seed walks a SLIP-10 hardened derivation path from a BIP-39
// master seed. Ed25519 only supports hardened derivation.
func deriveEd25519Seed(masterSeed []byte, path []uint32) []byte {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(masterSeed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, index := range path {
		var data [37]byte
		copy(data[1:33], key)
		binary.BigEndian.PutUint32(data[33:], index|0x80000000)

		mac = hmac.New(sha512.New, chain)
		mac.Write(data[:])
		sum = mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}
	return key
}

// deriveAddress hashes the flagged public key into the account address.
func deriveAddress(pub ed25519.PublicKey) string {
	flagged := append([]byte{ed25519Flag}, pub...)
	digest := blake2b.Sum256(flagged)
	return "0x" + hex.EncodeToString(digest[:])
}
