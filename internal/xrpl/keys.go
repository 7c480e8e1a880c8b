package xrpl

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by the XRPL address format
)

// rippleAlphabet is the base58 dictionary used by the XRP Ledger. It differs
// from the Bitcoin alphabet so addresses start with 'r' and seeds with 's'.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

var (
	// ErrBadSeed is returned when a seed string cannot be decoded.
	ErrBadSeed = errors.New("xrpl: malformed seed")

	seedPrefixSecp256k1 = []byte{0x21}
	seedPrefixEd25519   = []byte{0x01, 0xe1, 0x4b}
	accountIDPrefix     = byte(0x00)
)

// Keypair is the signing identity of the anchoring account. Key material is
// derived once from the configured seed at startup and never mutated.
type Keypair interface {
	// Address is the classic address of the account ("r...").
	Address() string
	// PublicKey is the 33-byte SigningPubKey form embedded in transactions.
	PublicKey() []byte
	// Sign signs the serialized signing data of a transaction.
	Sign(signingData []byte) ([]byte, error)
}

// ParseSeed decodes a family seed ("s..." for secp256k1, "sEd..." for
// ed25519) and derives the account keypair for it.
func ParseSeed(seed string) (Keypair, error) {
	payload, err := base58CheckDecode(seed)
	if err != nil {
		return nil, err
	}

	switch {
	case len(payload) == 1+16 && payload[0] == seedPrefixSecp256k1[0]:
		return newSecp256k1Keypair(payload[1:])
	case len(payload) == 3+16 && payload[0] == seedPrefixEd25519[0] &&
		payload[1] == seedPrefixEd25519[1] && payload[2] == seedPrefixEd25519[2]:
		return newEd25519Keypair(payload[3:]), nil
	default:
		return nil, ErrBadSeed
	}
}

// sha512Half returns the first 256 bits of SHA-512 over the inputs, the
// digest the XRPL key-derivation and hashing schemes are built on.
func sha512Half(chunks ...[]byte) []byte {
	h := sha512.New()
	for _, c := range chunks {
		h.Write(c)
	}
	return h.Sum(nil)[:sha256.Size]
}

// classicAddress derives the account address from a 33-byte public key:
// base58check over 0x00 || RIPEMD160(SHA256(pubkey)).
func classicAddress(pubKey []byte) string {
	inner := sha256.Sum256(pubKey)
	r := ripemd160.New()
	r.Write(inner[:])
	accountID := r.Sum(nil)
	return base58CheckEncode(append([]byte{accountIDPrefix}, accountID...))
}

// ── ed25519 family ─────────────────────────────────────────────────────────

type ed25519Keypair struct {
	priv ed25519.PrivateKey
	pub  []byte // 0xED || 32-byte public key
	addr string
}

func newEd25519Keypair(entropy []byte) *ed25519Keypair {
	priv := ed25519.NewKeyFromSeed(sha512Half(entropy))
	pub := append([]byte{0xed}, priv.Public().(ed25519.PublicKey)...)
	return &ed25519Keypair{priv: priv, pub: pub, addr: classicAddress(pub)}
}

func (k *ed25519Keypair) Address() string   { return k.addr }
func (k *ed25519Keypair) PublicKey() []byte { return k.pub }

// Sign signs the raw signing data; ed25519 hashes internally.
func (k *ed25519Keypair) Sign(signingData []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, signingData), nil
}

// ── secp256k1 family ───────────────────────────────────────────────────────

type secp256k1Keypair struct {
	priv *btcec.PrivateKey
	pub  []byte
	addr string
}

// newSecp256k1Keypair runs the XRPL two-stage derivation: a root key from
// the seed entropy, then account key 0 of family 0 offset from it.
func newSecp256k1Keypair(entropy []byte) (*secp256k1Keypair, error) {
	n := btcec.S256().N

	rootScalar, err := deriveScalar(n, entropy)
	if err != nil {
		return nil, err
	}
	rootPriv, _ := btcec.PrivKeyFromBytes(scalarBytes(rootScalar))
	rootPub := rootPriv.PubKey().SerializeCompressed()

	var family [4]byte // family 0
	offset, err := deriveScalar(n, rootPub, family[:])
	if err != nil {
		return nil, err
	}

	account := new(big.Int).Add(rootScalar, offset)
	account.Mod(account, n)
	if account.Sign() == 0 {
		return nil, ErrBadSeed
	}

	priv, _ := btcec.PrivKeyFromBytes(scalarBytes(account))
	pub := priv.PubKey().SerializeCompressed()
	return &secp256k1Keypair{priv: priv, pub: pub, addr: classicAddress(pub)}, nil
}

// deriveScalar hashes prefix || be32(i) for i = 0, 1, ... until the result
// is a valid curve scalar. Termination after the first few candidates is
// overwhelmingly likely; the iteration cap only guards against a broken seed.
func deriveScalar(n *big.Int, prefix ...[]byte) (*big.Int, error) {
	var idx [4]byte
	for i := uint32(0); i < 128; i++ {
		binary.BigEndian.PutUint32(idx[:], i)
		candidate := new(big.Int).SetBytes(sha512Half(append(prefix, idx[:])...))
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 {
			return candidate, nil
		}
	}
	return nil, ErrBadSeed
}

func scalarBytes(s *big.Int) []byte {
	b := make([]byte, 32)
	s.FillBytes(b)
	return b
}

func (k *secp256k1Keypair) Address() string   { return k.addr }
func (k *secp256k1Keypair) PublicKey() []byte { return k.pub }

// Sign signs SHA512Half(signingData) and returns the canonical DER encoding.
func (k *secp256k1Keypair) Sign(signingData []byte) ([]byte, error) {
	sig := btcecdsa.Sign(k.priv, sha512Half(signingData))
	return sig.Serialize(), nil
}

// ── base58 (ripple alphabet) ───────────────────────────────────────────────

func base58CheckEncode(payload []byte) string {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return base58Encode(append(payload, second[:4]...))
}

func base58CheckDecode(s string) ([]byte, error) {
	raw, err := base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < 5 {
		return nil, ErrBadSeed
	}
	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != second[i] {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrBadSeed)
		}
	}
	return payload, nil
}

func base58Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)
	base := big.NewInt(58)
	mod := new(big.Int)

	var out []byte
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, rippleAlphabet[mod.Int64()])
	}
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, rippleAlphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func base58Decode(s string) ([]byte, error) {
	x := new(big.Int)
	base := big.NewInt(58)
	for _, c := range s {
		idx := int64(-1)
		for i, a := range rippleAlphabet {
			if a == c {
				idx = int64(i)
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: invalid character %q", ErrBadSeed, c)
		}
		x.Mul(x, base)
		x.Add(x, big.NewInt(idx))
	}

	out := x.Bytes()
	for i := 0; i < len(s) && s[i] == rippleAlphabet[0]; i++ {
		out = append([]byte{0}, out...)
	}
	return out, nil
}
