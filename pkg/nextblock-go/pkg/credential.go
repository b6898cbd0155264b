package pkg

import (
	"bytes"
	"crypto/ed25519"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSigningFailed     = errors.New("signing failed")
)

// Credential is the keypair the stream subscription is authenticated with.
// It is immutable once loaded.
type Credential struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// LoadCredential decodes a base58 encoded 64 byte ed25519 keypair
// (seed followed by public key), the format wallets export.
func LoadCredential(secret string) (*Credential, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.Wrap(ErrInvalidCredential, "empty secret")
	}

	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCredential, "secret is not base58")
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidCredential, "secret decodes to %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}

	// the trailing public half must match the seed, otherwise the relay
	// would verify against an identity we never signed with
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrInvalidCredential, "public key does not match seed")
	}

	privateKey := solana.PrivateKey(raw)
	return &Credential{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// PublicKey is the identity the relay verifies signatures against.
func (c *Credential) PublicKey() solana.PublicKey {
	return c.publicKey
}

// Sign signs message exactly as given.
func (c *Credential) Sign(message []byte) (solana.Signature, error) {
	sig, err := c.privateKey.Sign(message)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrSigningFailed, err.Error())
	}
	return sig, nil
}
