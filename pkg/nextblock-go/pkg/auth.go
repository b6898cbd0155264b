package pkg

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// AuthSeparator joins the auth message fields. Fields are never escaped; the
// relay splits on it verbatim.
const AuthSeparator = "|"

var errMalformedAuthMessage = errors.New("malformed auth message")

// AuthMessage is the challenge presented to the relay. Its string form is
// domain|publickey|nonce|timestamp and is what gets signed.
type AuthMessage struct {
	Domain    string
	PublicKey string
	Nonce     uint64
	Timestamp int64 // unix seconds at construction
}

func (m AuthMessage) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", m.Domain, m.PublicKey, m.Nonce, m.Timestamp)
}

// ParseAuthMessage splits s back into its four fields.
func ParseAuthMessage(s string) (AuthMessage, error) {
	parts := strings.Split(s, AuthSeparator)
	if len(parts) != 4 {
		return AuthMessage{}, errors.Wrapf(errMalformedAuthMessage, "want 4 fields, got %d", len(parts))
	}

	nonce, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return AuthMessage{}, errors.Wrap(errMalformedAuthMessage, "nonce: "+err.Error())
	}

	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return AuthMessage{}, errors.Wrap(errMalformedAuthMessage, "timestamp: "+err.Error())
	}

	return AuthMessage{Domain: parts[0], PublicKey: parts[1], Nonce: nonce, Timestamp: ts}, nil
}

// Handshake is a signed auth message, valid for one connection attempt.
type Handshake struct {
	Message   AuthMessage
	Signature solana.Signature
}

// BuildAuthMessage signs a fresh challenge for domain with a random nonce and the current time.
func BuildAuthMessage(domain string, cred *Credential) (*Handshake, error) {
	return NewAuthenticationService(domain, cred).Handshake()
}

// AuthenticationService produces handshakes for one relay domain.
type AuthenticationService struct {
	Domain     string
	Credential *Credential

	now   func() time.Time
	nonce func() (uint64, error)
}

func NewAuthenticationService(domain string, cred *Credential) *AuthenticationService {
	return &AuthenticationService{
		Domain:     domain,
		Credential: cred,
		now:        time.Now,
		nonce:      randomNonce,
	}
}

// Handshake builds and signs a new auth message. Call it once per connection
// attempt; nonces must not be reused.
func (as *AuthenticationService) Handshake() (*Handshake, error) {
	nonce, err := as.nonce()
	if err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	msg := AuthMessage{
		Domain:    as.Domain,
		PublicKey: as.Credential.PublicKey().String(),
		Nonce:     nonce,
		Timestamp: as.now().Unix(),
	}

	sig, err := as.Credential.Sign([]byte(msg.String()))
	if err != nil {
		return nil, err
	}

	return &Handshake{Message: msg, Signature: sig}, nil
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
