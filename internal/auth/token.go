package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// Session tokens look like ink_<48 lowercase hex chars>.
const (
	sessionTokenPrefix = "ink_"
	sessionSecretBytes = 24
)

// registrationAlphabet is the character set of emailed registration tokens.
const registrationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	// ErrInvalidTokenFormat indicates a bearer token that could never have been issued.
	ErrInvalidTokenFormat = errors.New("invalid token format")

	sessionTokenRegex = regexp.MustCompile(`^ink_[a-f0-9]{48}$`)
)

// IssuedToken is a freshly minted session token.
type IssuedToken struct {
	Plaintext string // returned to the client once
	Hash      string // stored server side
}

// NewSessionToken mints an opaque bearer token.
func NewSessionToken() (*IssuedToken, error) {
	secret := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	plaintext := sessionTokenPrefix + hex.EncodeToString(secret)
	return &IssuedToken{Plaintext: plaintext, Hash: HashToken(plaintext)}, nil
}

// ValidateSessionToken checks the shape of a presented bearer token.
func ValidateSessionToken(token string) error {
	if !sessionTokenRegex.MatchString(token) {
		return ErrInvalidTokenFormat
	}
	return nil
}

// HashToken returns the hex SHA-256 digest used to store and look up tokens.
// Tokens carry enough entropy that a fast hash is sufficient.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns a log-safe prefix of a token digest.
func ShortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// NewRegistrationToken returns a random alphanumeric string of length n.
func NewRegistrationToken(n int) (string, error) {
	max := big.NewInt(int64(len(registrationAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate registration token: %w", err)
		}
		out[i] = registrationAlphabet[idx.Int64()]
	}
	return string(out), nil
}
