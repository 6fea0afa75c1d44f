package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config controls token issuance and verification.
type Config struct {
	// Secret signs and verifies tokens. It is expected to live for the
	// process only; restarting the issuer invalidates all outstanding tokens.
	Secret []byte
	// TTL is the lifetime applied to issued tokens.
	TTL time.Duration

	// now overrides the clock in tests.
	now func() time.Time
}

// Manager issues and verifies signed, self-contained tokens. Tokens carry the
// subject account id, a numeric purpose code, and an expiry; they are never
// persisted and verify purely by signature and expiry.
type Manager struct {
	config Config
}

// Claims is the claim set carried by issued tokens.
type Claims struct {
	Purpose int `json:"pur"`
	jwt.RegisteredClaims
}

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures, and expired
	// tokens alike: verification does not distinguish them to callers.
	ErrTokenInvalid = errors.New("token invalid")

	errNoSecret   = errors.New("signing secret required")
	errInvalidTTL = errors.New("invalid TTL configuration")
)

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errNoSecret
	}
	if cfg.TTL <= 0 {
		return nil, errInvalidTTL
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a token for the given subject account and purpose code.
func (m *Manager) Issue(accountID uint64, purpose int) (string, error) {
	now := m.config.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(m.config.Secret)
}

// Verify checks signature and expiry and returns the subject account id and
// purpose code. Any failure, including expiry, is reported as ErrTokenInvalid.
func (m *Manager) Verify(token string) (uint64, int, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(*jwt.Token) (any, error) { return m.config.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.now),
	)
	if err != nil || !parsed.Valid {
		return 0, 0, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return 0, 0, ErrTokenInvalid
	}
	accountID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, 0, ErrTokenInvalid
	}
	return accountID, claims.Purpose, nil
}
