package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
)

type TokenPurpose string

const (
	PurposeSession           TokenPurpose = "session"
	PurposePasswordReset     TokenPurpose = "password_reset"
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
)

func (p TokenPurpose) valid() bool {
	switch p {
	case PurposeSession, PurposePasswordReset, PurposeEmailConfirmation:
		return true
	default:
		return false
	}
}

// TokenCodecConfig is built once at startup. Now defaults to time.Now.
type TokenCodecConfig struct {
	Issuer string
	Secret []byte
	Now    func() time.Time
}

type TokenClaims struct {
	SubjectID uint
	Purpose   TokenPurpose
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type signedClaims struct {
	jwt.RegisteredClaims
	Purpose TokenPurpose `json:"pur"`
}

type TokenCodec struct {
	issuer string
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenCodec(cfg *TokenCodecConfig) (*TokenCodec, error) {
	if cfg == nil || len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidInput)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &TokenCodec{
		issuer: cfg.Issuer,
		secret: secret,
		now:    now,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (c *TokenCodec) Issue(subjectID uint, purpose TokenPurpose, ttl time.Duration) (string, time.Time, error) {
	if subjectID == 0 {
		return "", time.Time{}, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if !purpose.valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown token purpose %q", ErrInvalidInput, purpose)
	}
	if ttl < 0 {
		return "", time.Time{}, fmt.Errorf("%w: negative ttl", ErrInvalidInput)
	}
	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims := signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatUint(uint64(subjectID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Purpose: purpose,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (c *TokenCodec) Decode(token string) (*TokenClaims, error) {
	claims := &signedClaims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, c.classify(token, err)
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 || uint64(uint(id)) != id {
		return nil, fmt.Errorf("%w: invalid subject", ErrMalformedToken)
	}
	if !claims.Purpose.valid() {
		return nil, fmt.Errorf("%w: invalid purpose", ErrMalformedToken)
	}
	out := &TokenClaims{
		SubjectID: uint(id),
		Purpose:   claims.Purpose,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// classify maps parser failures onto the codec's error set. The parser decodes
// claims before checking the signature, so a corrupted payload surfaces as
// malformed; such tokens are re-checked against the key so that tampering is
// always reported as a signature failure.
func (c *TokenCodec) classify(token string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed):
		if c.hasForeignSignature(token) {
			return ErrInvalidSignature
		}
		return ErrMalformedToken
	default:
		if c.hasForeignSignature(token) {
			return ErrInvalidSignature
		}
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func (c *TokenCodec) hasForeignSignature(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return true
	}
	return jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, c.secret) != nil
}
