package services

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/utils"
)

// ---------------------------------------------------------------------
// TokenCodec interface
// ---------------------------------------------------------------------

// AccessClaims is the decoded payload of an access token.
type AccessClaims struct {
	UserID    uuid.UUID
	Role      models.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Remaining returns the token lifetime left at now. Negative once expired.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// TokenCodec mints and decodes signed access tokens. Pure: no I/O, no state
// beyond the key material and the clock.
type TokenCodec interface {
	// Mint signs a new access token for the subject acting as role.
	// notBefore is set to issuedAt; expiry to issuedAt + the configured
	// validity.
	Mint(userID uuid.UUID, role models.Role) (token string, expiresAt time.Time, err error)

	// Decode verifies the signature against the algorithm allow-list and
	// returns the claims. With signatureOnly, the time window and
	// issuer/audience checks are skipped; refresh and logout must trust
	// the role claim of an access token that has already expired.
	// An undecodable structure or uninterpretable claim yields
	// utils.ErrMalformedToken; a bad signature yields a different error.
	Decode(tokenString string, signatureOnly bool) (*AccessClaims, error)
}

// ---------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------

type tokenCodec struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	issuer      string
	audience    string
	allowedAlgs []string
	validity    time.Duration

	now func() time.Time
}

func NewTokenCodec(cfg *config.Config) TokenCodec {
	return &tokenCodec{
		privateKey:  cfg.RSAPrivateKey,
		publicKey:   cfg.RSAPublicKey,
		issuer:      cfg.TokenIssuer,
		audience:    cfg.TokenAudience,
		allowedAlgs: cfg.AllowedSigningAlgs,
		validity:    cfg.AccessTokenExpiry,
		now:         time.Now,
	}
}

func (c *tokenCodec) Mint(userID uuid.UUID, role models.Role) (string, time.Time, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.validity)

	claims := jwt.MapClaims{
		"iss":  c.issuer,
		"aud":  c.audience,
		"sub":  userID.String(),
		"role": role.String(),
		"iat":  issuedAt.Unix(),
		"nbf":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
		"jti":  uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (c *tokenCodec) Decode(tokenString string, signatureOnly bool) (*AccessClaims, error) {
	// Claims are validated by hand below so that the expiry boundary stays
	// pinned to now >= exp regardless of library defaults.
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.allowedAlgs),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return c.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, utils.ErrMalformedToken
		}
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, utils.ErrMalformedToken
	}

	claims, err := c.extractClaims(mapClaims)
	if err != nil {
		return nil, err
	}

	if !signatureOnly {
		if err := c.validateWindow(mapClaims, claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func (c *tokenCodec) extractClaims(mapClaims jwt.MapClaims) (*AccessClaims, error) {
	sub, ok := mapClaims["sub"].(string)
	if !ok {
		return nil, utils.ErrMalformedToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, utils.ErrMalformedToken
	}

	roleStr, ok := mapClaims["role"].(string)
	if !ok {
		return nil, utils.ErrMalformedToken
	}
	role, err := models.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}

	jti, ok := mapClaims["jti"].(string)
	if !ok {
		return nil, utils.ErrMalformedToken
	}

	iat, ok := mapClaims["iat"].(float64)
	if !ok {
		return nil, utils.ErrMalformedToken
	}
	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, utils.ErrMalformedToken
	}

	return &AccessClaims{
		UserID:    userID,
		Role:      role,
		TokenID:   jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

func (c *tokenCodec) validateWindow(mapClaims jwt.MapClaims, claims *AccessClaims) error {
	now := c.now()

	iss, _ := mapClaims["iss"].(string)
	if iss != c.issuer {
		return fmt.Errorf("invalid token issuer %q", iss)
	}
	aud, _ := mapClaims["aud"].(string)
	if aud != c.audience {
		return fmt.Errorf("invalid token audience %q", aud)
	}

	if nbf, ok := mapClaims["nbf"].(float64); ok {
		if now.Before(time.Unix(int64(nbf), 0)) {
			return jwt.ErrTokenNotValidYet
		}
	}
	// A token is already expired at exactly its expiry instant.
	if !now.Before(claims.ExpiresAt) {
		return jwt.ErrTokenExpired
	}
	return nil
}
