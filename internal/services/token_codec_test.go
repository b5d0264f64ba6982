package services

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/utils"
)

func newTestCodec(t *testing.T) *tokenCodec {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &tokenCodec{
		privateKey:  key,
		publicKey:   &key.PublicKey,
		issuer:      "GridVolt",
		audience:    "gridvolt-api",
		allowedAlgs: []string{"RS256"},
		validity:    10 * time.Minute,
		now:         time.Now,
	}
}

func TestMintDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	userID := uuid.New()

	token, expiresAt, err := codec.Mint(userID, models.RoleInstaller)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 2*time.Second)

	claims, err := codec.Decode(token, false)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, models.RoleInstaller, claims.Role)
	require.NotEmpty(t, claims.TokenID)
	// exp is serialized at second precision.
	require.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	minter := newTestCodec(t)
	verifier := newTestCodec(t)

	token, _, err := minter.Mint(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	_, err = verifier.Decode(token, false)
	require.Error(t, err)
	require.NotErrorIs(t, err, utils.ErrMalformedToken)

	// Signature-only mode still verifies the signature.
	_, err = verifier.Decode(token, true)
	require.Error(t, err)
}

func TestDecodeRejectsDisallowedAlgorithm(t *testing.T) {
	codec := newTestCodec(t)

	// An HS256 token signed with the public key bytes as the HMAC secret
	// must be rejected by the allow-list before signature verification.
	claims := jwt.MapClaims{
		"iss":  codec.issuer,
		"aud":  codec.audience,
		"sub":  uuid.NewString(),
		"role": models.RoleAdministrator.String(),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
		"jti":  uuid.NewString(),
	}
	hsToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = codec.Decode(hsToken, false)
	require.Error(t, err)
	_, err = codec.Decode(hsToken, true)
	require.Error(t, err)
}

func TestDecodeMalformedToken(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := codec.Decode(input, false)
		require.ErrorIs(t, err, utils.ErrMalformedToken, "input %q", input)
	}
}

func TestDecodeRejectsUnknownRole(t *testing.T) {
	codec := newTestCodec(t)

	claims := jwt.MapClaims{
		"iss":  codec.issuer,
		"aud":  codec.audience,
		"sub":  uuid.NewString(),
		"role": "superuser",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
		"jti":  uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(codec.privateKey)
	require.NoError(t, err)

	_, err = codec.Decode(token, false)
	require.ErrorIs(t, err, utils.ErrMalformedToken)
}

func TestDecodeExpiryBoundary(t *testing.T) {
	codec := newTestCodec(t)
	issuedAt := time.Unix(1700000000, 0)
	codec.now = func() time.Time { return issuedAt }

	token, expiresAt, err := codec.Mint(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	// Just inside the window.
	codec.now = func() time.Time { return expiresAt.Add(-time.Second) }
	_, err = codec.Decode(token, false)
	require.NoError(t, err)

	// Exactly at expiry the token is already dead.
	codec.now = func() time.Time { return expiresAt }
	_, err = codec.Decode(token, false)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	codec.now = func() time.Time { return expiresAt.Add(time.Second) }
	_, err = codec.Decode(token, false)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSignatureOnlyDecodeOfExpiredToken(t *testing.T) {
	codec := newTestCodec(t)
	issuedAt := time.Unix(1700000000, 0)
	codec.now = func() time.Time { return issuedAt }

	userID := uuid.New()
	token, expiresAt, err := codec.Mint(userID, models.RoleAdministrator)
	require.NoError(t, err)

	codec.now = func() time.Time { return expiresAt.Add(time.Hour) }

	_, err = codec.Decode(token, false)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := codec.Decode(token, true)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, models.RoleAdministrator, claims.Role)
}

func TestDecodeRejectsWrongIssuerAndAudience(t *testing.T) {
	codec := newTestCodec(t)
	token, _, err := codec.Mint(uuid.New(), models.RoleUser)
	require.NoError(t, err)

	other := &tokenCodec{
		privateKey:  codec.privateKey,
		publicKey:   codec.publicKey,
		issuer:      "SomeoneElse",
		audience:    codec.audience,
		allowedAlgs: codec.allowedAlgs,
		validity:    codec.validity,
		now:         time.Now,
	}
	_, err = other.Decode(token, false)
	require.Error(t, err)

	other.issuer = codec.issuer
	other.audience = "other-api"
	_, err = other.Decode(token, false)
	require.Error(t, err)
}
