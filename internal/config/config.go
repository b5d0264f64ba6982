package config

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/gridvolt/auth-service/internal/utils"
)

// Config holds all application configuration. It is built once at startup
// and immutable for the process lifetime.
type Config struct {
	AppName string
	AppPort string
	AppUrl  string
	DBUrl   string

	// RedisUrl is optional; when empty the service falls back to the
	// in-process blacklist store.
	RedisUrl string

	TokenIssuer        string
	TokenAudience      string
	RSAPrivateKey      *rsa.PrivateKey
	RSAPublicKey       *rsa.PublicKey
	AllowedSigningAlgs []string

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	MaxLoginAttempts int
	AttemptWindow    time.Duration
	LockDuration     time.Duration

	ResetCodeLength int
	ResetCodeExpiry time.Duration

	SendGridAPIKey   string
	SendGridFrom     string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string

	// Static flags fetched once from LaunchDarkly when LD_SDK_KEY is set.
	LDFlag_ShortTokenTTL       bool
	LDFlag_SendgridSandboxMode bool
}

// Constants for time-based configuration defaults.
const (
	AppName                     = "auth-service"
	DefaultTokenIssuer          = "GridVolt"
	DefaultTokenAudience        = "gridvolt-api"
	MaxLoginAttempts            = 10
	AttemptWindow               = 5 * time.Minute
	LockDuration                = 10 * time.Minute
	ResetCodeLength             = 6
	DefaultResetCodeExpiry      = 5 * time.Minute
	DefaultTokenExpiry          = 10 * time.Minute
	DefaultRefreshTokenDays     = 7
	TestShortTokenExpiry        = 2 * time.Second
	TestShortRefreshTokenExpiry = 8 * time.Second
	LDConnectionTimeout         = 5 * time.Second
	RefreshTokenLength          = 64
)

// LoadConfig reads the environment, parses key material, optionally fetches
// static LaunchDarkly flags, and returns a *Config. Misconfiguration is
// fatal: a service without a signing key or sane validity windows must not
// come up.
func LoadConfig() *Config {
	appName := envOr("APP_NAME", AppName)
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}
	appUrl := os.Getenv("APP_URL")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL env var is missing")
	}
	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		utils.Logger.Fatal("DB_URL env var is missing")
	}

	//----------------------------------------------------------------------
	// Signing key material.
	//----------------------------------------------------------------------
	privateKey := parseRSAPrivateKey("RSA_PRIVATE_KEY_BASE64")
	publicKey := parseRSAPublicKey("RSA_PUBLIC_KEY_BASE64")

	allowedAlgs := strings.Split(envOr("ALLOWED_SIGNING_ALGS", "RS256"), ",")
	for i := range allowedAlgs {
		allowedAlgs[i] = strings.TrimSpace(allowedAlgs[i])
	}

	//----------------------------------------------------------------------
	// Validity windows.
	//----------------------------------------------------------------------
	accessTokenExpiry := durationOr("ACCESS_TOKEN_TTL", DefaultTokenExpiry)
	refreshDays := intOr("REFRESH_TOKEN_DAYS", DefaultRefreshTokenDays)
	refreshTokenExpiry := time.Duration(refreshDays) * 24 * time.Hour

	if accessTokenExpiry <= 0 || refreshTokenExpiry <= 0 {
		utils.Logger.Fatal("Token validity windows must be positive")
	}

	cfg := &Config{
		AppName:            appName,
		AppPort:            appPort,
		AppUrl:             appUrl,
		DBUrl:              dbUrl,
		RedisUrl:           os.Getenv("REDIS_URL"),
		TokenIssuer:        envOr("JWT_ISSUER", DefaultTokenIssuer),
		TokenAudience:      envOr("JWT_AUDIENCE", DefaultTokenAudience),
		RSAPrivateKey:      privateKey,
		RSAPublicKey:       publicKey,
		AllowedSigningAlgs: allowedAlgs,
		AccessTokenExpiry:  accessTokenExpiry,
		RefreshTokenExpiry: refreshTokenExpiry,
		MaxLoginAttempts:   intOr("MAX_LOGIN_ATTEMPTS", MaxLoginAttempts),
		AttemptWindow:      durationOr("ATTEMPT_WINDOW", AttemptWindow),
		LockDuration:       durationOr("LOCK_DURATION", LockDuration),
		ResetCodeLength:    ResetCodeLength,
		ResetCodeExpiry:    durationOr("RESET_CODE_EXPIRY", DefaultResetCodeExpiry),
		SendGridAPIKey:     os.Getenv("SENDGRID_API_KEY"),
		SendGridFrom:       os.Getenv("SENDGRID_FROM_EMAIL"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:    os.Getenv("TWILIO_FROM_PHONE"),
	}

	//----------------------------------------------------------------------
	// Optional static LaunchDarkly flags.
	//----------------------------------------------------------------------
	if sdkKey := os.Getenv("LD_SDK_KEY"); sdkKey != "" {
		loadLDFlags(cfg, sdkKey)
	}

	if cfg.LDFlag_ShortTokenTTL {
		cfg.AccessTokenExpiry = TestShortTokenExpiry
		cfg.RefreshTokenExpiry = TestShortRefreshTokenExpiry
	}

	return cfg
}

func loadLDFlags(cfg *Config, sdkKey string) {
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	context := ldcontext.NewWithKind("service", cfg.AppName)

	shortTokenTTL, err := ldClient.BoolVariation("short_token_ttl", context, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving short_token_ttl flag")
	}
	utils.Logger.Debugf("short_token_ttl flag: %t", shortTokenTTL)

	sendgridSandbox, err := ldClient.BoolVariation("sendgrid_sandbox_mode", context, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving sendgrid_sandbox_mode flag")
	}
	utils.Logger.Debugf("sendgrid_sandbox_mode flag: %t", sendgridSandbox)

	cfg.LDFlag_ShortTokenTTL = shortTokenTTL
	cfg.LDFlag_SendgridSandboxMode = sendgridSandbox
}

func parseRSAPrivateKey(envName string) *rsa.PrivateKey {
	b64 := os.Getenv(envName)
	if b64 == "" {
		utils.Logger.Fatalf("%s env var is missing", envName)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Failed to decode %s from base64", envName)
	}
	if block, _ := pem.Decode(keyPEM); block == nil {
		utils.Logger.Fatalf("Failed to decode PEM block from %s", envName)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA private key")
	}
	return key
}

func parseRSAPublicKey(envName string) *rsa.PublicKey {
	b64 := os.Getenv(envName)
	if b64 == "" {
		utils.Logger.Fatalf("%s env var is missing", envName)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Failed to decode %s from base64", envName)
	}
	if block, _ := pem.Decode(keyPEM); block == nil {
		utils.Logger.Fatalf("Failed to decode PEM block from %s", envName)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(keyPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}
	return key
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func intOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Invalid integer in %s", name)
	}
	return n
}

func durationOr(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Invalid duration in %s", name)
	}
	return d
}
