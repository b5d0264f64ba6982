package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gridvolt/auth-service/internal/cache"
	"github.com/gridvolt/auth-service/internal/config"
	"github.com/gridvolt/auth-service/internal/models"
	"github.com/gridvolt/auth-service/internal/repositories"
	"github.com/gridvolt/auth-service/internal/utils"
)

// ---------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier || u.PhoneNumber == identifier {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

type fakeLoginRepo struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*repositories.LoginAttempts
}

func newFakeLoginRepo() *fakeLoginRepo {
	return &fakeLoginRepo{attempts: make(map[uuid.UUID]*repositories.LoginAttempts)}
}

func (r *fakeLoginRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*repositories.LoginAttempts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[userID]; ok {
		return a, nil
	}
	a := &repositories.LoginAttempts{UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.attempts[userID] = a
	return a, nil
}

func (r *fakeLoginRepo) Increment(_ context.Context, userID uuid.UUID, lockDuration, _ time.Duration, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.attempts[userID]
	a.AttemptCount++
	if a.AttemptCount >= maxAttempts {
		until := time.Now().Add(lockDuration)
		a.LockedUntil = &until
	}
	return nil
}

func (r *fakeLoginRepo) Reset(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[userID]; ok {
		a.AttemptCount = 0
		a.LockedUntil = nil
	}
	return nil
}

func (r *fakeLoginRepo) IsLocked(_ context.Context, userID uuid.UUID) (bool, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[userID]
	if !ok || a.LockedUntil == nil || time.Now().After(*a.LockedUntil) {
		return false, time.Time{}, nil
	}
	return true, *a.LockedUntil, nil
}

func (r *fakeLoginRepo) CleanupStale(_ context.Context) error { return nil }

// fakeTokenRepo mirrors the SQL semantics: rows keyed by hash, consume is a
// single guarded mutation under the lock.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
	now    func() time.Time
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*models.RefreshToken), now: time.Now}
}

func (r *fakeTokenRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	stored.TokenHash = utils.HashToken(token.Token)
	stored.Token = ""
	r.tokens[stored.TokenHash] = &stored
	return nil
}

func (r *fakeTokenRepo) GetRefreshToken(_ context.Context, rawToken string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[utils.HashToken(rawToken)]
	if !ok {
		return nil, nil
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeTokenRepo) GetActiveRefreshToken(_ context.Context, rawToken string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[utils.HashToken(rawToken)]
	if !ok || !rt.IsActive(r.now()) {
		return nil, nil
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeTokenRepo) ConsumeRefreshToken(_ context.Context, rawToken string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[utils.HashToken(rawToken)]
	if !ok || !rt.IsActive(r.now()) {
		return nil, nil
	}
	revokedAt := r.now()
	rt.RevokedAt = &revokedAt
	cp := *rt
	return &cp, nil
}

func (r *fakeTokenRepo) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.tokens[tokenHash]; ok && rt.RevokedAt == nil {
		revokedAt := r.now()
		rt.RevokedAt = &revokedAt
	}
	return nil
}

func (r *fakeTokenRepo) RevokeAllRefreshTokensByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			revokedAt := r.now()
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (r *fakeTokenRepo) CleanupExpiredRefreshTokens(_ context.Context) error { return nil }

// plainHasher keeps the tests fast; bcrypt has its own test.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(password, hash string) bool    { return "plain:"+password == hash }

// ---------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------

type sessionFixture struct {
	svc       *sessionService
	users     *fakeUserRepo
	logins    *fakeLoginRepo
	tokens    *fakeTokenRepo
	blacklist cache.BlacklistStore
	cfg       *config.Config
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	cfg := &config.Config{
		TokenIssuer:        "GridVolt",
		TokenAudience:      "gridvolt-api",
		AllowedSigningAlgs: []string{"RS256"},
		AccessTokenExpiry:  10 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		MaxLoginAttempts:   3,
		AttemptWindow:      5 * time.Minute,
		LockDuration:       10 * time.Minute,
	}

	users := newFakeUserRepo()
	logins := newFakeLoginRepo()
	tokens := newFakeTokenRepo()

	blacklist := cache.NewMemoryBlacklist(time.Minute)
	t.Cleanup(blacklist.Close)

	codec := newTestCodec(t)
	codec.validity = cfg.AccessTokenExpiry

	svc := NewSessionService(users, logins, tokens, blacklist, codec, plainHasher{}, cfg).(*sessionService)

	return &sessionFixture{
		svc:       svc,
		users:     users,
		logins:    logins,
		tokens:    tokens,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

func (f *sessionFixture) addUser(t *testing.T, username, password string, roles ...models.Role) *models.User {
	t.Helper()
	hash, err := plainHasher{}.Hash(password)
	require.NoError(t, err)
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PhoneNumber:  "+1555" + username,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// ---------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------

func TestLoginUniformFailureMessage(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "ana", "correct-horse", models.RoleInstaller)

	_, errUnknown := f.svc.Login(ctx, "nobody", "whatever", models.RoleInstaller)
	_, errRole := f.svc.Login(ctx, "ana", "correct-horse", models.RoleAdministrator)
	_, errPassword := f.svc.Login(ctx, "ana", "wrong", models.RoleInstaller)

	require.ErrorIs(t, errUnknown, utils.ErrLoginFailed)
	require.ErrorIs(t, errRole, utils.ErrLoginFailed)
	require.ErrorIs(t, errPassword, utils.ErrLoginFailed)

	// The three failure modes are indistinguishable to the caller.
	require.Equal(t, errUnknown.Error(), errRole.Error())
	require.Equal(t, errRole.Error(), errPassword.Error())
}

func TestLoginReturnsBundle(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	u := f.addUser(t, "ben", "pw-123456789", models.RoleUser)

	bundle, err := f.svc.Login(ctx, "ben", "pw-123456789", models.RoleUser)
	require.NoError(t, err)
	require.NotEmpty(t, bundle.AccessToken)
	require.Len(t, bundle.RefreshToken, config.RefreshTokenLength)
	require.WithinDuration(t, time.Now().Add(f.cfg.AccessTokenExpiry), bundle.ExpiresAt, 2*time.Second)

	claims, err := f.svc.codec.Decode(bundle.AccessToken, false)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, models.RoleUser, claims.Role)

	// Email and phone resolve the same account.
	_, err = f.svc.Login(ctx, u.Email, "pw-123456789", models.RoleUser)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, u.PhoneNumber, "pw-123456789", models.RoleUser)
	require.NoError(t, err)
}

func TestLoginSupersedesPriorSessions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "cara", "pw-123456789", models.RoleInstaller)

	first, err := f.svc.Login(ctx, "cara", "pw-123456789", models.RoleInstaller)
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "cara", "pw-123456789", models.RoleInstaller)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The first session's refresh token was revoked by the second login.
	_, err = f.svc.Refresh(ctx, first.AccessToken, first.RefreshToken)
	require.ErrorIs(t, err, utils.ErrRefreshFailed)

	_, err = f.svc.Refresh(ctx, second.AccessToken, second.RefreshToken)
	require.NoError(t, err)
}

func TestLoginLockout(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "dave", "pw-123456789", models.RoleUser)

	for i := 0; i < f.cfg.MaxLoginAttempts; i++ {
		_, err := f.svc.Login(ctx, "dave", "wrong", models.RoleUser)
		require.ErrorIs(t, err, utils.ErrLoginFailed)
	}

	// Even the correct password is refused while locked.
	_, err := f.svc.Login(ctx, "dave", "pw-123456789", models.RoleUser)
	require.ErrorIs(t, err, utils.ErrAccountLocked)
}

// ---------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------

func TestRefreshRotatesToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "eve", "pw-123456789", models.RoleAdministrator)

	bundle, err := f.svc.Login(ctx, "eve", "pw-123456789", models.RoleAdministrator)
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, bundle.RefreshToken, next.RefreshToken)

	// The consumed token is burned.
	_, err = f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
	require.ErrorIs(t, err, utils.ErrRefreshFailed)
}

func TestRefreshRotationExclusivity(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "fred", "pw-123456789", models.RoleInstaller)

	bundle, err := f.svc.Login(ctx, "fred", "pw-123456789", models.RoleInstaller)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, utils.ErrRefreshFailed)
		}
	}
	require.Equal(t, 1, successes)
}

func TestRefreshRejectsForeignRefreshToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "gina", "pw-123456789", models.RoleUser)
	f.addUser(t, "hugo", "pw-123456789", models.RoleUser)

	ginaBundle, err := f.svc.Login(ctx, "gina", "pw-123456789", models.RoleUser)
	require.NoError(t, err)
	hugoBundle, err := f.svc.Login(ctx, "hugo", "pw-123456789", models.RoleUser)
	require.NoError(t, err)

	// Gina's access token with Hugo's refresh token must not rotate.
	_, err = f.svc.Refresh(ctx, ginaBundle.AccessToken, hugoBundle.RefreshToken)
	require.ErrorIs(t, err, utils.ErrRefreshFailed)
}

func TestRefreshWithExpiredAccessToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "iris", "pw-123456789", models.RoleInstaller)

	codec := f.svc.codec.(*tokenCodec)
	issuedAt := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return issuedAt }

	bundle, err := f.svc.Login(ctx, "iris", "pw-123456789", models.RoleInstaller)
	require.NoError(t, err)

	codec.now = time.Now

	// The access token is an hour past expiry; refresh still works.
	_, err = codec.Decode(bundle.AccessToken, false)
	require.Error(t, err)

	next, err := f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
	require.NoError(t, err)

	claims, err := codec.Decode(next.AccessToken, false)
	require.NoError(t, err)
	require.Equal(t, models.RoleInstaller, claims.Role)
}

func TestRefreshRejectsGarbageAccessToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "not-a-token", utils.GenerateSecureToken(config.RefreshTokenLength))
	require.ErrorIs(t, err, utils.ErrRefreshFailed)
}

// ---------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------

func TestLogoutBlocksReuse(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "jon", "pw-123456789", models.RoleUser)

	bundle, err := f.svc.Login(ctx, "jon", "pw-123456789", models.RoleUser)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, bundle.AccessToken, bundle.RefreshToken))

	// The access token is cryptographically valid but blacklisted.
	revoked, err := f.blacklist.Contains(ctx, utils.HashToken(bundle.AccessToken))
	require.NoError(t, err)
	require.True(t, revoked)

	// The refresh token cannot be rotated after logout.
	_, err = f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
	require.ErrorIs(t, err, utils.ErrRefreshFailed)

	// Logging out again is idempotent.
	require.NoError(t, f.svc.Logout(ctx, bundle.AccessToken, bundle.RefreshToken))
}

func TestLogoutUnknownRefreshToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "kim", "pw-123456789", models.RoleUser)

	bundle, err := f.svc.Login(ctx, "kim", "pw-123456789", models.RoleUser)
	require.NoError(t, err)

	err = f.svc.Logout(ctx, bundle.AccessToken, utils.GenerateSecureToken(config.RefreshTokenLength))
	require.ErrorIs(t, err, utils.ErrLogoutFailed)
}

// ---------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------

func TestSessionLifecycleEndToEnd(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.addUser(t, "lena", "pw-123456789", models.RoleInstaller)

	// Wrong surface.
	_, err := f.svc.Login(ctx, "lena", "pw-123456789", models.RoleAdministrator)
	require.ErrorIs(t, err, utils.ErrLoginFailed)

	// Correct login.
	bundle, err := f.svc.Login(ctx, "lena", "pw-123456789", models.RoleInstaller)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(f.cfg.AccessTokenExpiry), bundle.ExpiresAt, 2*time.Second)

	// Rotation.
	next, err := f.svc.Refresh(ctx, bundle.AccessToken, bundle.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, bundle.RefreshToken, next.RefreshToken)

	// Logout the rotated session.
	require.NoError(t, f.svc.Logout(ctx, next.AccessToken, next.RefreshToken))

	revoked, err := f.blacklist.Contains(ctx, utils.HashToken(next.AccessToken))
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = f.svc.Refresh(ctx, next.AccessToken, next.RefreshToken)
	require.ErrorIs(t, err, utils.ErrRefreshFailed)
}
