package auth

import (
	"context"
	"testing"
	"time"

	"stagepass/internal/shared/config"
	"stagepass/internal/users"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	users map[string]*users.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*users.User)}
}

func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepo) GetUserByID(ctx context.Context, userID string) (*users.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepo) UpdateUserPassword(ctx context.Context, userID, hashedPassword string) error {
	user, ok := f.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Password = hashedPassword
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			JWTExpiresIn:     15 * time.Minute,
			RefreshExpiresIn: 24 * time.Hour,
		},
	}
}

func seedUser(repo *fakeRepo, password string) *users.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &users.User{
		ID:        uuid.New(),
		FirstName: "Box",
		LastName:  "Office",
		Email:     "boxoffice@stagepass.app",
		Password:  string(hashed),
		Role:      users.RoleStaff,
	}
	repo.users[user.ID.String()] = user
	return user
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "qwerty",
	})
	require.NoError(t, err)

	assert.Equal(t, user.Email, resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, string(users.RoleStaff), claims.Role)
	assert.Equal(t, "stagepass", claims.Issuer)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "letmein",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepo(), testConfig())

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "nobody@stagepass.app",
		Password: "qwerty",
	})
	// Unknown email and bad password are indistinguishable to the caller
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshToken(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "qwerty",
	})
	require.NoError(t, err)

	pair, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "qwerty",
	})
	require.NoError(t, err)

	_, err = svc.RefreshToken(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")

	issuer := NewService(repo, testConfig())
	resp, err := issuer.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "qwerty",
	})
	require.NoError(t, err)

	otherCfg := testConfig()
	otherCfg.JWT.Secret = "different-secret"
	verifier := NewService(repo, otherCfg)

	_, err = verifier.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())
	ctx := context.Background()

	err := svc.ChangePassword(ctx, user.ID.String(), &ChangePasswordRequest{
		CurrentPassword: "qwerty",
		NewPassword:     "correct-horse-battery",
	})
	require.NoError(t, err)

	// Old password no longer works, the new one does
	_, err = svc.Login(ctx, &LoginRequest{Email: user.Email, Password: "qwerty"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginRequest{Email: user.Email, Password: "correct-horse-battery"})
	assert.NoError(t, err)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	repo := newFakeRepo()
	user := seedUser(repo, "qwerty")
	svc := NewService(repo, testConfig())

	err := svc.ChangePassword(context.Background(), user.ID.String(), &ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
