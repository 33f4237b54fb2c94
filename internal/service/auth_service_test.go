package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/registrocorsi/register-api/internal/models"
	appErrors "github.com/registrocorsi/register-api/pkg/errors"
)

type userRepoStub struct {
	users      map[string]models.User
	lastLogins map[string]time.Time
	err        error
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[id]; ok {
		user := u
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if s.lastLogins == nil {
		s.lastLogins = make(map[string]time.Time)
	}
	s.lastLogins[id] = at
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *userRepoStub) {
	hash, err := bcrypt.GenerateFromPassword([]byte("segreto123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &userRepoStub{users: map[string]models.User{
		"u1": {
			ID:           "u1",
			Email:        "operatore@corso.it",
			PasswordHash: string(hash),
			FullName:     "Operatore Uno",
			Role:         models.RoleOperator,
			Active:       true,
		},
		"u2": {
			ID:           "u2",
			Email:        "disattivato@corso.it",
			PasswordHash: string(hash),
			FullName:     "Utente Disattivato",
			Role:         models.RoleOperator,
			Active:       false,
		},
	}}
	svc := NewAuthService(repo, "test-secret", time.Hour, "register-api", nil, nil)
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operatore@corso.it",
		Password: "segreto123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	assert.Equal(t, "u1", result.User.ID)
	assert.Contains(t, repo.lastLogins, "u1")

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operatore@corso.it",
		Password: "sbagliata",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nessuno@corso.it",
		Password: "segreto123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "disattivato@corso.it",
		Password: "segreto123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, repo := newAuthFixture(t)
	other := NewAuthService(repo, "different-secret", time.Hour, "register-api", nil, nil)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operatore@corso.it",
		Password: "segreto123",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(result.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := newAuthFixture(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operatore@corso.it",
		Password: "segreto123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(result.AccessToken)
	require.Error(t, err)
}
