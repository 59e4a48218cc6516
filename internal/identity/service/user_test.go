package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medstock/medstock-backend/internal/identity/jwt"
	"github.com/medstock/medstock-backend/internal/identity/repository"
	"github.com/medstock/medstock-backend/internal/identity/service"
	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/principal"
	"github.com/medstock/medstock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(mockDB *testutil.MockDB) *service.UserService {
	log := logger.New("test", "test")
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "unit-test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "medstock-test",
	})
	return service.NewUserService(repository.NewUserRepository(mockDB.DB), manager, nil, log)
}

func hashOf(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func userRows(t *testing.T, password string, active bool) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "username", "password_hash", "full_name", "role", "is_active", "created_at",
	).AddRow(
		"user-1", "mlopez", hashOf(t, password), "Maria Lopez", "pharmacist", active, time.Now(),
	)
}

func TestUserService_Authenticate(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT * FROM users WHERE username = $1`).
		WithArgs("mlopez").
		WillReturnRows(userRows(t, "correct horse", true))
	mockDB.ExpectExec(`UPDATE users SET last_login_at = NOW() WHERE id = $1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, pair, err := newUserService(mockDB).Authenticate(context.Background(), "mlopez", "correct horse")
	require.NoError(t, err)

	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "pharmacist", user.Role)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	mockDB.ExpectationsWereMet(t)
}

// Wrong passwords, unknown usernames and disabled accounts all answer with
// the same invalid-credentials error.
func TestUserService_Authenticate_Rejections(t *testing.T) {
	t.Run("wrong password", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery(`SELECT * FROM users WHERE username = $1`).
			WithArgs("mlopez").
			WillReturnRows(userRows(t, "correct horse", true))

		_, _, err := newUserService(mockDB).Authenticate(context.Background(), "mlopez", "wrong")
		assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	})

	t.Run("unknown username", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery(`SELECT * FROM users WHERE username = $1`).
			WithArgs("ghost").
			WillReturnRows(testutil.MockRows("id"))

		_, _, err := newUserService(mockDB).Authenticate(context.Background(), "ghost", "whatever")
		assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	})

	t.Run("deactivated account", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery(`SELECT * FROM users WHERE username = $1`).
			WithArgs("mlopez").
			WillReturnRows(userRows(t, "correct horse", false))

		_, _, err := newUserService(mockDB).Authenticate(context.Background(), "mlopez", "correct horse")
		assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	})
}

func TestUserService_CreateUser_RejectsUnknownRole(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	ctx := principal.WithPrincipal(context.Background(), &principal.Principal{ID: "admin-1", Role: "administrator"})

	_, err := newUserService(mockDB).CreateUser(ctx, &service.CreateUserInput{
		Username: "newuser",
		Password: "longenough",
		FullName: "New User",
		Role:     "janitor",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestUserService_EnsureDefaultAdmin(t *testing.T) {
	t.Run("skips when an administrator exists", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery(`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = true`).
			WithArgs("administrator").
			WillReturnRows(testutil.MockRows("count").AddRow(1))

		ctx := principal.WithPrincipal(context.Background(), principal.System())
		err := newUserService(mockDB).EnsureDefaultAdmin(ctx, &config.BootstrapConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
		})
		require.NoError(t, err)

		mockDB.ExpectationsWereMet(t)
	})

	t.Run("provisions when none exists", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.ExpectQuery(`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = true`).
			WithArgs("administrator").
			WillReturnRows(testutil.MockRows("count").AddRow(0))
		mockDB.ExpectQuery(`INSERT INTO users`).
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

		ctx := principal.WithPrincipal(context.Background(), principal.System())
		err := newUserService(mockDB).EnsureDefaultAdmin(ctx, &config.BootstrapConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
		})
		require.NoError(t, err)

		mockDB.ExpectationsWereMet(t)
	})
}

func TestUserService_ChangeRole_LastAdministrator(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery(`SELECT * FROM users WHERE id = $1`).
		WithArgs("admin-1").
		WillReturnRows(testutil.MockRows(
			"id", "username", "password_hash", "full_name", "role", "is_active", "created_at",
		).AddRow(
			"admin-1", "admin", "x", "System Administrator", "administrator", true, time.Now(),
		))
	mockDB.ExpectQuery(`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = true`).
		WithArgs("administrator").
		WillReturnRows(testutil.MockRows("count").AddRow(1))

	err := newUserService(mockDB).ChangeRole(context.Background(), "admin-1", "nurse")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	mockDB.ExpectationsWereMet(t)
}
