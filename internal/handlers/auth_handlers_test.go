package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glowora/glowora-backend/internal/auth"
	"github.com/glowora/glowora-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesCustomerAndReturnsToken(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("ana@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM roles WHERE name").
		WithArgs("Customer").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec("INSERT INTO users").
		WithArgs("Ana Lima", "ana@example.com", sqlmock.AnyArg(), int64(2), nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	router := newTestRouter()
	router.POST("/auth/register", h.Register)

	body, _ := json.Marshal(RegisterInput{
		FullName: "Ana Lima",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := auth.ValidateToken(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, int64(11), claims.UserID)
	assert.Equal(t, "Customer", claims.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	router := newTestRouter()
	router.POST("/auth/register", h.Register)

	body, _ := json.Marshal(RegisterInput{
		FullName: "Ana Lima",
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Email is already registered")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	h, mock := newTestHandlers(t)

	router := newTestRouter()
	router.POST("/auth/register", h.Register)

	body, _ := json.Marshal(RegisterInput{
		FullName: "Ana Lima",
		Email:    "ana@example.com",
		Password: "abc",
	})
	req, _ := http.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func loginRow(t *testing.T, plaintext string) *sqlmock.Rows {
	t.Helper()

	var password models.Password
	require.NoError(t, password.Set(plaintext))

	return sqlmock.NewRows([]string{"id", "full_name", "email", "password_hash", "name"}).
		AddRow(11, "Ana Lima", "ana@example.com", password.Hash, "Customer")
}

func TestLogin_Succeeds(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT u.id, u.full_name").
		WithArgs("ana@example.com").
		WillReturnRows(loginRow(t, "s3cret-pass"))

	router := newTestRouter()
	router.POST("/auth/login", h.Login)

	body, _ := json.Marshal(LoginInput{Email: "ana@example.com", Password: "s3cret-pass"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT u.id, u.full_name").
		WithArgs("ana@example.com").
		WillReturnRows(loginRow(t, "s3cret-pass"))

	router := newTestRouter()
	router.POST("/auth/login", h.Login)

	body, _ := json.Marshal(LoginInput{Email: "ana@example.com", Password: "wrong-pass"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT u.id, u.full_name").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	router := newTestRouter()
	router.POST("/auth/login", h.Login)

	body, _ := json.Marshal(LoginInput{Email: "ghost@example.com", Password: "whatever"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := performRequest(router, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	require.NoError(t, mock.ExpectationsWereMet())
}
