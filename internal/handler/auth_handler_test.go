package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/koyo-learn/koyo-api/internal/middleware"
	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/service"
)

type userRepoMock struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func newUserRepoMock() *userRepoMock {
	return &userRepoMock{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (m *userRepoMock) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-" + user.Email
	}
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user
	return nil
}

func (m *userRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *userRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *userRepoMock) EmailExists(ctx context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func newAuthService(repo *userRepoMock) *service.AuthService {
	return service.NewAuthService(repo, nil, nil, service.AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "koyo-test",
	})
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(newAuthService(newUserRepoMock()))

	payload, _ := json.Marshal(models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret1",
		Role:     "student",
	})
	c, w := newGinContext(http.MethodPost, "/auth/register", payload)

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.Token)
	require.Equal(t, models.RoleStudent, envelope.Data.User.Role)
}

func TestAuthHandlerRegisterMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(newAuthService(newUserRepoMock()))

	c, w := newGinContext(http.MethodPost, "/auth/register", []byte("{not json"))

	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newUserRepoMock()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, repo.Create(context.Background(), &models.User{
		ID:           "u1",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
	}))
	handler := NewAuthHandler(newAuthService(repo))

	payload, _ := json.Marshal(models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newUserRepoMock()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, repo.Create(context.Background(), &models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
	}))
	handler := NewAuthHandler(newAuthService(repo))

	payload, _ := json.Marshal(models.LoginRequest{Email: "ada@example.com", Password: "nope00"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newUserRepoMock()
	require.NoError(t, repo.Create(context.Background(), &models.User{
		ID:    "u1",
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  models.RoleInstructor,
	}))
	handler := NewAuthHandler(newAuthService(repo))

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleInstructor})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "ada@example.com", envelope.Data.Email)
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(newAuthService(newUserRepoMock()))

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
