package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/service"
)

type singleUserRepo struct {
	user *models.User
}

func (m *singleUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (m *singleUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *singleUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user != nil && m.user.Email == email {
		return m.user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *singleUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return m.user != nil && m.user.Email == email, nil
}

func testAuthService(t *testing.T) (*service.AuthService, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &singleUserRepo{user: &models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
	}}
	svc := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "koyo-test",
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	return svc, res.Token
}

func runProtected(t *testing.T, svc *service.AuthService, header string, extra ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(svc)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/protected", chain...)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAllowsValidToken(t *testing.T) {
	svc, token := testAuthService(t)
	w := runProtected(t, svc, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	svc, _ := testAuthService(t)
	w := runProtected(t, svc, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	svc, token := testAuthService(t)
	w := runProtected(t, svc, "Token "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	svc, token := testAuthService(t)
	w := runProtected(t, svc, "Bearer "+token+"x")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func runOptional(t *testing.T, svc *service.AuthService, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var claimsSet bool
	r.GET("/open", OptionalJWT(svc), func(c *gin.Context) {
		_, claimsSet = c.Get(ContextUserKey)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, claimsSet
}

func TestOptionalJWTAttachesClaims(t *testing.T) {
	svc, token := testAuthService(t)
	w, claimsSet := runOptional(t, svc, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, claimsSet)
}

func TestOptionalJWTPassesWithoutHeader(t *testing.T) {
	svc, _ := testAuthService(t)
	w, claimsSet := runOptional(t, svc, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, claimsSet)
}

func TestOptionalJWTIgnoresInvalidToken(t *testing.T) {
	svc, token := testAuthService(t)
	w, claimsSet := runOptional(t, svc, "Bearer "+token+"x")
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, claimsSet)
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	svc, token := testAuthService(t)
	w := runProtected(t, svc, "Bearer "+token, RequireRoles(models.RoleStudent))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	svc, token := testAuthService(t)
	w := runProtected(t, svc, "Bearer "+token, RequireRoles(models.RoleInstructor))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleInstructor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
