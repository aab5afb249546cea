package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/evogene-server/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(domain.AuthConfig{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 48 * time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-pass"))
}

func TestHashPassword_InvalidCostFallsBack(t *testing.T) {
	hash, err := HashPassword("pw", 1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestNewIssuer_MissingSecret(t *testing.T) {
	_, err := NewIssuer(domain.AuthConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssuer_IssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	claims, err := issuer.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)

	refresh, err := issuer.Parse(pair.Refresh, TokenRefresh)
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.After(claims.ExpiresAt.Time))
}

func TestIssuer_ParseRejects(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Issue(7)
	require.NoError(t, err)

	other, err := NewIssuer(domain.AuthConfig{JWTSecret: "other-secret"})
	require.NoError(t, err)
	foreign, err := other.Issue(7)
	require.NoError(t, err)

	expired := newTestIssuer(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.Issue(7)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7, TokenType: TokenAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  string
	}{
		{"garbage", "not.a.token", TokenAccess},
		{"refresh used as access", pair.Refresh, TokenAccess},
		{"access used as refresh", pair.Access, TokenRefresh},
		{"wrong secret", foreign.Access, TokenAccess},
		{"expired", stale.Access, TokenAccess},
		{"unsigned", none, TokenAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token, tt.kind)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	return NewService(repo, newTestIssuer(t), bcrypt.MinCost, logging.Discard()), repo
}

func TestService_Register(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, RegisterRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "pw-123456",
		ConfirmPassword: "pw-123456",
	})
	require.NoError(t, err)

	user, err := repo.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw-123456", user.PasswordHash)

	claims, err := svc.issuer.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = svc.Register(ctx, RegisterRequest{
		Name:            "Ada again",
		Email:           "ada@example.com",
		Password:        "x",
		ConfirmPassword: "x",
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Register(ctx, RegisterRequest{
		Name:            "Bob",
		Email:           "bob@example.com",
		Password:        "one",
		ConfirmPassword: "two",
	})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = repo.GetUserByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Login(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{
		Name:            "Ada",
		Email:           "ada@example.com",
		Password:        "pw-123456",
		ConfirmPassword: "pw-123456",
	})
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "pw-123456"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.NotEmpty(t, pair.Access)

	_, _, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "pw-123456"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOptionalBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := newTestIssuer(t)
	pair, err := issuer.Issue(99)
	require.NoError(t, err)

	router := gin.New()
	router.Use(OptionalBearer(issuer))
	router.GET("/whoami", func(c *gin.Context) {
		if id := UserID(c); id != nil {
			c.JSON(http.StatusOK, gin.H{"user_id": *id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": nil})
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, `{"user_id":null}`},
		{"valid access token", "Bearer " + pair.Access, http.StatusOK, `{"user_id":99}`},
		{"refresh token rejected", "Bearer " + pair.Refresh, http.StatusUnauthorized, `{"detail":"Given token not valid for any token type"}`},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, `{"detail":"Authorization header must use the Bearer scheme"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
