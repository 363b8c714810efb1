package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwtConfig string

func (s jwtConfig) GetJWTAccessSecret() string { return string(s) }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(jwtConfig(secret)), func(c *gin.Context) {
		id := MustGetIdentity(c)
		OK(c, gin.H{"userId": id.UserID().String(), "admin": id.IsAdmin()})
	})
	return engine
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":   userID.String(),
		"type":  "access",
		"roles": []string{"admin"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newAuthEngine("secret").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		OK   bool `json:"ok"`
		Data struct {
			UserID string `json:"userId"`
			Admin  bool   `json:"admin"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, userID.String(), body.Data.UserID)
	assert.True(t, body.Data.Admin)
}

func TestAuthRequiredRejectsRefreshAndForeignTokens(t *testing.T) {
	cases := map[string]string{
		"refresh token": signToken(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "type": "refresh"}),
		"wrong secret":  signToken(t, "other", jwt.MapClaims{"sub": uuid.NewString(), "type": "access"}),
		"bad subject":   signToken(t, "secret", jwt.MapClaims{"sub": "nope", "type": "access"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			newAuthEngine("secret").ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"errorKind":"Unauthorized"`)
		})
	}
}

func TestAuthRequiredMissingHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	newAuthEngine("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), errMissingToken)
}
