package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerify(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)

	token, err := s.Mint(Identity{ID: "u1", Name: "Alice"})
	require.NoError(t, err)

	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Name: "Alice"}, id)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)

	_, err := s.Verify("not-a-token")
	assert.Error(t, err)

	// Token signed with a different secret.
	other := NewSessions("other-secret", time.Hour)
	token, err := other.Mint(Identity{ID: "u1", Name: "Alice"})
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredTokens(t *testing.T) {
	s := NewSessions("test-secret", -time.Minute)

	token, err := s.Mint(Identity{ID: "u1", Name: "Alice"})
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	var got Identity
	handler := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		got = id
	}))

	t.Run("valid token passes through", func(t *testing.T) {
		token, err := s.Mint(Identity{ID: "u1", Name: "Alice"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/room", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", got.ID)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/room", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/room", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
