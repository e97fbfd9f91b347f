package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantDesk/models"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestParseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
		fields bool
	}{
		{name: "detail", status: 403, body: `{"detail":"forbidden"}`, want: "forbidden"},
		{name: "message wins over fields", status: 400, body: `{"message":"bad","name":["required"]}`, want: "bad"},
		{name: "error key", status: 500, body: `{"error":"boom"}`, want: "boom"},
		{name: "field map", status: 400, body: `{"name":["required"],"code":"too long"}`, want: "code: too long; name: required", fields: true},
		{name: "non field errors", status: 400, body: `{"non_field_errors":["invalid credentials"]}`, want: "invalid credentials", fields: true},
		{name: "plain text", status: 502, body: `bad gateway`, want: "bad gateway"},
		{name: "html", status: 500, body: `<html>oops</html>`, want: "request failed with status 500"},
		{name: "empty", status: 404, body: ``, want: "request failed with status 404"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := parseError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.want, e.Message)
			assert.Equal(t, tt.fields, e.Fields != nil)
		})
	}
}

func TestServerUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, time.Second)
	_, err := c.ListSymbols(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServerUnreachable))
}

func TestLoginStoresTokens(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found"})
			return
		}
		writeJSON(w, http.StatusOK, models.Tokens{Access: "a1", Refresh: "r1"})
	})

	store := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	c := newTestClient(t, mux, WithTokenStore(store))

	_, err := c.Login(context.Background(), models.Credentials{Username: "u", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.False(t, c.LoggedIn())

	tok, err := c.Login(context.Background(), models.Credentials{Username: "u", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.Access)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.Tokens{Access: "a1", Refresh: "r1"}, saved)
}

func TestUnauthorizedRefreshesAndRetries(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"access": "fresh"})
	})
	mux.HandleFunc("/auth/profile/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, models.User{ID: 7, Username: "ada"})
	})

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(models.Tokens{Access: "stale", Refresh: "r1"}))
	c := newTestClient(t, mux, WithTokenStore(store))

	user, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.EqualValues(t, 1, refreshes.Load())

	tok, _ := store.Load()
	assert.Equal(t, "fresh", tok.Access)
	assert.Equal(t, "r1", tok.Refresh)
}

func TestExpiredTokenRefreshedBeforeRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Minute))
	valid := signedToken(t, now.Add(time.Hour))

	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access": valid, "refresh": "r2"})
	})
	mux.HandleFunc("/strategies/", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.Strategy{{ID: 1, Name: "sma"}})
	})

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(models.Tokens{Access: expired, Refresh: "r1"}))
	c := newTestClient(t, mux, WithTokenStore(store), withClock(func() time.Time { return now }))

	list, err := c.ListStrategies(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"Bearer " + valid}, seen)
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestListStrategiesPaginated(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/strategies/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   2,
			"results": []models.Strategy{{ID: 1}, {ID: 2}},
		})
	})
	c := newTestClient(t, mux)

	list, err := c.ListStrategies(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStrategyCRUD(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/strategies/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in models.StrategyInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, models.Strategy{ID: 9, Name: in.Name})
	})
	mux.HandleFunc("/strategies/9/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, models.Strategy{ID: 9, Name: "rsi"})
		case http.MethodPut:
			var in models.StrategyInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			writeJSON(w, http.StatusOK, models.Strategy{ID: 9, Name: in.Name})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	created, err := c.CreateStrategy(ctx, models.StrategyInput{Name: "rsi"})
	require.NoError(t, err)
	assert.EqualValues(t, 9, created.ID)

	got, err := c.GetStrategy(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "rsi", got.Name)

	updated, err := c.UpdateStrategy(ctx, 9, models.StrategyInput{Name: "rsi-2"})
	require.NoError(t, err)
	assert.Equal(t, "rsi-2", updated.Name)

	require.NoError(t, c.DeleteStrategy(ctx, 9))
}

func TestFixErrorsPostsToStrategy(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/strategies/4/fix_errors/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"code":"x = 1","errors":["bad"],"attempt":2}`, string(body))
		writeJSON(w, http.StatusOK, models.FixResult{Success: true, Code: "x = 2"})
	})
	c := newTestClient(t, mux)

	res, err := c.FixErrors(context.Background(), models.FixRequest{StrategyID: 4, Code: "x = 1", Errors: []string{"bad"}, Attempt: 2})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "x = 2", res.Code)
}

func TestValidationEndpoints(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/validation/code/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.ValidationResult{Valid: true, Safe: false, Errors: []string{"import os"}})
	})
	mux.HandleFunc("/validation/sandbox/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": []string{"This field is required."}})
	})
	c := newTestClient(t, mux)

	res, err := c.ValidateCode(context.Background(), "import os")
	require.NoError(t, err)
	assert.False(t, res.Safe)

	_, err = c.ValidateSandbox(context.Background(), "")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "code: This field is required.", apiErr.Message)
	assert.Equal(t, []string{"This field is required."}, apiErr.Fields["code"])
}

func TestLogoutClearsTokensEvenOnServerError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "down"})
	})
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(models.Tokens{Access: "a", Refresh: "r"}))
	c := newTestClient(t, mux, WithTokenStore(store))

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.LoggedIn())
}

func TestProfileRequiresLogin(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
