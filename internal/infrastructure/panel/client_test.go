package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

const testToken = "test-token"

// fakePanel is a minimal control-plane stub.
type fakePanel struct {
	mux        *http.ServeMux
	authCalls  atomic.Int32
	validToken string
}

func newFakePanel() *fakePanel {
	f := &fakePanel{mux: http.NewServeMux(), validToken: testToken}

	f.mux.HandleFunc("POST /api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": f.validToken, "token_type": "bearer"})
	})

	return f
}

func (f *fakePanel) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.validToken
}

func newTestClient(t *testing.T, srv *httptest.Server) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(config.PanelConfig{
		Host:           srv.URL,
		Username:       "admin",
		Password:       "secret",
		TimeoutSeconds: 5,
	}, logger.NewLogger())
	require.NoError(t, err)
	return client
}

func TestHTTPClient_Authenticate(t *testing.T) {
	fake := newFakePanel()
	fake.mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(usersListResponse{Users: []userResponse{}, Total: 0})
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	accounts, err := client.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, int32(1), fake.authCalls.Load())

	// Token is cached across calls.
	_, err = client.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.authCalls.Load())
}

func TestHTTPClient_ReauthenticatesOn401(t *testing.T) {
	fake := newFakePanel()
	fake.validToken = "fresh-token"
	var userCalls atomic.Int32
	fake.mux.HandleFunc("GET /api/user/ios1abc", func(w http.ResponseWriter, r *http.Request) {
		// First call sees a stale token the client got elsewhere; fail it.
		if userCalls.Add(1) == 1 || !fake.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(userResponse{Username: "ios1abc", Status: "active"})
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	acct, err := client.GetAccount(context.Background(), "ios1abc")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "ios1abc", acct.Username)
	assert.Equal(t, int32(2), userCalls.Load())
	assert.Equal(t, int32(2), fake.authCalls.Load())
}

func TestHTTPClient_CreateAccount(t *testing.T) {
	fake := newFakePanel()
	expire := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	fake.mux.HandleFunc("POST /api/user", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req createUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "android42xyz", req.Username)
		assert.Equal(t, expire.Unix(), req.Expire)
		assert.Contains(t, req.Proxies, "vless")

		e := req.Expire
		json.NewEncoder(w).Encode(userResponse{
			Username: req.Username,
			Status:   "active",
			Expire:   &e,
			Links: []string{
				"vless://11111111-2222@nl1.example.com:443?security=reality#veil",
				"vless://11111111-2222@nl2.example.com:443?security=reality#veil",
			},
		})
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	acct, err := client.CreateAccount(context.Background(), CreateAccountParams{
		Username: "android42xyz",
		ExpireAt: &expire,
	})
	require.NoError(t, err)
	assert.Equal(t, "android42xyz", acct.Username)
	assert.Equal(t, AccountActive, acct.Status)
	require.NotNil(t, acct.ExpireAt)
	assert.True(t, acct.ExpireAt.Equal(expire))
	require.Len(t, acct.Links, 2)
	assert.Equal(t, "nl1.example.com", acct.Links[0].Host)
	assert.Equal(t, "nl2.example.com", acct.Links[1].Host)
}

func TestHTTPClient_CreateAccount_ConflictFetchesExisting(t *testing.T) {
	fake := newFakePanel()
	fake.mux.HandleFunc("POST /api/user", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusConflict)
	})
	fake.mux.HandleFunc("GET /api/user/ios7dup", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(userResponse{
			Username: "ios7dup",
			Status:   "active",
			Links:    []string{"vless://abc@nl1.example.com:443#veil"},
		})
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	acct, err := client.CreateAccount(context.Background(), CreateAccountParams{Username: "ios7dup"})
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "ios7dup", acct.Username)
}

func TestHTTPClient_GetAccount_NotFound(t *testing.T) {
	fake := newFakePanel()
	fake.mux.HandleFunc("GET /api/user/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	acct, err := client.GetAccount(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestHTTPClient_DeleteAccount_Idempotent(t *testing.T) {
	fake := newFakePanel()
	var deletes atomic.Int32
	fake.mux.HandleFunc("DELETE /api/user/gone", func(w http.ResponseWriter, r *http.Request) {
		if deletes.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	require.NoError(t, client.DeleteAccount(context.Background(), "gone"))
	require.NoError(t, client.DeleteAccount(context.Background(), "gone"))
}

func TestHTTPClient_GetUsage(t *testing.T) {
	fake := newFakePanel()
	fake.mux.HandleFunc("GET /api/user/ios1abc/usage", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(userUsageResponse{Username: "ios1abc", UsedTraffic: 1 << 30})
	})
	srv := httptest.NewServer(fake.mux)
	defer srv.Close()

	client := newTestClient(t, srv)

	usage, err := client.GetUsage(context.Background(), "ios1abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), usage.UsedTraffic)
}

func TestParseLink(t *testing.T) {
	l := ParseLink("vless://uuid@node.example.com:443?security=reality&fp=chrome#veil-ios")
	assert.Equal(t, "node.example.com", l.Host)
	assert.NotEmpty(t, l.Raw)

	malformed := ParseLink("not a link ://")
	assert.Empty(t, malformed.Host)
	assert.Equal(t, "not a link ://", malformed.Raw)
}

func TestAccount_PreferredLink(t *testing.T) {
	acct := &Account{Links: []Link{
		{Host: "nl1.example.com", Raw: "vless://a@nl1.example.com:443"},
		{Host: "nl2.example.com", Raw: "vless://a@nl2.example.com:443"},
	}}

	l, ok := acct.PreferredLink("nl2.example.com")
	require.True(t, ok)
	assert.Equal(t, "nl2.example.com", l.Host)

	// Unknown host falls back to the first link.
	l, ok = acct.PreferredLink("de1.example.com")
	require.True(t, ok)
	assert.Equal(t, "nl1.example.com", l.Host)

	empty := &Account{}
	_, ok = empty.PreferredLink("nl1.example.com")
	assert.False(t, ok)
}
