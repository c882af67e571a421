package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		path, key string
		isRef     bool
	}{
		{"vault:secret/harvest#db", "secret/harvest", "db", true},
		{"  vault:/secret/harvest/#token ", "secret/harvest", "token", true},
		{"vault:secret/harvest", "secret/harvest", "", true},
		{"vault:", "", "", true},
		{"plain-password", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		path, key, isRef := ParseRef(tt.in)
		assert.Equal(t, tt.isRef, isRef, tt.in)
		assert.Equal(t, tt.path, path, tt.in)
		assert.Equal(t, tt.key, key, tt.in)
	}
}

func TestSplitMount(t *testing.T) {
	t.Parallel()

	m, r := splitMount("secret/harvest/db")
	assert.Equal(t, "secret", m)
	assert.Equal(t, "harvest/db", r)

	m, r = splitMount("secret")
	assert.Equal(t, "secret", m)
	assert.Empty(t, r)
}

func TestNewRequiresAddr(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetKVCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/secret/data/harvest" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"db":"s3cret","n":7}}}`))
	}))
	defer srv.Close()

	t.Setenv("VAULT_ADDR", srv.URL)
	t.Setenv("VAULT_TOKEN", "test-token")

	c, err := newClient(vault.DefaultConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		v, err := c.GetKV(ctx, "secret/harvest", "db", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "s3cret", v)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err = c.GetKV(ctx, "secret/harvest", "missing", 0)
	assert.ErrorContains(t, err, `key "missing" not found`)

	_, err = c.GetKV(ctx, "secret/harvest", "n", 0)
	assert.ErrorContains(t, err, "is not a string")

	_, err = c.GetKV(ctx, "", "db", 0)
	assert.Error(t, err)
}
