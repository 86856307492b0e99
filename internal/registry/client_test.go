package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/ir"
)

const vaultDoc = `{"address":"EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF","metadata":{"name":"vault","version":"1.2.0"},"instructions":[]}`

func TestClientInstall(t *testing.T) {
	var gotPath, gotUA string
	var gotBody installRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"vault","version":"1.2.0","program_id":"EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF","idl":` + vaultDoc + `}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/"), WithUserAgent("solpm/test"), WithProjectHash("abc"))
	inst, err := c.Install(context.Background(), "vault", "", ir.Devnet)
	require.NoError(t, err)

	assert.Equal(t, "/programs/vault/latest/install", gotPath)
	assert.Equal(t, "solpm/test", gotUA)
	assert.Equal(t, installRequest{Network: "devnet", ProjectHash: "abc"}, gotBody)
	assert.Equal(t, "1.2.0", inst.Version)
	assert.Equal(t, "EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF", inst.ProgramID)
	assert.JSONEq(t, vaultDoc, string(inst.Interface))

	data, err := c.Fetch(context.Background(), "vault", "1.2.0", ir.Devnet)
	require.NoError(t, err)
	assert.Equal(t, "/programs/vault/1.2.0/install", gotPath)
	assert.JSONEq(t, vaultDoc, string(data))
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		notFound bool
		status   int
	}{
		{
			name:     "404",
			handler:  func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			notFound: true,
		},
		{
			name: "500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "registry unavailable", http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		{
			name:    "not json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) },
			status:  http.StatusOK,
		},
		{
			name:    "no document",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"name":"vault","idl":null}`)) },
			status:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).Fetch(context.Background(), "vault", "1.0.0", ir.Devnet)
			require.Error(t, err)
			if tt.notFound {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			var nerr *NetworkError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, tt.status, nerr.StatusCode)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(base)).Fetch(context.Background(), "vault", Latest, ir.Devnet)
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Zero(t, nerr.StatusCode)
}

func TestClientTimeoutKeepsContextError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(WithBaseURL(srv.URL)).Fetch(ctx, "vault", Latest, ir.Devnet)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientEscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Fetch(context.Background(), "a/b", "1.0.0", ir.Devnet)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, strings.HasPrefix(gotPath, "/programs/a%2Fb/"), gotPath)
}
