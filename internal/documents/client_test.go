package documents

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zonasi/pkg/platform/sentinel"
)

type staticTokens struct{ token string }

func (s staticTokens) ServiceToken() (string, error) { return s.token, nil }

func TestCatalogFetch(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/master-dokumen", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"dokumen_id":1,"dokumen_jenis":"akta kelahiran","is_umum":true,"keterangan":null},
			{"dokumen_id":3,"dokumen_jenis":"ijazah TK","is_umum":false,"keterangan":"opsional"}
		]}`))
	}))
	defer srv.Close()

	client := NewHTTPCatalogClient(srv.URL, staticTokens{token: "svc-token"})
	catalog, err := client.Catalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer svc-token", gotAuth)
	require.Len(t, catalog, 2)
	assert.Equal(t, 1, catalog[0].DokumenID)
	assert.True(t, catalog[0].IsUmum)
	assert.False(t, catalog[1].IsUmum)
}

func TestCatalogUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPCatalogClient(srv.URL, staticTokens{token: "t"})
	_, err := client.Catalog(context.Background())
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
}
