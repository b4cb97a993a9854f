package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A status check against the remote backend must stay read-only: it
// must never push an index schema, which would be sized from defaults
// rather than the deployment that created the index.
func TestStatusDoesNotPushRemoteSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			t.Errorf("status issued a schema write: %s %s", r.Method, r.URL.Path)
			http.Error(w, "schema write rejected", http.StatusBadRequest)
			return
		}
		require.Equal(t, "/indexes/brain-notes/docs/search", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"@odata.count": 3,
			"@search.facets": {"category": [{"value": "books", "count": 3}]},
			"value": []
		}`))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("INDEX_BACKEND", "azure")
	t.Setenv("SEARCH_ENDPOINT", srv.URL)
	t.Setenv("SEARCH_KEY", "secret")
	t.Setenv("SEARCH_INDEX_NAME", "brain-notes")
	t.Setenv("STATE_FILE", filepath.Join(t.TempDir(), "state.json"))

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	statusCmd.SetContext(t.Context())

	require.NoError(t, runStatus(statusCmd, nil))
	assert.Contains(t, out.String(), "Documents:   3")
	assert.Contains(t, out.String(), "books")
}
