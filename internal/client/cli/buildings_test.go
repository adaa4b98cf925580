package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catalogServer plays the HTTP API and the object store at once.
type catalogServer struct {
	*httptest.Server

	mu        sync.Mutex
	validAuth string
	auths     []string
	puts      map[string]string
	uploaded  []string
	putStatus int
}

func newCatalogServer(t *testing.T, validAuth string) *catalogServer {
	t.Helper()
	cs := &catalogServer{validAuth: validAuth, puts: map[string]string{}, putStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /buildings", func(w http.ResponseWriter, r *http.Request) {
		if !cs.authorized(w, r) {
			return
		}
		var in struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"building": map[string]any{"id": "b1", "name": in.Name},
			"gml":      map[string]any{"key": "k/model.gml", "url": cs.URL + "/put/gml"},
			"texture":  map[string]any{"key": "k/texture.tif", "url": cs.URL + "/put/texture"},
		})
	})
	mux.HandleFunc("POST /buildings/{id}/uploaded", func(w http.ResponseWriter, r *http.Request) {
		if !cs.authorized(w, r) {
			return
		}
		cs.mu.Lock()
		cs.uploaded = append(cs.uploaded, r.PathValue("id"))
		cs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PUT /put/{asset}", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		cs.mu.Lock()
		cs.puts[r.PathValue("asset")] = string(b)
		cs.mu.Unlock()
		w.WriteHeader(cs.putStatus)
	})

	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func (cs *catalogServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	cs.mu.Lock()
	cs.auths = append(cs.auths, auth)
	cs.mu.Unlock()
	if auth != cs.validAuth {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid token","code":"invalid_token"}`))
		return false
	}
	return true
}

func assetFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	gml := filepath.Join(dir, "model.gml")
	tex := filepath.Join(dir, "texture.tif")
	require.NoError(t, os.WriteFile(gml, []byte("<CityModel/>"), 0o600))
	require.NoError(t, os.WriteFile(tex, []byte("TIFF"), 0o600))
	return gml, tex
}

func newUploadApp(t *testing.T, cs *catalogServer, gml, tex string) (*App, *fakeAPI) {
	t.Helper()
	a, api, _, _ := newTestApp(t, "p@example.com\nTown Hall\n"+gml+"\n"+tex+"\n")
	a.buildings = newHTTPBuildings(cs.URL+"/", cs.Client())
	a.httpClient = cs.Client()
	require.NoError(t, a.Login(context.Background()))
	return a, api
}

func TestUpload(t *testing.T) {
	cs := newCatalogServer(t, "Bearer access-0")
	gml, tex := assetFiles(t)
	a, _ := newUploadApp(t, cs, gml, tex)

	require.NoError(t, a.Upload(context.Background()))
	assert.Equal(t, map[string]string{"gml": "<CityModel/>", "texture": "TIFF"}, cs.puts)
	assert.Equal(t, []string{"b1"}, cs.uploaded)
	assert.Contains(t, a.out.(interface{ String() string }).String(), "Building b1 uploaded")
}

func TestUpload_RefreshesExpiredAccessToken(t *testing.T) {
	cs := newCatalogServer(t, "Bearer access-1")
	gml, tex := assetFiles(t)
	a, api := newUploadApp(t, cs, gml, tex)

	require.NoError(t, a.Upload(context.Background()))
	assert.Equal(t, []string{"refresh-0"}, api.refreshed)
	assert.Equal(t, []string{"Bearer access-0", "Bearer access-1", "Bearer access-1"}, cs.auths)
	assert.Equal(t, []string{"b1"}, cs.uploaded)
}

func TestUpload_StorageRejectsFile(t *testing.T) {
	cs := newCatalogServer(t, "Bearer access-0")
	cs.putStatus = http.StatusForbidden
	gml, tex := assetFiles(t)
	a, _ := newUploadApp(t, cs, gml, tex)

	err := a.Upload(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "gml: upload failed: 403"))
	assert.Empty(t, cs.uploaded, "upload is not marked complete")
}

func TestUpload_NotLoggedIn(t *testing.T) {
	a, _, _, _ := newTestApp(t, "")
	assert.ErrorIs(t, a.Upload(context.Background()), errNotLoggedIn)
}

func TestHTTPBuildings_DecodesAPIError(t *testing.T) {
	cs := newCatalogServer(t, "Bearer good")
	hb := newHTTPBuildings(cs.URL, cs.Client())

	_, err := hb.Create(context.Background(), "bad", "x")
	require.Error(t, err)
	assert.True(t, isUnauthorized(err))
	assert.Equal(t, "invalid token (invalid_token)", err.Error())

	assert.Equal(t, "http 500", (&apiError{Status: 500}).Error())
}
