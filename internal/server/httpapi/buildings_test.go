package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

type fakeCatalog struct {
	mu        sync.Mutex
	seq       int
	buildings map[string]*models.Building
	err       error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{buildings: map[string]*models.Building{}}
}

func (f *fakeCatalog) Create(_ context.Context, ownerID, name string) (*services.BuildingUpload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	id := fmt.Sprintf("b%d", f.seq)
	b := &models.Building{
		ID:           id,
		Name:         name,
		OwnerID:      ownerID,
		GMLKey:       "buildings/" + id + "/model.gml",
		TextureKey:   "buildings/" + id + "/texture.tif",
		UploadStatus: models.UploadStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.buildings[id] = b
	return &services.BuildingUpload{
		Building: b,
		GML:      models.UploadTask{Key: b.GMLKey, URL: "https://s3.test/put/" + b.GMLKey},
		Texture:  models.UploadTask{Key: b.TextureKey, URL: "https://s3.test/put/" + b.TextureKey},
	}, nil
}

func (f *fakeCatalog) MarkUploaded(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buildings[id]
	if !ok || b.UploadStatus != models.UploadStatusPending {
		return common.ErrorNotFound
	}
	b.UploadStatus = models.UploadStatusCompleted
	return nil
}

func (f *fakeCatalog) List(context.Context) ([]*models.Building, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Building, 0, len(f.buildings))
	for i := 1; i <= f.seq; i++ {
		if b, ok := f.buildings[fmt.Sprintf("b%d", i)]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*services.BuildingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buildings[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	v := &services.BuildingView{Building: b}
	if b.UploadStatus == models.UploadStatusCompleted {
		v.GMLURL = "https://s3.test/get/" + b.GMLKey
		v.TextureURL = "https://s3.test/get/" + b.TextureKey
	}
	return v, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buildings[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.buildings, id)
	return nil
}

func TestBuildings(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser("p@example.com")
	token := e.login("p@example.com").Access

	w := e.do(request{method: http.MethodGet, path: "/buildings"})
	assertError(t, w, http.StatusUnauthorized, "missing_token")

	w = e.do(request{method: http.MethodPost, path: "/buildings", bearer: token, body: BuildingCreate{Name: "Town Hall"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	up := decode[BuildingUploadOut](t, w)
	assert.Equal(t, u.ID, up.Building.OwnerID)
	assert.Equal(t, models.UploadStatusPending, up.Building.UploadStatus)
	assert.Equal(t, "https://s3.test/put/"+up.GML.Key, up.GML.URL)
	assert.NotEmpty(t, up.Texture.URL)

	id := up.Building.ID
	w = e.do(request{method: http.MethodGet, path: "/buildings/" + id, bearer: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[BuildingOut](t, w).GMLURL)

	w = e.do(request{method: http.MethodPost, path: "/buildings/" + id + "/uploaded", bearer: token})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(request{method: http.MethodPost, path: "/buildings/" + id + "/uploaded", bearer: token})
	assertError(t, w, http.StatusNotFound, "not_found")

	w = e.do(request{method: http.MethodGet, path: "/buildings/" + id, bearer: token})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[BuildingOut](t, w)
	assert.Equal(t, models.UploadStatusCompleted, got.UploadStatus)
	assert.Equal(t, "https://s3.test/get/"+up.GML.Key, got.GMLURL)

	w = e.do(request{method: http.MethodGet, path: "/buildings", bearer: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]BuildingOut](t, w), 1)

	w = e.do(request{method: http.MethodDelete, path: "/buildings/" + id, bearer: token})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(request{method: http.MethodDelete, path: "/buildings/" + id, bearer: token})
	assertError(t, w, http.StatusNotFound, "not_found")
}

func TestBuildings_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("p@example.com")
	token := e.login("p@example.com").Access

	w := e.do(request{method: http.MethodPost, path: "/buildings", bearer: token, body: `{}`})
	assertError(t, w, http.StatusBadRequest, "bad_request")

	e.catalog.err = fmt.Errorf("presign: %w", common.ErrorInternal)
	w = e.do(request{method: http.MethodPost, path: "/buildings", bearer: token, body: BuildingCreate{Name: "A"}})
	assertError(t, w, http.StatusInternalServerError, "internal_error")

	e.catalog.err = fmt.Errorf("list: %w", common.ErrStoreUnavailable)
	w = e.do(request{method: http.MethodGet, path: "/buildings", bearer: token})
	assertError(t, w, http.StatusServiceUnavailable, "store_unavailable")
}
