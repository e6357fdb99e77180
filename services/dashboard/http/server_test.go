package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercolorado/flowpath-viewer/services/dashboard/catalog"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/config"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/dashboard"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/frame"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/hydrofabric"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/netcdf"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/observability"
	"github.com/lowercolorado/flowpath-viewer/services/dashboard/session"
)

func writeSlice(t *testing.T, dir, name string, hour float64, flow []float32) {
	t.Helper()

	h := cdf.NewHeader([]string{netcdf.DimFeature, netcdf.DimTime}, []int{2, 1})
	h.AddVariable(netcdf.DimFeature, []string{netcdf.DimFeature}, []int32{0})
	h.AddVariable(netcdf.DimTime, []string{netcdf.DimTime}, []float64{0})
	h.AddAttribute(netcdf.DimTime, "units", "hours since 2023-04-01 00:00:00")
	h.AddVariable("flow", []string{netcdf.DimFeature, netcdf.DimTime}, []float32{0})
	h.Define()

	fh, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer fh.Close()

	f, err := cdf.Create(fh, h)
	require.NoError(t, err)
	for v, data := range map[string]any{
		netcdf.DimFeature: []int32{101, 102},
		netcdf.DimTime:    []float64{hour},
		"flow":            flow,
	} {
		end := f.Header.Lengths(v)
		_, err := f.Writer(v, make([]int, len(end)), end).Write(data)
		require.NoError(t, err)
	}
}

type stubLayers struct{}

func (stubLayers) Read(_ context.Context, _ string) (*hydrofabric.Layer, error) {
	return &hydrofabric.Layer{Geographic: true, Flowpaths: []hydrofabric.Flowpath{
		{ID: "wb-101", ToID: "nex-102", Geometry: geom.LineString{{X: -97, Y: 30}, {X: -97.1, Y: 30.1}}},
	}}, nil
}

func newTestServer(t *testing.T, token string) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeSlice(t, root, "202304010000.nc", 0, []float32{1, 10})
	writeSlice(t, root, "202304010100.nc", 1, []float32{2, 20})

	cfg := config.Config{
		Port:            8080,
		DatasetRoots:    []string{root},
		SessionTTL:      time.Hour,
		ShutdownTimeout: time.Second,
		BearerToken:     token,
	}
	metrics := observability.NewMetricsForTesting()
	store := session.NewStore(session.Defaults{Datasets: cfg.DatasetRoots, LayerPath: "/data/hf.gpkg"}, cfg.SessionTTL, nil)
	svc := dashboard.New(catalog.NewLocator(nil), netcdf.NewLoader(nil), stubLayers{}, dashboard.Options{
		Join:       frame.JoinInner,
		FitPadding: hydrofabric.DefaultFitPadding,
		Metrics:    metrics,
	})
	return New(cfg, store, svc, metrics, nil), root
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   string          `json:"error"`
	Warning string          `json:"warning"`
	Ignored bool            `json:"ignored"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var st session.State
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &st))
	require.NotEmpty(t, st.ID)
	return st.ID
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, http.MethodOptions, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	w := do(t, srv, http.MethodPost, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	srv, root := newTestServer(t, "")

	w := do(t, srv, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "v1", w.Header().Get("X-API-Version"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session_id=")
	env := decode(t, w)
	assert.Equal(t, "NoSelection", env.Meta["phase"])

	var st session.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, []string{root}, st.Datasets)
	assert.Equal(t, "flow", st.Column)

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPatch, "/api/v1/sessions/"+st.ID, `{"column":"depth","show_map":true,"from":"2023-04-01T01:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &st))
	assert.Equal(t, "depth", st.Column)
	assert.True(t, st.ShowMap)
	assert.Equal(t, time.Date(2023, 4, 1, 1, 0, 0, 0, time.UTC), st.Range.From)

	w = do(t, srv, http.MethodPatch, "/api/v1/sessions/"+st.ID, `{"column":"discharge"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPatch, "/api/v1/sessions/"+st.ID, `{"column":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/v1/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+st.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCookieSession(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var st session.State
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &st))

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "session_id" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, st.ID, cookie.Value)

	withCookie := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		srv.Engine().ServeHTTP(rec, req)
		return rec
	}

	w = withCookie(http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got session.State
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, st.ID, got.ID)

	w = withCookie(http.MethodPost, "/api/v1/session/selection/toggle", `{"feature_id":101}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HasSelection", decode(t, w).Meta["phase"])

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+st.ID, "")
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, []int64{101}, got.Selection.IDs())

	w = do(t, srv, http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = withCookie(http.MethodDelete, "/api/v1/session", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")

	w = withCookie(http.MethodGet, "/api/v1/session", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFilesAndFeatures(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := createSession(t, srv)

	w := do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["202304010000.nc","202304010100.nc"]`, string(decode(t, w).Data))

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/features", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[101,102]`, string(decode(t, w).Data))

	w = do(t, srv, http.MethodPatch, "/api/v1/sessions/"+id, `{"datasets":["`+t.TempDir()+`"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{dashboard.WarnNoFiles}, decode(t, w).Meta["warnings"])
}

func TestViewWarnsWithoutSelection(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := createSession(t, srv)

	w := do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, []any{dashboard.WarnNoSelection}, env.Meta["warnings"])

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/chart", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dashboard.WarnNoSelection, decode(t, w).Warning)
}

func TestToggleAndRender(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/selection/toggle", `{"feature_id":101}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "HasSelection", env.Meta["phase"])

	var view dashboard.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, []int64{101}, view.Selection)
	require.NotNil(t, view.Table)
	assert.Len(t, view.Table.Rows, 2)
	require.Len(t, view.Series, 1)
	assert.Equal(t, "Dataset 1 - feature_id: 101", view.Series[0].Label)

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/chart?format=svg", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/chart?format=gif", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/table.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "feature_id,time,type,flow\n"))

	w = do(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/selection/toggle", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapClick(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/map/click", `{"tooltip":"ID: wb-205\nTo ID: nex-206\n"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var view dashboard.View
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Equal(t, []int64{205}, view.Selection)

	w = do(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/map/click", `{"tooltip":"ID: 205\n"}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Ignored)
	var st session.State
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, []int64{205}, st.Selection.IDs())

	w = do(t, srv, http.MethodPost, "/api/v1/sessions/"+id+"/map/click", `{"tooltip":"ID: wb-205\n"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Empty(t, view.Selection)
}

func TestMapEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := createSession(t, srv)

	w := do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/map", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dashboard.ErrMapHidden.Error(), decode(t, w).Warning)

	do(t, srv, http.MethodPatch, "/api/v1/sessions/"+id, `{"show_map":true,"selection":[101]}`)
	w = do(t, srv, http.MethodGet, "/api/v1/sessions/"+id+"/map", "")
	require.Equal(t, http.StatusOK, w.Code)

	var m struct {
		Layer struct {
			Features []struct {
				Properties hydrofabric.Properties `json:"properties"`
			} `json:"features"`
		} `json:"layer"`
		View hydrofabric.View `json:"view"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &m))
	require.Len(t, m.Layer.Features, 1)
	assert.True(t, m.Layer.Features[0].Properties.Selected)
	assert.Equal(t, hydrofabric.HighlightStyle, m.Layer.Features[0].Properties.Style)
	assert.Equal(t, hydrofabric.DefaultZoom, m.View.Zoom)
	assert.NotNil(t, m.View.FitBounds)
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, "")

	for _, path := range []string{"/view", "/files", "/features", "/chart", "/table.csv", "/map"} {
		w := do(t, srv, http.MethodGet, "/api/v1/sessions/nope"+path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
