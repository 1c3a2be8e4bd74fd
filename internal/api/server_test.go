package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kgm-ocak/ocak-map/internal/auth"
	"github.com/kgm-ocak/ocak-map/internal/geo"
	"github.com/kgm-ocak/ocak-map/internal/model"
	"github.com/kgm-ocak/ocak-map/internal/monitoring"
	"github.com/kgm-ocak/ocak-map/internal/quarry"
	"github.com/kgm-ocak/ocak-map/internal/store"
	"github.com/kgm-ocak/ocak-map/pkg/directions"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeDirections returns a canned answer and records how often it was asked.
type fakeDirections struct {
	route *directions.Route
	err   error
	calls int
}

func (f *fakeDirections) Route(_ context.Context, origin, dest geo.Coordinate) (*directions.Route, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.route
	r.Origin, r.Destination = origin, dest
	return &r, nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	handler    http.Handler
	store      store.Store
	auth       *auth.Service
	directions *fakeDirections
	registry   *prometheus.Registry
	admin      *model.User
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	_, err = store.Seed(ctx, st)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	authSvc := auth.NewService(st, "api-test-secret", time.Hour, auth.WithBcryptCost(bcrypt.MinCost))

	admin, err := authSvc.CreateUser(ctx, auth.NewUser{Email: "admin@kgm.gov.tr", Password: "admin-pw", Role: model.RoleAdmin})
	require.NoError(t, err)
	user, err := authSvc.CreateUser(ctx, auth.NewUser{Email: "saha@kgm.gov.tr", Password: "saha-pw"})
	require.NoError(t, err)
	adminToken, err := authSvc.IssueToken(admin)
	require.NoError(t, err)
	userToken, err := authSvc.IssueToken(user)
	require.NoError(t, err)

	fake := &fakeDirections{route: &directions.Route{Distance: "451 km", Duration: "4 hours", DistanceMeters: 451000}}
	srv := New(Deps{
		Quarries:   quarry.NewService(st, quarry.WithMetrics(metrics)),
		Auth:       authSvc,
		Directions: fake,
		Health:     st,
		Metrics:    metrics,
		Gatherer:   reg,
	}, cfg)

	return &testEnv{
		handler:    srv.Handler(),
		store:      st,
		auth:       authSvc,
		directions: fake,
		registry:   reg,
		admin:      admin,
		adminToken: adminToken,
		userToken:  userToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/quarries/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, kind, body.Error)
	assert.NotEmpty(t, body.Message)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func strPtr(s string) *string { return &s }

func kmlDoc(placemarks string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><kml xmlns="http://www.opengis.net/kml/2.2"><Document>` +
		placemarks + `</Document></kml>`
}

func kmzWith(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[monitoring.Health](t, rec).Status)

	down := New(Deps{
		Auth:   env.auth,
		Health: pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, Config{}).Handler()
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	h := decodeBody[monitoring.Health](t, rec)
	assert.Equal(t, "unreachable", h.Store)
}

func TestQuarryLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/quarries", env.adminToken, model.QuarryInput{
		Name: " Kalker Ocağı ", Latitude: "39.93", Longitude: "32.86", Province: strPtr("Ankara"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[model.Quarry](t, rec)
	assert.Equal(t, "Kalker Ocağı", created.Name)
	assert.Equal(t, "39.9300000", created.Latitude)

	path := "/api/quarries/" + strconv.FormatInt(created.ID, 10)
	rec = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[model.Quarry](t, rec).ID)

	rec = env.do(t, http.MethodPatch, path, env.adminToken, model.QuarryPatch{District: strPtr("Çankaya")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[model.Quarry](t, rec)
	require.NotNil(t, updated.District)
	assert.Equal(t, "Çankaya", *updated.District)
	assert.Equal(t, "Kalker Ocağı", updated.Name)

	rec = env.do(t, http.MethodGet, "/api/quarries/search?q=kalker", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Quarry](t, rec), 1)

	rec = env.do(t, http.MethodDelete, path, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[successResponse](t, rec).Success)

	assertError(t, env.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, "NotFound")
}

func TestQuarryErrors(t *testing.T) {
	env := newTestEnv(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"bad latitude", http.MethodPost, "/api/quarries", model.QuarryInput{Name: "X", Latitude: "95", Longitude: "32"}, http.StatusBadRequest, "InvalidRecord"},
		{"missing name", http.MethodPost, "/api/quarries", model.QuarryInput{Latitude: "39", Longitude: "32"}, http.StatusBadRequest, "InvalidRecord"},
		{"unknown field", http.MethodPost, "/api/quarries", map[string]string{"nme": "typo"}, http.StatusBadRequest, "BadRequest"},
		{"non-numeric id", http.MethodGet, "/api/quarries/abc", nil, http.StatusBadRequest, "BadRequest"},
		{"absent id", http.MethodGet, "/api/quarries/999999", nil, http.StatusNotFound, "NotFound"},
		{"update absent id", http.MethodPatch, "/api/quarries/999999", model.QuarryPatch{Name: strPtr("Y")}, http.StatusNotFound, "NotFound"},
		{"unknown province", http.MethodGet, "/api/quarries/distances?province=Atlantis", nil, http.StatusNotFound, "ProvinceNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, env.do(t, tt.method, tt.path, env.adminToken, tt.body), tt.status, tt.kind)
		})
	}
}

func TestAccessControl(t *testing.T) {
	env := newTestEnv(t, Config{})
	input := model.QuarryInput{Name: "X", Latitude: "39", Longitude: "32"}

	assertError(t, env.do(t, http.MethodPost, "/api/quarries", "", input), http.StatusUnauthorized, "Unauthorized")
	assertError(t, env.do(t, http.MethodPost, "/api/quarries", env.userToken, input), http.StatusForbidden, "Forbidden")
	assertError(t, env.do(t, http.MethodPost, "/api/quarries/bulk-delete", env.userToken, bulkDeleteRequest{IDs: []int64{1}}), http.StatusForbidden, "Forbidden")
	assertError(t, env.do(t, http.MethodGet, "/api/admin/users", env.userToken, nil), http.StatusForbidden, "Forbidden")
	assertError(t, env.do(t, http.MethodGet, "/api/quarries.xlsx", "", nil), http.StatusUnauthorized, "Unauthorized")
	assertError(t, env.do(t, http.MethodGet, "/api/quarries.xlsx", "forged.token.value", nil), http.StatusUnauthorized, "Unauthorized")

	rec := env.do(t, http.MethodGet, "/api/quarries.xlsx", env.userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ocaklar.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = env.do(t, http.MethodGet, "/api/quarries", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBulkCreateAndDelete(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	valid := []model.QuarryInput{
		{Name: "A", Latitude: "39.1", Longitude: "32.1"},
		{Name: "B", Latitude: "39.2", Longitude: "32.2"},
		{Name: "C", Latitude: "39.3", Longitude: "32.3"},
	}

	bad := append(append([]model.QuarryInput{}, valid...), model.QuarryInput{Name: "D", Latitude: "north", Longitude: "32"})
	rec := env.do(t, http.MethodPost, "/api/quarries/bulk", env.adminToken, bulkCreateRequest{Quarries: bad})
	assertError(t, rec, http.StatusBadRequest, "InvalidRecord")
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "record 3")
	n, err := env.store.CountQuarries(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec = env.do(t, http.MethodPost, "/api/quarries/bulk", env.adminToken, bulkCreateRequest{Quarries: valid})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[successResponse](t, rec)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 3, *resp.Count)

	list, err := env.store.ListQuarries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	rec = env.do(t, http.MethodPost, "/api/quarries/bulk-delete", env.adminToken,
		bulkDeleteRequest{IDs: []int64{list[0].ID, list[1].ID, 999999}})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[successResponse](t, rec)
	require.NotNil(t, resp.Count)
	assert.Equal(t, 3, *resp.Count)

	n, err = env.store.CountQuarries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDistancesAndProvinces(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, in := range []model.QuarryInput{
		{Name: "İzmir Ocağı", Latitude: "38.4237", Longitude: "27.1428"},
		{Name: "Ankara Ocağı", Latitude: "39.93", Longitude: "32.86"},
		{Name: "Kırıkkale Ocağı", Latitude: "39.8468", Longitude: "33.5153"},
	} {
		rec := env.do(t, http.MethodPost, "/api/quarries", env.adminToken, in)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/quarries/distances?province=Ankara", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ranked := decodeBody[[]model.RankedQuarry](t, rec)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Ankara Ocağı", ranked[0].Name)
	assert.Equal(t, "Kırıkkale Ocağı", ranked[1].Name)
	assert.Equal(t, "İzmir Ocağı", ranked[2].Name)
	assert.Less(t, ranked[0].DistanceKm, 1.0)

	rec = env.do(t, http.MethodGet, "/api/provinces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Province](t, rec), 81)

	rec = env.do(t, http.MethodGet, "/api/quarries/search?q=%20%20", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGeoJSON(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/quarries", env.adminToken,
		model.QuarryInput{Name: "Ocak", Latitude: "39.5", Longitude: "33.5"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/quarries.geojson", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, geoJSONContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"FeatureCollection"`)
	assert.Contains(t, rec.Body.String(), `"Ocak"`)
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, Config{MaxUploadBytes: 64 << 10})

	doc := kmlDoc(`
		<Placemark><name>Polatlı</name><Point><coordinates>32.1456,39.5842,0</coordinates></Point></Placemark>
		<Placemark><name>Only a line</name><LineString><coordinates>33,39 34,40</coordinates></LineString></Placemark>`)

	t.Run("kml", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "ocaklar.kml", []byte(doc))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decodeBody[quarry.ImportResult](t, rec)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, 1, res.Skipped)
	})

	t.Run("kmz", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "OCAKLAR.KMZ", kmzWith(t, "doc.kml", doc))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 1, decodeBody[quarry.ImportResult](t, rec).Created)
	})

	t.Run("kmz without kml", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "photos.kmz", kmzWith(t, "images/a.png", "png"))
		assertError(t, rec, http.StatusUnprocessableEntity, "NoKmlInArchive")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "ocaklar.csv", []byte("name,lat,lng"))
		assertError(t, rec, http.StatusUnsupportedMediaType, "UnsupportedFileFormat")
	})

	t.Run("no placemarks", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "empty.kml", []byte(kmlDoc("")))
		assertError(t, rec, http.StatusUnprocessableEntity, "NoPlacemarks")
	})

	t.Run("malformed", func(t *testing.T) {
		rec := env.upload(t, env.adminToken, "cut.kml", []byte(`<kml><Document><Placemark><name>cut`))
		assertError(t, rec, http.StatusUnprocessableEntity, "MalformedDocument")
	})

	t.Run("too large", func(t *testing.T) {
		big := kmlDoc(strings.Repeat("<!-- padding -->", 8<<10))
		rec := env.upload(t, env.adminToken, "big.kml", []byte(big))
		assertError(t, rec, http.StatusRequestEntityTooLarge, "PayloadTooLarge")
	})

	t.Run("missing file field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/quarries/import", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+env.adminToken)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, "BadRequest")
	})

	t.Run("user role", func(t *testing.T) {
		rec := env.upload(t, env.userToken, "ocaklar.kml", []byte(doc))
		assertError(t, rec, http.StatusForbidden, "Forbidden")
	})

	n, err := env.store.CountQuarries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, counterValue(t, env.registry, "ocak_import_placemarks_total", map[string]string{"result": "created"}))
}

func TestRoute(t *testing.T) {
	env := newTestEnv(t, Config{})
	const query = "/api/route?originLat=39.9334&originLng=32.8597&destLat=41.0082&destLng=28.9784"

	rec := env.do(t, http.MethodGet, query, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	route := decodeBody[directions.Route](t, rec)
	assert.Equal(t, "451 km", route.Distance)
	assert.Equal(t, geo.Coordinate{Lat: 39.9334, Lng: 32.8597}, route.Origin)

	calls := env.directions.calls
	for _, bad := range []string{
		"/api/route?originLat=abc&originLng=32&destLat=41&destLng=28",
		"/api/route?originLat=39&originLng=32&destLat=91&destLng=28",
		"/api/route?originLat=39&originLng=32",
	} {
		assertError(t, env.do(t, http.MethodGet, bad, "", nil), http.StatusBadRequest, "MalformedCoordinates")
	}
	assert.Equal(t, calls, env.directions.calls)

	env.directions.err = directions.ErrNoRoute
	assertError(t, env.do(t, http.MethodGet, query, "", nil), http.StatusNotFound, "NoRouteFound")

	env.directions.err = directions.ErrProviderUnavailable
	assertError(t, env.do(t, http.MethodGet, query, "", nil), http.StatusServiceUnavailable, "RouteProviderUnavailable")

	outcome := func(o string) float64 {
		return counterValue(t, env.registry, "ocak_route_requests_total", map[string]string{"outcome": o})
	}
	assert.Equal(t, 1.0, outcome(monitoring.RouteOK))
	assert.Equal(t, 3.0, outcome(monitoring.RouteInvalid))
	assert.Equal(t, 1.0, outcome(monitoring.RouteNoRoute))
	assert.Equal(t, 1.0, outcome(monitoring.RouteUnavailable))
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "saha@kgm.gov.tr", Password: "saha-pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody[loginResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "saha@kgm.gov.tr", decodeBody[model.User](t, rec).Email)

	assertError(t, env.do(t, http.MethodPost, "/api/auth/login", "",
		loginRequest{Email: "saha@kgm.gov.tr", Password: "wrong"}), http.StatusUnauthorized, "InvalidCredentials")
	assertError(t, env.do(t, http.MethodPost, "/api/auth/login", "",
		loginRequest{Email: "ghost@kgm.gov.tr", Password: "saha-pw"}), http.StatusUnauthorized, "InvalidCredentials")

	hash, err := env.auth.HashPassword("pending-pw")
	require.NoError(t, err)
	_, err = env.store.CreateUser(context.Background(), model.User{Email: "pending@kgm.gov.tr", PasswordHash: hash, Role: model.RoleUser})
	require.NoError(t, err)
	assertError(t, env.do(t, http.MethodPost, "/api/auth/login", "",
		loginRequest{Email: "pending@kgm.gov.tr", Password: "pending-pw"}), http.StatusForbidden, "NotApproved")
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	hash, err := env.auth.HashPassword("pw")
	require.NoError(t, err)
	pending, err := env.store.CreateUser(ctx, model.User{Email: "yeni@kgm.gov.tr", PasswordHash: hash, Role: model.RoleUser})
	require.NoError(t, err)
	pendingPath := "/api/admin/users/" + strconv.FormatInt(pending.ID, 10)

	rec := env.do(t, http.MethodGet, "/api/admin/users", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.User](t, rec), 3)

	rec = env.do(t, http.MethodGet, "/api/admin/users/pending", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]model.User](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, pending.ID, list[0].ID)

	rec = env.do(t, http.MethodPost, pendingPath+"/approve", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPatch, pendingPath+"/role", env.adminToken, roleRequest{Role: model.RoleAdmin})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := env.store.GetUser(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	assert.Equal(t, model.RoleAdmin, got.Role)

	assertError(t, env.do(t, http.MethodPatch, pendingPath+"/role", env.adminToken, roleRequest{Role: "owner"}),
		http.StatusBadRequest, "InvalidUser")

	rec = env.do(t, http.MethodPost, "/api/admin/users", env.adminToken,
		auth.NewUser{Email: "ekip@kgm.gov.tr", Password: "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[model.User](t, rec).Approved)

	assertError(t, env.do(t, http.MethodPost, "/api/admin/users", env.adminToken,
		auth.NewUser{Email: "EKIP@kgm.gov.tr", Password: "pw"}), http.StatusConflict, "Conflict")

	selfPath := "/api/admin/users/" + strconv.FormatInt(env.admin.ID, 10)
	assertError(t, env.do(t, http.MethodDelete, selfPath, env.adminToken, nil), http.StatusBadRequest, "InvalidUser")

	rec = env.do(t, http.MethodDelete, pendingPath, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertError(t, env.do(t, http.MethodDelete, pendingPath, env.adminToken, nil), http.StatusNotFound, "NotFound")
}

func TestRequestIDAndMetrics(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/api/provinces", "", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/provinces", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", rec.Header().Get(RequestIDHeader))

	assert.Equal(t, 2.0, counterValue(t, env.registry, "ocak_http_requests_total",
		map[string]string{"route": "/api/provinces", "status": "200"}))

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ocak_http_requests_total")
}
