package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/monitoring"
	"github.com/blocktrace/blocktrace/internal/resilience"
)

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorEnvelope struct {
	Error  ErrorBody         `json:"error"`
	Fields map[string]string `json:"fields"`
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	breakers.Get("backend")
	env.deps.Breakers = breakers
	r := NewRouter(env.deps)

	rec := do(t, r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","breakers":{"backend":"closed"}}`, rec.Body.String())
}

func TestHealth_NoBreakers(t *testing.T) {
	r := NewRouter(Dependencies{})
	rec := do(t, r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORS_AllowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Config.Server.CORSOrigins = []string{"http://localhost:3000"}
	r := NewRouter(env.deps)

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuth_LoginMeLogout(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(t, r, http.MethodPost, "/auth/login", "", map[string]string{"credential": testPrincipal})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[loginResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, testPrincipal, login.Session.Principal)
	assert.Equal(t, model.AuthPlugWallet, login.Session.AuthMethod)

	rec = do(t, r, http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.Session](t, rec)
	assert.Equal(t, login.Session.ID, me.ID)

	rec = do(t, r, http.MethodPost, "/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, r, http.MethodGet, "/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_LoginErrors(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(t, r, http.MethodPost, "/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/auth/login", "", map[string]string{"method": "metamask", "credential": testPrincipal})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/auth/login", "", map[string]string{"credential": "not-a-principal"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not_authenticated", decode[errorEnvelope](t, rec).Error.Code)
}

func TestAuth_Methods(t *testing.T) {
	env := newTestEnv(t)
	rec := do(t, NewRouter(env.deps), http.MethodGet, "/auth/methods", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"methods":["plug-wallet"]}`, rec.Body.String())
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	for _, path := range []string{
		"/auth/me", "/products", "/products/p1/timeline", "/products/p1/route",
		"/products/p1/story", "/products/p1/esg", "/esg", "/stats", "/nfts", "/monitoring/updates",
	} {
		rec := do(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := do(t, r, http.MethodGet, "/products", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorBodyShape(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(t, r, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[map[string]map[string]string](t, rec)
	require.Len(t, body, 1)
	assert.Equal(t, "not_authenticated", body["error"]["code"])
	assert.NotEmpty(t, body["error"]["message"])
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())

	env.backend.products = []string{"coffee-1", "tea-2"}
	rec = do(t, r, http.MethodGet, "/products", token, nil)
	assert.JSONEq(t, `{"products":["coffee-1","tea-2"]}`, rec.Body.String())
}

func TestBackendUnavailable_Is503(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)
	env.backend.err = &resilience.UnavailableError{Service: "backend", Err: errors.New("connection refused")}

	rec := do(t, r, http.MethodGet, "/products", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "backend_unavailable", decode[errorEnvelope](t, rec).Error.Code)
}

func TestInternalError_HidesDetail(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)
	env.backend.err = eris.New("secret database detail")

	rec := do(t, r, http.MethodGet, "/products", token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestTimeline(t *testing.T) {
	env := newTestEnv(t)
	env.backend.histories["coffee-1"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/timeline", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[timelineResponse](t, rec)
	assert.Equal(t, "coffee-1", got.ProductID)
	assert.Len(t, got.Events, 3)
	assert.Equal(t, 3, got.TotalEvents)
	assert.Equal(t, 2, got.Latest)
	assert.Equal(t, []string{"farmer", "transporter", "retailer"}, got.Roles)
	assert.False(t, got.Empty)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.TotalEvents)
	assert.Equal(t, 2, got.Summary.VerifiedCount)
	assert.Equal(t, model.StatusDelay, got.Events[1].Status)
}

func TestTimeline_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.backend.histories["coffee-1"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/timeline?status=delay", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[timelineResponse](t, rec)
	require.Len(t, got.Events, 1)
	assert.Equal(t, 1, got.Events[0].Index)
	assert.Equal(t, 3, got.TotalEvents)
	assert.Equal(t, 1, got.Latest)

	// Events without a quality score stay visible under a quality range.
	rec = do(t, r, http.MethodGet, "/products/coffee-1/timeline?quality_range=80-100&role=all", token, nil)
	got = decode[timelineResponse](t, rec)
	require.Len(t, got.Events, 2)
	assert.Equal(t, 0, got.Events[0].Index)
	assert.Equal(t, 2, got.Events[1].Index)

	rec = do(t, r, http.MethodGet, "/products/coffee-1/timeline?quality_range=90-10", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/products/coffee-1/timeline?transport_mode=rocket", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeline_UnknownProductIsEmptyState(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/missing/timeline", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[timelineResponse](t, rec)
	assert.True(t, got.Empty)
	assert.Empty(t, got.Events)
	assert.Nil(t, got.Summary)
	assert.Equal(t, -1, got.Latest)
	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestTimelineXLSX(t *testing.T) {
	env := newTestEnv(t)
	env.backend.histories["coffee-1"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/timeline.xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `coffee-1-timeline.xlsx`)

	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, f.Sheets)
	assert.Equal(t, 4, f.Sheets[0].MaxRow)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.1", sanitizeFilename("a/b c.1"))
}

func TestRoute(t *testing.T) {
	env := newTestEnv(t)
	env.backend.histories["coffee-1"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/route", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)

	rec = do(t, r, http.MethodGet, "/products/coffee-1/route.wkb", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = do(t, r, http.MethodGet, "/products/missing/route.wkb", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStory(t *testing.T) {
	env := newTestEnv(t)
	env.backend.histories["coffee-1"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/story", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[storyResponse](t, rec)
	assert.NotEmpty(t, got.Story)
	assert.False(t, got.Narrated)
	assert.Contains(t, got.Story, "Huila, Colombia")

	rec = do(t, r, http.MethodGet, "/products/missing/story", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[storyResponse](t, rec).Empty)
}

func TestProductESG(t *testing.T) {
	env := newTestEnv(t)
	env.backend.scores["coffee-1"] = &model.ESGScore{ProductID: "coffee-1", SustainabilityScore: 85}
	env.backend.histories["tea-2"] = sampleSteps()
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/products/coffee-1/esg", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[scoreResponse](t, rec)
	assert.Equal(t, uint8(85), got.Score.SustainabilityScore)
	assert.Equal(t, "Excellent", got.Label)
	assert.False(t, got.Estimated)

	rec = do(t, r, http.MethodGet, "/products/tea-2/esg", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[scoreResponse](t, rec).Estimated)

	rec = do(t, r, http.MethodGet, "/products/none/esg", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFleetESG(t *testing.T) {
	env := newTestEnv(t)
	env.backend.allScores = []model.ESGScore{
		{ProductID: "a", SustainabilityScore: 90, TotalDistanceKm: 100, TotalSteps: 4, CO2SavedVsTraditional: 10},
		{ProductID: "b", SustainabilityScore: 70, TotalDistanceKm: 300, TotalSteps: 2, CO2SavedVsTraditional: 5},
	}
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/esg?refine=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Principal string `json:"principal"`
		Scores    []any  `json:"scores"`
		Refined   bool   `json:"refined"`
		Best      struct {
			ProductID string `json:"product_id"`
		} `json:"best"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, testPrincipal, got.Principal)
	assert.Len(t, got.Scores, 2)
	assert.Equal(t, "a", got.Best.ProductID)
	assert.False(t, got.Refined)

	rec = do(t, r, http.MethodGet, "/esg?refine=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddStep(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodPost, "/steps", token, map[string]any{
		"product_id": "coffee-1", "actor_name": "Finca Alta", "role": "farmer",
		"action": "harvested", "location": "Huila", "notes": "  ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"product_id":"coffee-1","message":"Step added successfully"}`, rec.Body.String())
	require.Len(t, env.backend.added, 1)
	assert.Nil(t, env.backend.added[0].Notes)
}

func TestAddStep_Invalid(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodPost, "/steps", token, map[string]any{
		"actor_name": "Finca Alta", "role": "farmer", "action": "harvested", "location": "Huila",
		"quality_score": 140,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode[errorEnvelope](t, rec)
	assert.Equal(t, "invalid_input", got.Error.Code)
	assert.Equal(t, "required", got.Fields["product_id"])
	assert.Equal(t, "max", got.Fields["quality_score"])
	assert.Empty(t, env.backend.added)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.backend.count = 42
	env.backend.info = "BlockTrace backend v1"
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_steps":42,"canister_info":"BlockTrace backend v1"}`, rec.Body.String())
}

func TestNFTs(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/nfts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nfts":[]}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/nfts", token, model.NFTMetadata{
		ProductName: "Huila Reserve", BatchID: "B-1", Manufacturer: "Finca Alta",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"token_id":0}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/nfts/0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nft := decode[model.NFT](t, rec)
	assert.Equal(t, "Huila Reserve", nft.Metadata.ProductName)

	rec = do(t, r, http.MethodGet, "/nfts/7", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/nfts/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/nfts", token, model.NFTMetadata{ProductName: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPassports(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodPost, "/passports", token, `{"product":"coffee-1","grade":"AA"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/passports/0", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product":"coffee-1","grade":"AA"}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/passports/9", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDemoTimeline(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)

	rec := do(t, r, http.MethodGet, "/demo/timeline?start=2025-01-01T00:00:00Z", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[demoResponse](t, rec)
	assert.True(t, got.Synthesized)
	require.NotEmpty(t, got.Events)
	for _, ev := range got.Events {
		assert.True(t, ev.Synthesized)
	}
	assert.Equal(t, len(got.Events)-1, got.Latest)

	again := do(t, r, http.MethodGet, "/demo/timeline?start=2025-01-01T00:00:00Z", "", nil)
	assert.Equal(t, rec.Body.String(), again.Body.String())

	rec = do(t, r, http.MethodGet, "/demo/timeline?start=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitoringUpdates(t *testing.T) {
	env := newTestEnv(t)
	r := NewRouter(env.deps)
	token := env.login(t)

	rec := do(t, r, http.MethodGet, "/monitoring/updates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"updates":[]}`, rec.Body.String())

	env.backend.allScores = []model.ESGScore{{ProductID: "a", SustainabilityScore: 50}}
	cfg := env.deps.Config.Monitoring
	checker := monitoring.NewChecker(monitoring.NewCollector(env.backend, testPrincipal), monitoring.NewAlerter(cfg), cfg)
	checker.Check(t.Context())
	env.backend.allScores = []model.ESGScore{{ProductID: "a", SustainabilityScore: 60}}
	checker.Check(t.Context())
	env.deps.Checker = checker
	r = NewRouter(env.deps)

	rec = do(t, r, http.MethodGet, "/monitoring/updates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Enabled bool               `json:"enabled"`
		Updates []monitoring.Alert `json:"updates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Enabled)
	require.Len(t, got.Updates, 1)
	assert.Equal(t, monitoring.AlertScoreChange, got.Updates[0].Type)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decode[errorEnvelope](t, rec).Error.Code)
}
