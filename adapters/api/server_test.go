package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlid/app"
	"mlid/internal/multilevel"
)

func testServer() *Server {
	return NewServer(app.NewAnalysisService(multilevel.Options{}, nil), nil)
}

func postJSON(t *testing.T, router http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyze(t *testing.T) {
	body := map[string]interface{}{
		"units": []string{"u1", "u2", "u3", "u4"},
		"counts": map[string][]float64{
			"whiteb": {120, 110, 30, 25},
			"asian":  {10, 15, 95, 100},
		},
		"keys": map[string][]string{
			"district": {"d1", "d1", "d2", "d2"},
		},
		"spec": map[string]interface{}{
			"y":      "whiteb",
			"x":      "asian",
			"levels": []string{"district"},
		},
		"simulations": -1,
	}

	rec := postJSON(t, testServer().Router(), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	assert.GreaterOrEqual(t, res.ID, 0.0)
	assert.LessOrEqual(t, res.ID, 1.0)
	assert.Len(t, res.Decomposition, 2)
	assert.NotEmpty(t, res.Intervals)
	assert.Nil(t, res.Expected)
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	testServer().Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_BadTable(t *testing.T) {
	body := map[string]interface{}{
		"units": []string{"u1", "u2"},
		"counts": map[string][]float64{
			"whiteb": {120},
			"asian":  {10, 15},
		},
		"spec": map[string]interface{}{"y": "whiteb", "x": "asian"},
	}
	rec := postJSON(t, testServer().Router(), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_UnknownLevel(t *testing.T) {
	body := map[string]interface{}{
		"units": []string{"u1", "u2"},
		"counts": map[string][]float64{
			"whiteb": {120, 110},
			"asian":  {10, 15},
		},
		"spec": map[string]interface{}{
			"y":      "whiteb",
			"x":      "asian",
			"levels": []string{"ward"},
		},
		"simulations": -1,
	}
	rec := postJSON(t, testServer().Router(), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
