package management

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membersync/internal/logger"
	"membersync/pkg/errors"
)

func newTestRouter(f *serviceFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(f.service, logger.NopLogger()).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandler_CreateAndGetContainer(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f)

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/containers", `{
		"kind": "collection",
		"title": "Premium",
		"rule_set": {"rules": [{"field": "price", "operator": "greaterThan", "value": 100}], "logic": "AND"}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, float64(2), created["member_count"])
	assert.Equal(t, "collection", created["kind"])
	ruleSet := created["rule_set"].(map[string]any)
	assert.Equal(t, "AND", ruleSet["logic"])
	assert.Len(t, ruleSet["rules"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/stores/s1/containers/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["member_count"])

	w = do(t, router, http.MethodGet, "/api/v1/stores/s2/containers/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errors.ErrorResponse](t, w).ErrorCode)
}

func TestHandler_CreateRejectsUnknownOperator(t *testing.T) {
	router := newTestRouter(newServiceFixture())

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/containers", `{
		"kind": "collection",
		"title": "Broken",
		"rule_set": {"rules": [{"field": "price", "operator": "between", "value": [1, 2]}]}
	}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[errors.ErrorResponse](t, w).ErrorCode)
}

func TestHandler_CreateRequiresTitle(t *testing.T) {
	router := newTestRouter(newServiceFixture())

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/containers", `{"kind": "segment"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ManualMembersOnAutomatedContainer(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f)

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/containers", `{
		"kind": "segment",
		"title": "Big spenders",
		"rule_set": {"rules": [{"field": "totalSpent", "operator": "greaterThanOrEqual", "value": 1000}]}
	}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	w = do(t, router, http.MethodPost, "/api/v1/stores/s1/containers/"+id+"/members", `{"ids": ["u9"]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode[errors.ErrorResponse](t, w).ErrorCode)

	w = do(t, router, http.MethodDelete, "/api/v1/stores/s1/containers/"+id+"/rules", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/stores/s1/containers/"+id+"/members", `{"ids": ["u9", "u1"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	added := decode[AddMembersResponse](t, w)
	assert.Equal(t, 1, added.Added)
	assert.Equal(t, 2, added.MemberCount)

	w = do(t, router, http.MethodGet, "/api/v1/stores/s1/containers/"+id+"/members", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u1", "u9"}, decode[MembersResponse](t, w).MemberIDs)
}

func TestHandler_ReplaceRuleSet(t *testing.T) {
	f := newServiceFixture()
	router := newTestRouter(f)

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/containers", `{"kind": "collection", "title": "Manual"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	w = do(t, router, http.MethodPut, "/api/v1/stores/s1/containers/"+id+"/rules",
		`{"rules": [{"field": "tags", "operator": "contains", "value": "sale"}], "logic": "or"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[map[string]any](t, w)
	assert.Equal(t, "OR", body["rule_set"].(map[string]any)["logic"])
	assert.NotNil(t, body["refresh"])
	assert.Equal(t, []string{id}, f.collections.refreshed)
}

func TestHandler_RefreshInProgress(t *testing.T) {
	f := newServiceFixture()
	f.collections.err = errors.ErrRefreshInProgress
	router := newTestRouter(f)

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/refresh?kind=collection", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REFRESH_IN_PROGRESS", decode[errors.ErrorResponse](t, w).ErrorCode)
}

func TestHandler_RefreshStoreAllKinds(t *testing.T) {
	router := newTestRouter(newServiceFixture())

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/refresh", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string][]map[string]any](t, w)
	assert.Len(t, body["reports"], 2)
}

func TestHandler_Preview(t *testing.T) {
	router := newTestRouter(newServiceFixture())

	w := do(t, router, http.MethodPost, "/api/v1/stores/s1/preview", `{
		"kind": "collection",
		"rule_set": {"rules": [{"field": "price", "operator": "greaterThan", "value": 100}]}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"p2", "p3"}, decode[map[string]any](t, w)["member_ids"])
}
