package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptocagua/dao"
	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
	"cryptocagua/usecase"
)

type fakeAdvisor struct{}

func (fakeAdvisor) GenerateDescription(_ context.Context, title, category string) (string, error) {
	return title + " / " + category, nil
}

func (fakeAdvisor) AnalyzeOffer(context.Context, string) (string, error) {
	return "low risk", nil
}

// harness drives the router as one client. do sends the admin token from
// the last successful login; doAs sends an explicit one.
type harness struct {
	router   *gin.Engine
	settings *dao.SettingsRepository
	token    string
}

func newHarness(t *testing.T, sheetURL string, advisor usecase.Advisor) *harness {
	t.Helper()
	return newHarnessWithHostCheck(t, sheetURL, advisor, false)
}

func newHarnessWithHostCheck(t *testing.T, sheetURL string, advisor usecase.Advisor, requireGoogleHost bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := dao.NewMemoryStore()
	settings := dao.NewSettingsRepository(store, sheetURL)
	remote := sheets.NewClient(settings, time.Second, logger)
	offers := usecase.NewOfferUsecase(dao.NewOfferCache(store), settings, remote, nil, logger)
	admin := usecase.NewAdminUsecase(settings, remote, "1234", requireGoogleHost, logger)
	advisorUC := usecase.NewAdvisorUsecase(advisor, offers)

	router := NewRouter(
		NewOfferController(offers, advisorUC, settings),
		NewAdminController(admin, "http://localhost:8080"),
	)
	return &harness{router: router, settings: settings}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w, out := h.doAs(t, h.token, method, path, body)
	if path == "/api/admin/login" && w.Code == http.StatusOK {
		h.token, _ = out["token"].(string)
	}
	return w, out
}

func (h *harness) doAs(t *testing.T, token, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func draftBody() model.Draft {
	return model.Draft{
		Type: model.OfferTypeSell, Category: model.CategoryCrypto,
		Title: "Sell 100 USDT", Description: "fast", Asset: "USDT", Price: "1.00",
		Location: "Caracas", Nickname: "alice", ContactInfo: "5551234567",
	}
}

func TestOfferLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, "", nil)

	w, body := h.do(t, http.MethodPost, "/api/offers", draftBody())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["local_only"])
	offer := body["offer"].(map[string]interface{})
	id := offer["id"].(string)
	assert.Equal(t, "PENDING", offer["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = h.do(t, http.MethodGet, "/api/offers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
	assert.Equal(t, true, body["stale"])

	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "1234"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = h.do(t, http.MethodGet, "/api/offers?view=pending&refresh=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)

	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/admin/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = h.do(t, http.MethodGet, "/api/offers?q=usdt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)

	w, body = h.do(t, http.MethodGet, "/api/offers/"+id+"/contact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["whatsapp"], "https://wa.me/5551234567")

	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/withdraw", map[string]string{"contact": "999"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/withdraw", map[string]string{"contact": "555 123 4567"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodGet, "/api/offers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminSessionIsPerClient(t *testing.T) {
	h := newHarness(t, "", nil)

	_, body := h.do(t, http.MethodPost, "/api/offers", draftBody())
	id := body["offer"].(map[string]interface{})["id"].(string)

	w, body := h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "1234"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, h.token)
	cookie := w.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, sessionCookie, cookie[0].Name)
	assert.Equal(t, h.token, cookie[0].Value)
	assert.True(t, cookie[0].HttpOnly)
	assert.Equal(t, h.token, body["token"])

	// A second client without the token stays anonymous.
	w, body = h.doAs(t, "", http.MethodGet, "/api/offers?view=pending&refresh=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
	w, _ = h.doAs(t, "", http.MethodPost, "/api/offers/"+id+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.doAs(t, "", http.MethodDelete, "/api/offers/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.doAs(t, "", http.MethodGet, "/api/admin/settings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, body = h.doAs(t, "", http.MethodGet, "/api/admin/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["admin"])
	w, _ = h.doAs(t, "not-a-token", http.MethodPost, "/api/offers/"+id+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The cookie alone is enough for the admin's browser.
	req := httptest.NewRequest(http.MethodGet, "/api/offers?view=pending&refresh=false", nil)
	req.AddCookie(cookie[0])
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed["data"], 1)

	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = h.doAs(t, "", http.MethodGet, "/api/offers?refresh=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "APPROVED", data[0].(map[string]interface{})["status"])

	w, _ = h.do(t, http.MethodPost, "/api/admin/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/admin/settings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, "", nil)

	d := draftBody()
	d.Price = ""
	w, body := h.do(t, http.MethodPost, "/api/offers", d)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "price")

	req := httptest.NewRequest(http.MethodPost, "/api/offers", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReportsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	h := newHarness(t, srv.URL, nil)

	w, body := h.do(t, http.MethodPost, "/api/offers", draftBody())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, body["synced"])
	assert.Equal(t, "permission_denied", body["remote_diagnosis"])
	assert.NotEmpty(t, body["remote_error"])
}

func TestAdminSettingsAndConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()
	h := newHarness(t, "", nil)

	w, _ := h.do(t, http.MethodGet, "/api/admin/settings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "1234"})

	w, body := h.do(t, http.MethodGet, "/api/admin/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["admin"])

	w, body = h.do(t, http.MethodPost, "/api/admin/test-connection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "misconfigured_url", body["kind"])

	w, _ = h.do(t, http.MethodGet, "/api/admin/magic-link", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = h.do(t, http.MethodPut, "/api/admin/settings", model.Settings{SheetURL: srv.URL, AdminPhone: "+58 412 0000000"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body = h.do(t, http.MethodPost, "/api/admin/test-connection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])

	w, body = h.do(t, http.MethodGet, "/api/admin/magic-link", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["link"], "http://localhost:8080?setup=")

	w, body = h.do(t, http.MethodGet, "/api/admin/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "584120000000", data["adminPhone"])
}

func TestMagicLinkApply(t *testing.T) {
	h := newHarness(t, "", nil)

	w, _ := h.do(t, http.MethodPost, "/api/admin/magic-link", map[string]string{"code": "???"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code := usecase.EncodeSetupCode("https://script.google.com/macros/s/X/exec")
	w, _ = h.do(t, http.MethodPost, "/api/admin/magic-link", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, w.Code)

	url, err := h.settings.SheetURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://script.google.com/macros/s/X/exec", url)

	// Once configured, an anonymous client cannot repoint the node.
	other := usecase.EncodeSetupCode("https://script.google.com/macros/s/Y/exec")
	w, _ = h.do(t, http.MethodPost, "/api/admin/magic-link", map[string]string{"code": other})
	assert.Equal(t, http.StatusForbidden, w.Code)

	h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "1234"})
	w, _ = h.do(t, http.MethodPost, "/api/admin/magic-link", map[string]string{"code": other})
	require.Equal(t, http.StatusOK, w.Code)
	url, err = h.settings.SheetURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://script.google.com/macros/s/Y/exec", url)
}

func TestMagicLinkRejectsForeignHost(t *testing.T) {
	h := newHarnessWithHostCheck(t, "", nil, true)

	code := usecase.EncodeSetupCode("http://attacker.example/collect")
	w, body := h.do(t, http.MethodPost, "/api/admin/magic-link", map[string]string{"code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "script.google.com")

	url, err := h.settings.SheetURL(context.Background())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestAIEndpoints(t *testing.T) {
	h := newHarness(t, "", nil)
	w, _ := h.do(t, http.MethodPost, "/api/ai/description", map[string]string{"title": "x", "category": "CRYPTO"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h = newHarness(t, "", fakeAdvisor{})
	w, body := h.do(t, http.MethodPost, "/api/ai/description", map[string]string{"title": "Sell 100 USDT", "category": "CRYPTO"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sell 100 USDT / Criptomonedas", body["description"])

	w, _ = h.do(t, http.MethodPost, "/api/ai/description", map[string]string{"title": "", "category": "CRYPTO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/offers/missing/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRatingAndProfile(t *testing.T) {
	h := newHarness(t, "", nil)
	_, body := h.do(t, http.MethodPost, "/api/offers", draftBody())
	id := body["offer"].(map[string]interface{})["id"].(string)

	h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"pin": "1234"})
	h.do(t, http.MethodPost, "/api/offers/"+id+"/approve", nil)

	w, _ := h.do(t, http.MethodPost, "/api/offers/"+id+"/rating", map[string]int{"stars": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/offers/"+id+"/rating", map[string]int{"stars": 4})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, h.settings.SaveAdminPhone(context.Background(), "584120000000"))
	w, body = h.do(t, http.MethodPost, "/api/offers/"+id+"/rating", map[string]int{"stars": 4})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["whatsapp"], "https://wa.me/584120000000")

	w, body = h.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["data"].(map[string]interface{})["nickname"])

	w, _ = h.do(t, http.MethodDelete, "/api/offers/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/offers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, "", nil)
	w, _ := h.do(t, http.MethodOptions, "/api/offers", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
