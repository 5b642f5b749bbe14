package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartlink/smartlink/internal/challenge"
	"github.com/smartlink/smartlink/internal/handler/dto"
	"github.com/smartlink/smartlink/internal/model"
)

const (
	chromeUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	bytespiderUA = "Mozilla/5.0 (compatible; Bytespider; spider-feedback@bytedance.com)"
)

func browserRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Referer", "https://www.google.com/")
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	disabled := testLink("off123")
	disabled.Enabled = false

	tests := []struct {
		name     string
		path     string
		mutate   func(r *http.Request)
		wantCode int
		wantLoc  string
		wantType model.ClickType
	}{
		{
			name:     "browser reaches target",
			path:     "/abc123",
			wantCode: http.StatusFound,
			wantLoc:  "https://target.example/abc123",
			wantType: model.ClickHuman,
		},
		{
			name:     "tiktok crawler gets tiktok decoy",
			path:     "/abc123",
			mutate:   func(r *http.Request) { r.Header.Set("User-Agent", bytespiderUA) },
			wantCode: http.StatusFound,
			wantLoc:  testBaseURL + "/safe/abc123/tiktok",
			wantType: model.ClickBot,
		},
		{
			name:     "missing user agent gets generic decoy",
			path:     "/abc123",
			mutate:   func(r *http.Request) { r.Header.Del("User-Agent") },
			wantCode: http.StatusFound,
			wantLoc:  testBaseURL + "/safe/abc123",
			wantType: model.ClickBot,
		},
		{
			name:     "terse agent is challenged",
			path:     "/abc123",
			mutate:   func(r *http.Request) { r.Header.Set("User-Agent", "Mozilla/5.0 Mobile") },
			wantCode: http.StatusFound,
			wantLoc:  testBaseURL + "/challenge/abc123",
			wantType: model.ClickSuspect,
		},
		{
			name:     "unknown code",
			path:     "/nope42",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "disabled link looks missing",
			path:     "/off123",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, testLink("abc123"), disabled)
			req := browserRequest(http.MethodGet, tt.path)
			if tt.mutate != nil {
				tt.mutate(req)
			}

			rec := env.do(req)
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			if tt.wantCode != http.StatusFound {
				assert.Equal(t, "LINK_NOT_FOUND", decodeError(t, rec).Code)
				assert.Empty(t, env.publisher.all())
				return
			}

			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			records := env.publisher.all()
			require.Len(t, records, 1)
			assert.Equal(t, tt.wantType, records[0].ClickType)
		})
	}
}

func TestRedirect_RecordIsAnonymised(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testLink("abc123"))
	req := browserRequest(http.MethodGet, "/abc123")
	req.Header.Set("CF-Connecting-IP", "198.51.100.77")
	req.Header.Set("CF-IPCountry", "de")

	rec := env.do(req)
	require.Equal(t, http.StatusFound, rec.Code)

	records := env.publisher.all()
	require.Len(t, records, 1)
	assert.Equal(t, "198.51.100.0", records[0].IPAddress)
	assert.Equal(t, "DE", records[0].CountryCode)
	assert.Equal(t, "link-abc123", records[0].LinkID)
	assert.Equal(t, model.ReachedTarget, records[0].TargetReached)
}

func TestSafePages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains []string
	}{
		{"generic", "/safe/abc123", http.StatusOK, []string{"Spring sale", "Everything half price this week."}},
		{"tiktok", "/safe/abc123/tiktok", http.StatusOK, []string{"Thanks for watching", "Spring sale"}},
		{"instagram", "/safe/abc123/instagram", http.StatusOK, []string{"From the post"}},
		{"facebook", "/safe/abc123/facebook", http.StatusOK, []string{"Shared on Facebook"}},
		{"platform without variant", "/safe/abc123/twitter", http.StatusNotFound, nil},
		{"unknown link", "/safe/nope42", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, testLink("abc123"))
			rec := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("X-Robots-Tag"), "noindex")
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
		})
	}
}

func TestSafePage_EscapesLinkText(t *testing.T) {
	t.Parallel()

	link := testLink("xss123")
	link.Title = `<script>alert(1)</script>`
	env := newTestEnv(t, link)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/safe/xss123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestChallengeFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testLink("abc123"))

	page := env.do(httptest.NewRequest(http.MethodGet, "/challenge/abc123", nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "crypto.subtle.digest")
	assert.Contains(t, page.Body.String(), "verify")

	c, err := env.issuer.Issue("abc123", time.Now())
	require.NoError(t, err)

	verify := func(token, proof string) *httptest.ResponseRecorder {
		q := url.Values{"token": {token}, "proof": {proof}}
		return env.do(httptest.NewRequest(http.MethodGet, "/challenge/abc123/verify?"+q.Encode(), nil))
	}

	rec := verify(c.Token, challenge.Solve(c.Nonce))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://target.example/abc123", rec.Header().Get("Location"))

	replay := verify(c.Token, challenge.Solve(c.Nonce))
	require.Equal(t, http.StatusFound, replay.Code)
	assert.Equal(t, testBaseURL+"/safe/abc123", replay.Header().Get("Location"))

	other, err := env.issuer.Issue("abc123", time.Now())
	require.NoError(t, err)
	wrong := verify(other.Token, challenge.Solve("not-the-nonce"))
	assert.Equal(t, testBaseURL+"/safe/abc123", wrong.Header().Get("Location"))

	snap := env.recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.ChallengeVerified["passed"])
	assert.Equal(t, uint64(2), snap.ChallengeVerified["failed"])
}

func TestChallenge_UnknownLink(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/challenge/nope42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinksAPI_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"generated alias", `{"target_url":"https://shop.example/sale"}`, http.StatusCreated, ""},
		{"custom alias and decoy", `{"target_url":"https://shop.example/sale","alias":"spring","safe_url":"https://blog.example/"}`, http.StatusCreated, ""},
		{"alias taken", `{"target_url":"https://shop.example/sale","alias":"abc123"}`, http.StatusConflict, "ALIAS_TAKEN"},
		{"bad target", `{"target_url":"ftp://shop.example/"}`, http.StatusBadRequest, "INVALID_TARGET_URL"},
		{"bad safe url", `{"target_url":"https://shop.example/","safe_url":"javascript:alert(1)"}`, http.StatusBadRequest, "INVALID_SAFE_URL"},
		{"reserved alias", `{"target_url":"https://shop.example/","alias":"challenge"}`, http.StatusBadRequest, "INVALID_ALIAS"},
		{"bad json", `{`, http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, testLink("abc123"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/links", strings.NewReader(tt.body))
			rec := env.do(req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
				return
			}

			var link dto.LinkResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
			assert.Equal(t, testBaseURL+"/"+link.ShortCode, link.ShortURL)
			assert.Equal(t, "https://shop.example/sale", link.TargetURL)
			assert.Equal(t, "shop.example", link.Title)
			assert.True(t, link.UseJSChallenge)
			assert.True(t, link.DirectFromTikTok)
			assert.Equal(t, "active", link.Status)
		})
	}
}

func TestLinksAPI_Lifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testLink("abc123"), testLink("def456"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links/link-abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPatch, "/api/v1/links/link-abc123", strings.NewReader(`{"enabled":false,"title":"Renamed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated dto.LinkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "disabled", updated.Status)
	assert.Equal(t, "Renamed", updated.Title)

	rec = env.do(browserRequest(http.MethodGet, "/abc123"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links?status=disabled", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.LinkListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "abc123", list.Data[0].ShortCode)
	assert.False(t, list.Pagination.HasMore)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/links/link-def456", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links/link-def456", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "LINK_NOT_FOUND", decodeError(t, rec).Code)
}

func TestAnalyticsAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testLink("abc123"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links/abc123/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.LinkAnalytics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "abc123", got.ShortCode)
	assert.Len(t, got.Daily, 30)
	assert.Equal(t, int64(4), got.Summary.TotalClicks)
	assert.Equal(t, int64(3), got.Summary.BotClicks)
	assert.InDelta(t, 0.75, got.Summary.BotRate, 1e-9)
	require.Len(t, got.Platforms, 1)
	assert.Equal(t, "tiktok", got.Platforms[0].Platform)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links/abc123/analytics?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/links/nope42/analytics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var dash model.DashboardStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dash))
	assert.Equal(t, int64(2), dash.TotalLinks)
	assert.Equal(t, int64(10), dash.TotalClicks)
}

func TestClassifyAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body := `{"user_agent":"` + bytespiderUA + `","ip":"203.0.113.9"}`
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, true, got["is_bot"])
	assert.Equal(t, "tiktok", got["platform"])
	assert.Equal(t, true, got["legacy_bot"])
	assert.Contains(t, got, "confidence_score")
	assert.Contains(t, got, "risk_level")

	// Classification alone never emits audit records.
	assert.Empty(t, env.publisher.all())

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testLink("abc123"))
	env.do(browserRequest(http.MethodGet, "/abc123"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `smartlink_visits_classified_total{click_type="human"} 1`)
	assert.Contains(t, body, "smartlink_redirect_cache_misses_total 1")
	assert.Contains(t, body, "smartlink_links_created_total 0")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, rec).Code)
}
