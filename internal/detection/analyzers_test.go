package detection

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		set  PatternSet
		want bool
	}{
		{"keyword any case", "Wget/1.21", GenericBotKeywords, true},
		{"keyword absent", chromeDesktopUA, GenericBotKeywords, false},
		{"tiktok crawler regex", "TikTok-Web-Crawler/1.0", TikTokBotSignatures, true},
		{"fb marker upper case", "Mozilla/5.0 [FBAN/FBIOS;FBAV/400.0]", MetaSignatures, true},
		{"fb marker lower case ignored", "mozilla/5.0 [fban/fbios]", MetaSignatures, false},
		{"instagram version", "Instagram 305.0.0.20.108", MetaSignatures, true},
		{"instagram word only", "I like instagram", MetaSignatures, false},
		{"tiktok referrer", "https://www.TikTok.com/@user", TikTokReferrers, true},
		{"empty text", "", GenericBotKeywords, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, MatchesAny(tt.text, tt.set))
		})
	}
}

func TestSignature_Match(t *testing.T) {
	t.Parallel()

	assert.True(t, sig(`bytespider`, PlatformTikTok).Match("Bytespider"))
	assert.False(t, sigCS(`FBAV/`, PlatformFacebook).Match("fbav/1"))
	assert.True(t, sigCS(`FBAV/`, PlatformFacebook).Match("FBAV/1"))
}

func TestIPInAnyRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		set  CIDRSet
		want bool
	}{
		{"103.216.1.1", TikTokRanges, true},
		{"49.51.200.3", TikTokRanges, true},
		{"::ffff:161.117.0.9", TikTokRanges, true},
		{"103.217.1.1", TikTokRanges, false},
		{"not-an-ip", TikTokRanges, false},
		{"", TikTokRanges, false},
		{"2001:db8::1", TikTokRanges, false},
		{"103.216.1.1", nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()

			if got := IPInAnyRange(tt.ip, tt.set); got != tt.want {
				t.Errorf("IPInAnyRange(%q) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestAnalyzeUserAgent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		ua           string
		wantNil      bool
		wantConf     float64
		wantPlatform Platform
	}{
		{name: "missing", ua: "", wantConf: 0.9},
		{name: "whitespace", ua: "   ", wantConf: 0.9},
		{name: "automation keyword", ua: "python-requests/2.31.0", wantConf: 0.85},
		{name: "short unknown client", ua: "Foo/1.0", wantConf: 0.7},
		{name: "no browser name", ua: "Mozilla/5.0 (X11; Linux x86_64) SomethingCustom/3.0 (compatible)", wantConf: 0.6},
		{name: "googlebot", ua: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", wantConf: 0.95, wantPlatform: PlatformGoogle},
		{name: "twitterbot", ua: "Twitterbot/1.0", wantConf: 0.95, wantPlatform: PlatformTwitter},
		{name: "facebookexternalhit", ua: "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)", wantConf: 0.95, wantPlatform: PlatformFacebook},
		{name: "instagram app", ua: igTikTokUA, wantConf: 0.95, wantPlatform: PlatformInstagram},
		{name: "browser", ua: chromeDesktopUA, wantNil: true},
		{name: "headless browser", ua: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/120.0.0.0 Safari/537.36", wantConf: 0.45},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := analyzeUserAgent(&Visit{UserAgent: tt.ua})
			if tt.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.InDelta(t, tt.wantConf, s.Confidence, 1e-9)
			assert.Equal(t, tt.wantPlatform, s.Platform)
		})
	}
}

func TestAnalyzeIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		want Platform
	}{
		{"103.216.10.10", PlatformTikTok},
		{"31.13.64.1", PlatformFacebook},
		{"66.249.66.1", PlatformGoogle},
		{"199.16.157.4", PlatformTwitter},
	}
	for _, tt := range tests {
		s := analyzeIP(&Visit{IP: tt.ip})
		require.NotNil(t, s, tt.ip)
		assert.Equal(t, tt.want, s.Platform)
		assert.Equal(t, 0.9, s.Confidence)
	}

	assert.Nil(t, analyzeIP(&Visit{IP: "8.8.8.8"}))
	assert.Nil(t, analyzeIP(&Visit{IP: "garbage"}))
	assert.Nil(t, analyzeIP(&Visit{}))
}

func TestAnalyzeHeaders(t *testing.T) {
	t.Parallel()

	full := browserHeaders()

	t.Run("complete browser set", func(t *testing.T) {
		v := NewVisit(chromeDesktopUA, "", "", full)
		assert.Nil(t, analyzeHeaders(&v))
	})

	t.Run("no headers", func(t *testing.T) {
		v := NewVisit(chromeDesktopUA, "", "", nil)
		s := analyzeHeaders(&v)
		require.NotNil(t, s)
		assert.InDelta(t, 0.8, s.Confidence, 1e-9)
	})

	t.Run("automation headers count once", func(t *testing.T) {
		h := browserHeaders()
		h["X-Requested-With"] = "XMLHttpRequest"
		h["X-Automation"] = "true"
		v := NewVisit(chromeDesktopUA, "", "", h)
		s := analyzeHeaders(&v)
		require.NotNil(t, s)
		assert.InDelta(t, 0.3, s.Confidence, 1e-9)
		assert.Contains(t, s.Reason, "automation_header")
	})

	t.Run("wildcard accept and close", func(t *testing.T) {
		h := browserHeaders()
		h["Accept"] = "*/*"
		h["Connection"] = "Close"
		v := NewVisit(chromeDesktopUA, "", "", h)
		s := analyzeHeaders(&v)
		require.NotNil(t, s)
		assert.InDelta(t, 0.35, s.Confidence, 1e-9)
	})

	t.Run("clamped", func(t *testing.T) {
		v := NewVisit("", "", "", map[string]string{"Connection": "close", "Selenium-Remote-Control": "on"})
		s := analyzeHeaders(&v)
		require.NotNil(t, s)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	})
}

func TestAnalyzeBehavior(t *testing.T) {
	t.Parallel()

	assert.Nil(t, analyzeBehavior(&Visit{}), "missing referrer alone stays below the emit threshold")
	assert.Nil(t, analyzeBehavior(&Visit{Referrer: "https://t.co/abc"}))

	s := analyzeBehavior(&Visit{Referrer: "android-app://com.google.android.gm/"})
	require.NotNil(t, s)
	assert.InDelta(t, 0.2, s.Confidence, 1e-9)

	s = analyzeBehavior(&Visit{Referrer: "not a url"})
	require.NotNil(t, s)
	assert.Equal(t, "malformed_referrer", s.Reason)
}

func TestAnalyzePlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		visit    Visit
		wantNil  bool
		want     Platform
		wantConf float64
	}{
		{
			name:     "tiktok in-app browser",
			visit:    Visit{UserAgent: "Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36 Chrome/116.0 Mobile Safari/537.36 trill_310003 BytedanceWebview/d8a21c6"},
			want:     PlatformTikTok,
			wantConf: 0.9,
		},
		{
			name:     "tiktok referrer only",
			visit:    Visit{UserAgent: chromeDesktopUA, Referrer: "https://www.tiktok.com/@shop"},
			want:     PlatformTikTok,
			wantConf: 0.6,
		},
		{
			name:     "tiktok ip only",
			visit:    Visit{UserAgent: chromeDesktopUA, IP: "161.117.4.4"},
			want:     PlatformTikTok,
			wantConf: 0.9,
		},
		{
			name:     "instagram referrer",
			visit:    Visit{UserAgent: chromeDesktopUA, Referrer: "https://l.instagram.com/?u=x"},
			want:     PlatformInstagram,
			wantConf: 0.6,
		},
		{
			name:     "facebook mobile referrer matches twice",
			visit:    Visit{UserAgent: chromeDesktopUA, Referrer: "https://m.facebook.com/"},
			want:     PlatformFacebook,
			wantConf: 0.9,
		},
		{
			name:    "no user agent",
			visit:   Visit{Referrer: "https://www.tiktok.com/"},
			wantNil: true,
		},
		{
			name:    "nothing",
			visit:   Visit{UserAgent: chromeDesktopUA, Referrer: "https://example.org/"},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := analyzePlatform(&tt.visit)
			if tt.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.Equal(t, tt.want, s.Platform)
			assert.InDelta(t, tt.wantConf, s.Confidence, 1e-9)
		})
	}
}

func TestAnalyzeTiming_NeverEmits(t *testing.T) {
	t.Parallel()

	assert.Nil(t, analyzeTiming(&Visit{UserAgent: "curl/8.0"}))
}

func TestVisitFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/abc123", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("User-Agent", chromeDesktopUA)
	r.Header.Set("Referer", "https://www.tiktok.com/")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.Header.Add("Accept-Language", "en")
	r.Header.Add("Accept-Language", "de")

	v := VisitFromRequest(r)

	assert.Equal(t, chromeDesktopUA, v.UserAgent)
	assert.Equal(t, "https://www.tiktok.com/", v.Referrer)
	assert.Equal(t, "203.0.113.9", v.IP)
	lang, ok := v.Header("ACCEPT-LANGUAGE")
	assert.True(t, ok)
	assert.Equal(t, "en, de", lang)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Forwarded-For": "203.0.113.1"}, "10.0.0.1:1", "198.51.100.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": " 203.0.113.1 , 10.0.0.2"}, "10.0.0.1:1", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.5"}, "10.0.0.1:1", "203.0.113.5"},
		{"remote addr", nil, "192.0.2.1:4444", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
