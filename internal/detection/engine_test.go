package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariMobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	bytespiderUA    = "Mozilla/5.0 (compatible; Bytespider; spider-feedback@bytedance.com)"
	fbInAppUA       = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/20G75 [FBAN/FBIOS;FBDV/iPhone14,2;FBMD/iPhone;FBSN/iOS;FBSV/16.6;FBSS/3;FBID/phone;FBLC/en_US;FBOP/5]"
	igTikTokUA      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148 Instagram 305.0.0.20.108 musical_ly_31.5.0"
)

func browserHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "gzip, deflate, br",
		"Connection":      "keep-alive",
	}
}

func TestClassify_EmptyUserAgentIsBot(t *testing.T) {
	t.Parallel()

	for _, headers := range []map[string]string{nil, browserHeaders()} {
		v := Classify("", "203.0.113.10", "https://example.com/", headers)
		assert.True(t, v.IsBot)
		assert.Contains(t, v.DetectionMethods, MethodUserAgent)
	}
}

func TestClassify_PlatformCrawlerSignature(t *testing.T) {
	t.Parallel()

	v := Classify(bytespiderUA, "", "", nil)

	assert.True(t, v.IsBot)
	assert.Equal(t, PlatformTikTok, v.Platform)
	assert.GreaterOrEqual(t, v.ConfidenceScore, 0.95)
	assert.Equal(t, RiskCritical, v.RiskLevel)
}

func TestClassify_DesktopBrowserIsHuman(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ua       string
		referrer string
	}{
		{"chrome with referrer", chromeDesktopUA, "https://www.google.com/"},
		{"chrome direct", chromeDesktopUA, ""},
		{"safari mobile", safariMobileUA, "https://news.ycombinator.com/"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Classify(tt.ua, "198.51.100.7", tt.referrer, browserHeaders())
			assert.False(t, v.IsBot)
			assert.Zero(t, v.ConfidenceScore)
			assert.Equal(t, RiskLow, v.RiskLevel)
			assert.Empty(t, v.DetectionMethods)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []Visit{
		NewVisit(chromeDesktopUA, "198.51.100.7", "", browserHeaders()),
		NewVisit(fbInAppUA, "31.13.1.1", "https://www.facebook.com/", nil),
		NewVisit("", "not-an-ip", "garbage", map[string]string{"X-Automation": "1"}),
	}

	engine := NewEngine()
	for _, in := range inputs {
		first := engine.Classify(in)
		second := engine.Classify(in)
		assert.Equal(t, first, second)
	}
}

func TestClassify_TikTokOutranksInstagram(t *testing.T) {
	t.Parallel()

	v := Classify(igTikTokUA, "", "https://www.instagram.com/", browserHeaders())

	assert.True(t, v.IsBot)
	assert.Equal(t, PlatformTikTok, v.Platform)
}

func TestClassify_FacebookInAppBrowser(t *testing.T) {
	t.Parallel()

	v := Classify(fbInAppUA, "", "https://www.facebook.com/", browserHeaders())

	assert.True(t, v.IsBot)
	assert.Contains(t, []Platform{PlatformInstagram, PlatformFacebook}, v.Platform)
	assert.Contains(t, v.DetectionMethods, MethodPlatformSpecific)
}

func TestClassify_CurlIsBotThroughEngine(t *testing.T) {
	t.Parallel()

	v := Classify("curl/7.64.1", "", "", nil)

	assert.True(t, v.IsBot)
	assert.GreaterOrEqual(t, v.ConfidenceScore, 0.85)
}

func TestClassify_ConfidenceBounded(t *testing.T) {
	t.Parallel()

	inputs := []Visit{
		NewVisit("", "", "", nil),
		NewVisit("x", "::1", "::::", nil),
		NewVisit(bytespiderUA, "103.216.4.4", "https://www.tiktok.com/@someone", nil),
		NewVisit(fbInAppUA, "31.13.1.1", "https://m.facebook.com/story", map[string]string{"Selenium-Remote-Control": "1", "Connection": "close"}),
		NewVisit("python-requests/2.31 headless selenium", "161.117.9.9", "android-app://com.zhiliaoapp.musically", nil),
		NewVisit("\xff\xfe invalid utf8 \xff", "256.256.256.256", "\x00", nil),
	}

	engine := NewEngine()
	for _, in := range inputs {
		v := engine.Classify(in)
		assert.GreaterOrEqual(t, v.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, v.ConfidenceScore, 1.0)
	}
}

func TestEngine_SkipsPanickingAnalyzer(t *testing.T) {
	t.Parallel()

	engine := NewEngine(WithAnalyzers(
		Analyzer{Name: "boom", Fn: func(*Visit) *Signal { panic("bad input") }},
		Analyzer{Name: "steady", Fn: func(*Visit) *Signal { return &Signal{Confidence: 0.9} }},
	))

	v := engine.Classify(NewVisit("anything", "", "", nil))

	assert.True(t, v.IsBot)
	assert.Equal(t, []string{"steady"}, v.DetectionMethods)
}

func TestEngine_ClampsAnalyzerOutput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(WithAnalyzers(
		Analyzer{Name: "overshoot", Fn: func(*Visit) *Signal { return &Signal{Confidence: 4.2} }},
	))

	v := engine.Classify(Visit{})
	assert.Equal(t, 1.0, v.ConfidenceScore)
}

func TestEngine_DefaultAnalyzerOrder(t *testing.T) {
	t.Parallel()

	want := []string{
		MethodUserAgent,
		MethodIPAnalysis,
		MethodHeaderFingerprint,
		MethodTiming,
		MethodBehavioral,
		MethodPlatformSpecific,
	}
	assert.Equal(t, want, NewEngine().Analyzers())
}

func TestAggregate_NoSignals(t *testing.T) {
	t.Parallel()

	v := Aggregate(nil, "", "")

	assert.False(t, v.IsBot)
	assert.Zero(t, v.ConfidenceScore)
	assert.Equal(t, RiskLow, v.RiskLevel)
	assert.Equal(t, PlatformUnknown, v.Platform)
	require.NotNil(t, v.DetectionMethods)
	assert.Empty(t, v.DetectionMethods)
}

func TestAggregate_BreadthOverride(t *testing.T) {
	t.Parallel()

	signals := []Signal{
		{Method: "a", Confidence: 0.3},
		{Method: "b", Confidence: 0.35},
		{Method: "c", Confidence: 0.4},
		{Method: "d", Confidence: 0.2},
	}

	v := Aggregate(signals, chromeDesktopUA, "")

	assert.True(t, v.IsBot)
	assert.InDelta(t, 0.3125, v.ConfidenceScore, 1e-9)
	assert.Equal(t, RiskCritical, v.RiskLevel)
}

func TestAggregate_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		signals  []Signal
		wantBot  bool
		wantConf float64
		wantRisk RiskLevel
	}{
		{
			name:     "single weak signal",
			signals:  []Signal{{Method: "a", Confidence: 0.4}},
			wantBot:  false,
			wantConf: 0.4,
			wantRisk: RiskLow,
		},
		{
			name:     "mean below dominance",
			signals:  []Signal{{Method: "a", Confidence: 0.6}, {Method: "b", Confidence: 0.5}},
			wantBot:  false,
			wantConf: 0.55,
			wantRisk: RiskMedium,
		},
		{
			name:     "high signal dominates",
			signals:  []Signal{{Method: "a", Confidence: 0.2}, {Method: "b", Confidence: 0.75}},
			wantBot:  false,
			wantConf: 0.75,
			wantRisk: RiskHigh,
		},
		{
			name:     "strong signal crosses threshold",
			signals:  []Signal{{Method: "a", Confidence: 0.85}},
			wantBot:  true,
			wantConf: 0.85,
			wantRisk: RiskHigh,
		},
		{
			name:     "three weak signals",
			signals:  []Signal{{Method: "a", Confidence: 0.4}, {Method: "b", Confidence: 0.4}, {Method: "c", Confidence: 0.4}},
			wantBot:  false,
			wantConf: 0.4,
			wantRisk: RiskHigh,
		},
		{
			name:     "exactly 0.8 is not enough",
			signals:  []Signal{{Method: "a", Confidence: 0.8}},
			wantBot:  false,
			wantConf: 0.8,
			wantRisk: RiskHigh,
		},
		{
			name:     "critical confidence",
			signals:  []Signal{{Method: "a", Confidence: 0.9}},
			wantBot:  true,
			wantConf: 0.9,
			wantRisk: RiskCritical,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Aggregate(tt.signals, "", "")
			assert.Equal(t, tt.wantBot, v.IsBot)
			assert.InDelta(t, tt.wantConf, v.ConfidenceScore, 1e-9)
			assert.Equal(t, tt.wantRisk, v.RiskLevel)
		})
	}
}

func TestAggregate_PlatformResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		signals  []Signal
		ua       string
		referrer string
		want     Platform
	}{
		{
			name:    "priority order",
			signals: []Signal{{Method: "a", Confidence: 0.9, Platform: PlatformGoogle}, {Method: "b", Confidence: 0.9, Platform: PlatformInstagram}, {Method: "c", Confidence: 0.9, Platform: PlatformTikTok}},
			want:    PlatformTikTok,
		},
		{
			name:    "instagram over facebook",
			signals: []Signal{{Method: "a", Confidence: 0.9, Platform: PlatformFacebook}, {Method: "b", Confidence: 0.6, Platform: PlatformInstagram}},
			want:    PlatformInstagram,
		},
		{
			name:     "keyword fallback",
			signals:  []Signal{{Method: "a", Confidence: 0.9}},
			referrer: "https://www.instagram.com/p/abc",
			want:     PlatformInstagram,
		},
		{
			name: "fallback without signals",
			ua:   "Mozilla/5.0 TikTok 32.1",
			want: PlatformTikTok,
		},
		{
			name: "nothing",
			ua:   chromeDesktopUA,
			want: PlatformUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Aggregate(tt.signals, tt.ua, tt.referrer)
			assert.Equal(t, tt.want, v.Platform)
		})
	}
}

func TestAggregate_DistinctMethods(t *testing.T) {
	t.Parallel()

	signals := []Signal{
		{Method: "a", Confidence: 0.1},
		{Method: "a", Confidence: 0.1},
		{Method: "a", Confidence: 0.1},
		{Method: "b", Confidence: 0.1},
	}

	v := Aggregate(signals, "", "")
	assert.False(t, v.IsBot)
	assert.Equal(t, []string{"a", "b"}, v.DetectionMethods)
}
