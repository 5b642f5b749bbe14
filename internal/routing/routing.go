// Package routing decides where a classified visit is sent.
package routing

import (
	"strings"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/model"
)

// LinkConfig holds the per-link flags that affect routing.
type LinkConfig struct {
	UseJSChallenge   bool
	DirectFromTikTok bool
	SafeURL          string
}

// ConfigFor extracts the routing flags of a link.
func ConfigFor(link *model.Link) LinkConfig {
	return LinkConfig{
		UseJSChallenge:   link.UseJSChallenge,
		DirectFromTikTok: link.DirectFromTikTok,
		SafeURL:          link.SafeURL,
	}
}

// Input is everything Decide looks at.
type Input struct {
	Verdict    detection.Verdict
	LegacyBot  bool // result of detection.IsLegacyBot
	Suspicious bool // result of detection.IsSuspicious
	Link       LinkConfig
}

// SafeKind says which decoy a bot is shown.
type SafeKind string

const (
	SafeNone     SafeKind = ""
	SafePlatform SafeKind = "platform"
	SafeCustom   SafeKind = "custom"
	SafeGeneric  SafeKind = "generic"
)

// Decision is the routing outcome for one visit.
type Decision struct {
	ClickType   model.ClickType
	Target      model.TargetReached
	Safe        SafeKind
	SafeVariant detection.Platform // set when Safe is SafePlatform
}

// Decide applies the routing table.
//
// Bots (engine or legacy check) get a safe page: the platform variant when
// the platform has one, else the link's custom safe URL, else the generic
// page. Suspicious non-bots get the challenge when the link enables it,
// unless the link lets TikTok traffic straight through. Everyone else
// reaches the target.
func Decide(in Input) Decision {
	if in.Verdict.IsBot || in.LegacyBot {
		d := Decision{ClickType: model.ClickBot, Target: model.ReachedSafe}
		switch {
		case in.Verdict.Platform.HasSafeVariant():
			d.Safe = SafePlatform
			d.SafeVariant = in.Verdict.Platform
		case strings.TrimSpace(in.Link.SafeURL) != "":
			d.Safe = SafeCustom
		default:
			d.Safe = SafeGeneric
		}
		return d
	}

	if in.Suspicious && in.Link.UseJSChallenge {
		if in.Link.DirectFromTikTok && in.Verdict.Platform == detection.PlatformTikTok {
			return Decision{ClickType: model.ClickHuman, Target: model.ReachedTarget}
		}
		return Decision{ClickType: model.ClickSuspect, Target: model.ReachedChallenge}
	}

	return Decision{ClickType: model.ClickHuman, Target: model.ReachedTarget}
}
