// Package i18n renders the client's localized status copy.
package i18n

import (
	"strings"

	"github.com/louisbranch/phototropic/internal/platform/i18n/catalog"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supportedTags = func() []language.Tag {
	locales := catalog.Default().Locales()
	tags := make([]language.Tag, 0, len(locales))
	tags = append(tags, language.MustParse(catalog.BaseLocale))
	for _, locale := range locales {
		if locale != catalog.BaseLocale {
			tags = append(tags, language.MustParse(locale))
		}
	}
	return tags
}()

var tagMatcher = language.NewMatcher(supportedTags)

var reasonKeys = map[protocol.Reason]string{
	protocol.ReasonOutOfBounds:      "reasons.out_of_bounds",
	protocol.ReasonCellOccupied:     "reasons.cell_occupied",
	protocol.ReasonNotYourTurn:      "reasons.not_your_turn",
	protocol.ReasonSessionNotActive: "reasons.session_not_active",
	protocol.ReasonGameNotFinished:  "reasons.game_not_finished",
}

// Supported returns the locales with a catalog, base locale first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supportedTags...)
}

// ResolveTag picks the closest supported tag for locale, which may be a
// single tag or an Accept-Language style list. Unknown input resolves to the
// base locale.
func ResolveTag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return supportedTags[0]
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return supportedTags[0]
	}
	_, index, conf := tagMatcher.Match(tags...)
	if conf == language.No {
		return supportedTags[0]
	}
	return supportedTags[index]
}

// Printer formats status copy for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a printer for the closest supported match of locale.
func NewPrinter(locale string) Printer {
	tag := ResolveTag(locale)
	return Printer{tag: tag, p: message.NewPrinter(tag)}
}

// Tag returns the resolved language.
func (p Printer) Tag() language.Tag { return p.tag }

// RoleName is the localized color name of role.
func (p Printer) RoleName(role match.Role) string {
	if role == match.RoleSecond {
		return p.p.Sprintf("roles.green")
	}
	return p.p.Sprintf("roles.purple")
}

// Reason explains a rejection.
func (p Printer) Reason(reason protocol.Reason) string {
	key, ok := reasonKeys[reason]
	if !ok {
		key = "reasons.unknown"
	}
	return p.p.Sprintf(key)
}

// Status is the one-line summary shown under the board.
func (p Printer) Status(v mirror.View) string {
	if !v.HasRole {
		return p.p.Sprintf("status.connecting")
	}
	parts := []string{p.p.Sprintf("status.you_are", p.RoleName(v.Role))}
	switch v.Phase {
	case match.PhaseWaiting:
		parts = append(parts, p.p.Sprintf("status.waiting"))
	case match.PhaseFinished:
		switch {
		case !v.HasWinner:
			parts = append(parts, p.p.Sprintf("status.stalemate"))
		case v.Won():
			parts = append(parts, p.p.Sprintf("status.you_win"))
		default:
			parts = append(parts, p.p.Sprintf("status.you_lose"))
		}
	case match.PhaseActive:
		if v.MyTurn {
			parts = append(parts, p.p.Sprintf("status.your_move"))
		} else {
			parts = append(parts, p.p.Sprintf("status.their_move"))
		}
	}
	return strings.Join(parts, " ")
}

// Hints returns secondary lines: the last rejection, the restart prompt and
// the key bindings while a game can still be played.
func (p Printer) Hints(v mirror.View) []string {
	var lines []string
	if v.HasRejection {
		lines = append(lines, p.p.Sprintf("status.rejected", p.Reason(v.Rejection)))
	}
	if v.Phase == match.PhaseFinished {
		lines = append(lines, p.p.Sprintf("status.restart_hint"))
	} else {
		lines = append(lines, p.p.Sprintf("controls.move"))
	}
	lines = append(lines, p.p.Sprintf("status.segments", len(v.Segments)), p.p.Sprintf("controls.quit"))
	return lines
}
