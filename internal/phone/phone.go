// Package phone centralizes phone-number normalization. Chat identifiers
// arrive in several shapes ("5585992403672@s.whatsapp.net", "+55 85 9240-3672",
// "5585992403672:3@s.whatsapp.net") and every comparison in the codebase goes
// through Canonical so the same contact never splits into two conversations.
package phone

import "strings"

// Suffixes used by the messaging service for individual chats.
const (
	userServer   = "s.whatsapp.net"
	legacyServer = "c.us"
)

// Canonical reduces any phone-number-like identifier to its numeric core:
// server suffix removed, device suffix (":N") removed, every non-digit
// character dropped. Returns "" when no digits remain.
func Canonical(s string) string {
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}
	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		s = s[:colon]
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Matches reports whether two identifiers have the same numeric core.
// Empty cores never match anything, including each other.
func Matches(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	return ca != "" && ca == cb
}

// ChatID builds the messaging-service chat identifier for a phone number.
// Returns "" if the input has no digits.
func ChatID(number string) string {
	core := Canonical(number)
	if core == "" {
		return ""
	}
	return core + "@" + userServer
}

// IsGroup reports whether a chat identifier refers to a group rather than a
// single contact. Group chats are not tracked as conversations.
func IsGroup(chatID string) bool {
	return strings.HasSuffix(chatID, "@g.us")
}
