package typing

import (
	"strconv"
	"strings"
)

// ScopeKey identifies a channel, or one thread inside a channel.
type ScopeKey string

// EncodeScope derives the key for (channelID, rootID). An empty rootID is
// channel-level typing. The channel id is length-prefixed so no two pairs
// share a key, whatever characters the ids contain.
func EncodeScope(channelID, rootID string) ScopeKey {
	var b strings.Builder
	b.Grow(len(channelID) + len(rootID) + 8)
	b.WriteString(strconv.Itoa(len(channelID)))
	b.WriteByte(':')
	b.WriteString(channelID)
	b.WriteByte('/')
	b.WriteString(rootID)
	return ScopeKey(b.String())
}
