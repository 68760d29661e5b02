package typing

import "time"

// Event is one decoded realtime notification the Tracker understands.
// It is implemented by StartedTyping, StoppedTyping and PostCreated.
type Event interface {
	scope() (channelID, rootID string)
	user() string
}

// StartedTyping reports that a user is composing in a channel or thread.
type StartedTyping struct {
	UserID      string
	DisplayName string
	ChannelID   string
	RootID      string
	OccurredAt  time.Time
}

// StoppedTyping is an explicit stop signal.
type StoppedTyping struct {
	UserID    string
	ChannelID string
	RootID    string
}

// Post is the subset of a created post the tracker needs.
type Post struct {
	ID        string
	UserID    string
	ChannelID string
	RootID    string
}

// PostCreated reports that a post landed; its author is no longer typing.
type PostCreated struct {
	Post Post
}

func (e StartedTyping) scope() (string, string) { return e.ChannelID, e.RootID }
func (e StartedTyping) user() string            { return e.UserID }

func (e StoppedTyping) scope() (string, string) { return e.ChannelID, e.RootID }
func (e StoppedTyping) user() string            { return e.UserID }

func (e PostCreated) scope() (string, string) { return e.Post.ChannelID, e.Post.RootID }
func (e PostCreated) user() string            { return e.Post.UserID }
