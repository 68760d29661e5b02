package typing

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-typing/internal/clock"
)

// DefaultTimeout is how long a typing entry lives without renewal.
const DefaultTimeout = 5 * time.Second

// Change describes a scope whose visible typing list changed.
type Change struct {
	ChannelID string
	RootID    string
	Scope     ScopeKey
	// UserIDs is parallel to Names.
	UserIDs []string
	Names   []string
	Summary string
}

// Without returns the change as seen by userID: that user's own entry is
// dropped and the summary is re-rendered with f.
// A change whose UserIDs do not line up with Names is returned as is.
func (c Change) Without(userID string, f *Formatter) Change {
	if len(c.UserIDs) != len(c.Names) {
		return c
	}
	out := c
	out.UserIDs = make([]string, 0, len(c.UserIDs))
	out.Names = make([]string, 0, len(c.Names))
	for i, id := range c.UserIDs {
		if id == userID {
			continue
		}
		out.UserIDs = append(out.UserIDs, id)
		out.Names = append(out.Names, c.Names[i])
	}
	if len(out.Names) == len(c.Names) {
		return out
	}
	out.Summary = f.Format(out.Names)
	return out
}

// ChangeFromEntries builds the change for an ordered entry list.
func ChangeFromEntries(channelID, rootID string, entries []Entry, f *Formatter) Change {
	c := Change{
		ChannelID: channelID,
		RootID:    rootID,
		Scope:     EncodeScope(channelID, rootID),
		UserIDs:   make([]string, len(entries)),
		Names:     make([]string, len(entries)),
	}
	for i, e := range entries {
		c.UserIDs[i] = e.UserID
		c.Names[i] = e.DisplayName
	}
	c.Summary = f.Format(c.Names)
	return c
}

// NameResolver looks up a display name for a user id. It returns "" when
// the name is unknown.
type NameResolver interface {
	DisplayName(userID string) string
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(userID string) string

func (f NameResolverFunc) DisplayName(userID string) string { return f(userID) }

type Option func(*Tracker)

// WithTimeout sets the expiry timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithFormatter(f *Formatter) Option {
	return func(t *Tracker) { t.formatter = f }
}

func WithNameResolver(r NameResolver) Option {
	return func(t *Tracker) { t.resolver = r }
}

// WithSelfUserID makes the tracker ignore events from the local user.
func WithSelfUserID(userID string) Option {
	return func(t *Tracker) { t.selfID = userID }
}

type entryKey struct {
	scope  ScopeKey
	userID string
}

type pendingExpiry struct {
	timer clock.Timer
	gen   uint64
}

// Tracker aggregates typing users per scope and expires them after a fixed
// timeout. Mutations are serialised; listeners are called one at a time in
// mutation order and must not call Handle.
type Tracker struct {
	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	formatter *Formatter
	resolver  NameResolver
	selfID    string

	// dispatchMu spans a mutation and its listener calls.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	store     *Store
	timers    map[entryKey]pendingExpiry
	gen       uint64
	listeners []func(Change)
	closed    bool
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		timeout:   DefaultTimeout,
		clock:     clock.Real(),
		logger:    slog.Default(),
		formatter: DefaultFormatter(),
		store:     NewStore(),
		timers:    make(map[entryKey]pendingExpiry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Timeout returns the configured expiry timeout.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// OnChange registers fn to receive every visible change.
func (t *Tracker) OnChange(fn func(Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Handle applies one inbound event. Malformed events are logged and dropped.
func (t *Tracker) Handle(ev Event) {
	if ev == nil {
		t.logger.Warn("[TRACKER] Dropping nil event")
		return
	}

	channelID, rootID := ev.scope()
	userID := ev.user()
	if userID == "" || channelID == "" {
		t.logger.Warn("[TRACKER] Dropping malformed event",
			"event", fmt.Sprintf("%T", ev), "user", userID, "channel", channelID)
		return
	}
	if t.selfID != "" && userID == t.selfID {
		return
	}

	switch e := ev.(type) {
	case StartedTyping:
		t.start(e)
	case StoppedTyping:
		t.stop(userID, channelID, rootID, "stop")
	case PostCreated:
		t.stop(userID, channelID, rootID, "post")
	default:
		t.logger.Warn("[TRACKER] Unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

func (t *Tracker) start(e StartedTyping) {
	name := e.DisplayName
	if name == "" && t.resolver != nil {
		name = t.resolver.DisplayName(e.UserID)
	}

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	scope := EncodeScope(e.ChannelID, e.RootID)
	key := entryKey{scope: scope, userID: e.UserID}

	prev, existed := t.store.Get(scope, e.UserID)
	if name == "" && existed {
		name = prev.DisplayName
	}

	if p, ok := t.timers[key]; ok {
		p.timer.Stop()
	}

	created := t.store.Upsert(scope, Entry{
		UserID:      e.UserID,
		DisplayName: name,
		StartedAt:   t.clock.Now(),
		OccurredAt:  e.OccurredAt,
	})

	t.gen++
	gen := t.gen
	channelID, rootID := e.ChannelID, e.RootID
	t.timers[key] = pendingExpiry{
		timer: t.clock.AfterFunc(t.timeout, func() { t.expire(key, channelID, rootID, gen) }),
		gen:   gen,
	}

	if !created && prev.DisplayName == name {
		t.mu.Unlock()
		return
	}
	change, listeners := t.changeLocked(scope, channelID, rootID)
	t.mu.Unlock()

	if created {
		t.logger.Debug("[TRACKER] Typing started", "user", e.UserID, "channel", channelID, "root", rootID)
	}
	notify(listeners, change)
}

func (t *Tracker) stop(userID, channelID, rootID, reason string) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	scope := EncodeScope(channelID, rootID)
	key := entryKey{scope: scope, userID: userID}

	if p, ok := t.timers[key]; ok {
		p.timer.Stop()
		delete(t.timers, key)
	}
	if !t.store.Remove(scope, userID) {
		t.mu.Unlock()
		return
	}
	change, listeners := t.changeLocked(scope, channelID, rootID)
	t.mu.Unlock()

	t.logger.Debug("[TRACKER] Typing stopped", "user", userID, "channel", channelID, "root", rootID, "reason", reason)
	notify(listeners, change)
}

func (t *Tracker) expire(key entryKey, channelID, rootID string, gen uint64) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	p, ok := t.timers[key]
	if !ok || p.gen != gen {
		// Superseded by a renewal, or already removed by stop/post.
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.store.Remove(key.scope, key.userID)
	change, listeners := t.changeLocked(key.scope, channelID, rootID)
	t.mu.Unlock()

	t.logger.Debug("[TRACKER] Typing expired", "user", key.userID, "channel", channelID, "root", rootID)
	notify(listeners, change)
}

func (t *Tracker) changeLocked(scope ScopeKey, channelID, rootID string) (Change, []func(Change)) {
	change := ChangeFromEntries(channelID, rootID, t.store.Ordered(scope), t.formatter)
	listeners := make([]func(Change), len(t.listeners))
	copy(listeners, t.listeners)
	return change, listeners
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		c := change
		c.Names = append([]string(nil), change.Names...)
		c.UserIDs = append([]string(nil), change.UserIDs...)
		fn(c)
	}
}

// Summary returns the formatted typing line for a channel or thread.
func (t *Tracker) Summary(channelID, rootID string) string {
	return t.formatter.Format(t.DisplayNames(channelID, rootID))
}

// DisplayNames returns the typing users' names, first to start first.
func (t *Tracker) DisplayNames(channelID, rootID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.DisplayNames(EncodeScope(channelID, rootID))
}

// Entries returns a snapshot of the scope's entries, first to start first.
func (t *Tracker) Entries(channelID, rootID string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Ordered(EncodeScope(channelID, rootID))
}

// Reset stops every pending expiry and clears all scopes.
func (t *Tracker) Reset() {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// Close resets the tracker and makes later StartedTyping events no-ops.
func (t *Tracker) Close() {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.closed = true
}

func (t *Tracker) resetLocked() {
	for key, p := range t.timers {
		p.timer.Stop()
		delete(t.timers, key)
	}
	t.store.Reset()
}
