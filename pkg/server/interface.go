/*
Package server implements the msgpack IPC between an editor host and the
tagfilter engine.

The host writes a stream of msgpack maps to stdin and reads responses from
stdout. Every request carries an id that is echoed back, and a type:

	{"id": "s1", "type": "suggest", "p": "#proj", "l": 12}
	{"id": "e1", "type": "input", "doc": "notes/a.md", "idx": 0, "text": "#proj", "caret": 5}
	{"id": "e2", "type": "composition_start", "doc": "notes/a.md", "idx": 0}
	{"id": "r1", "type": "restore", "doc": "notes/a.md", "idx": 0}
	{"id": "n1", "type": "notify", "kind": "renamed", "doc": "b.md", "old": "a.md"}
	{"id": "c1", "type": "set_settings", "settings": {"enable_suffix": false}}

A request without a type but with a prefix is treated as a suggest request,
so plain completion clients keep working.

Suggestions come back ranked, with the time taken in microseconds:

	{"id": "s1", "s": [{"w": "project", "r": 1}, {"w": "projecta", "r": 2}], "c": 2, "t": 38}

Edit events are answered right away with the block's scheduler phase; the
document write happens later. When a background write fails the server
pushes an unsolicited notice:

	{"type": "notice", "doc": "notes/a.md", "idx": 0, "e": "write notes/a.md: permission denied"}

Errors carry an HTTP-like code:

	{"id": "x1", "e": "unknown request type: frobnicate", "c": 400}
*/
package server

// Request types.
const (
	TypeSuggest          = "suggest"
	TypeInput            = "input"
	TypeCompositionStart = "composition_start"
	TypeCompositionEnd   = "composition_end"
	TypeRestore          = "restore"
	TypeNotify           = "notify"
	TypeGetSettings      = "get_settings"
	TypeSetSettings      = "set_settings"
	TypeHealth           = "health"
	TypeClose            = "close"
)

// Request is the envelope of every message a host sends.
type Request struct {
	ID       string          `msgpack:"id"`
	Type     string          `msgpack:"type,omitempty"`
	Prefix   string          `msgpack:"p,omitempty"`
	Limit    int             `msgpack:"l,omitempty"`
	Doc      string          `msgpack:"doc,omitempty"`
	Index    int             `msgpack:"idx,omitempty"`
	Text     string          `msgpack:"text,omitempty"`
	Caret    int             `msgpack:"caret,omitempty"`
	Kind     string          `msgpack:"kind,omitempty"`
	Old      string          `msgpack:"old,omitempty"`
	Settings *SettingsUpdate `msgpack:"settings,omitempty"`
}

// SettingsUpdate changes only the fields that are set.
type SettingsUpdate struct {
	EnablePrefix    *bool `msgpack:"enable_prefix,omitempty"`
	EnableSuffix    *bool `msgpack:"enable_suffix,omitempty"`
	EnableSubstring *bool `msgpack:"enable_substring,omitempty"`
	DebounceMs      *int  `msgpack:"debounce_ms,omitempty"`
}

// Settings is the full settings object exposed to hosts.
type Settings struct {
	EnablePrefix    bool `msgpack:"enable_prefix"`
	EnableSuffix    bool `msgpack:"enable_suffix"`
	EnableSubstring bool `msgpack:"enable_substring"`
	DebounceMs      int  `msgpack:"debounce_ms"`
}

// Suggestion - one ranked tag
type Suggestion struct {
	Word string `msgpack:"w"`
	Rank uint16 `msgpack:"r"`
}

// SuggestResponse - suggest response
type SuggestResponse struct {
	ID          string       `msgpack:"id"`
	Suggestions []Suggestion `msgpack:"s"`
	Count       int          `msgpack:"c"`
	TimeTaken   int64        `msgpack:"t"`
}

// RestoreResponse returns the state a search box should show.
type RestoreResponse struct {
	ID    string `msgpack:"id"`
	Text  string `msgpack:"text"`
	Caret int    `msgpack:"caret"`
}

// StatusResponse acknowledges a request. Phase is set for edit events.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Phase  string `msgpack:"phase,omitempty"`
	Tags   int    `msgpack:"tags,omitempty"`
}

// SettingsResponse carries the active settings.
type SettingsResponse struct {
	ID       string   `msgpack:"id"`
	Settings Settings `msgpack:"settings"`
}

// ErrorResponse holds basic error information for a failed request
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// NoticeResponse reports a background write failure. It is not tied to a
// request and never blocks input.
type NoticeResponse struct {
	Type  string `msgpack:"type"`
	Doc   string `msgpack:"doc"`
	Index int    `msgpack:"idx"`
	Error string `msgpack:"e"`
}
