package syncer

import "fmt"

// EventKind classifies an edit event coming from a search box.
type EventKind uint8

const (
	// EventInput carries the box's full text and caret after a keystroke.
	EventInput EventKind = iota + 1
	// EventCompositionStart opens an input-method composition session.
	EventCompositionStart
	// EventCompositionEnd commits a composition session.
	EventCompositionEnd
)

func (k EventKind) String() string {
	switch k {
	case EventInput:
		return "input"
	case EventCompositionStart:
		return "composition_start"
	case EventCompositionEnd:
		return "composition_end"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is one edit event. Input and Caret are only read for EventInput.
type Event struct {
	Kind  EventKind
	Input string
	Caret int
}

// Phase is the scheduler state of one box.
type Phase uint8

const (
	// PhaseIdle has no pending work.
	PhaseIdle Phase = iota
	// PhaseComposing holds edits made during a composition; nothing is scheduled.
	PhaseComposing
	// PhasePending has a write countdown running.
	PhasePending
	// PhaseWriting has a write cycle in flight.
	PhaseWriting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseComposing:
		return "composing"
	case PhasePending:
		return "pending"
	case PhaseWriting:
		return "writing"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// NotificationKind names a change reported by the document store.
type NotificationKind uint8

const (
	Created NotificationKind = iota + 1
	Modified
	Renamed
	Deleted
	// StructuralResolved reports that a document's metadata was re-parsed.
	StructuralResolved
)

func (k NotificationKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Deleted:
		return "deleted"
	case StructuralResolved:
		return "resolved"
	default:
		return fmt.Sprintf("NotificationKind(%d)", uint8(k))
	}
}

// ParseNotificationKind maps the wire name of a kind back to its value.
func ParseNotificationKind(s string) (NotificationKind, bool) {
	for k := Created; k <= StructuralResolved; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Notification is a document change. OldID is only set for Renamed.
type Notification struct {
	Kind       NotificationKind
	DocumentID string
	OldID      string
}

// structural reports whether the change can alter the set of known tags.
func (n Notification) structural() bool {
	switch n.Kind {
	case Created, Renamed, Deleted, StructuralResolved:
		return true
	}
	return false
}
