package panel

import (
	"time"

	"github.com/Arceliar/phony"
	"github.com/google/uuid"
)

// NotificationKind is the severity of a notification.
type NotificationKind string

const (
	KindInfo  NotificationKind = "info"
	KindError NotificationKind = "error"
)

// Notification is a message shown to the user after an action.
type Notification struct {
	ID      string           `json:"id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	Time    time.Time        `json:"time"`
}

func (p *Panel) notify(kind NotificationKind, msg string) {
	phony.Block(p, func() {
		p._notify(kind, msg)
	})
}

func (p *Panel) _notify(kind NotificationKind, msg string) {
	p._notes = append(p._notes, Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: msg,
		Time:    time.Now(),
	})
	if over := len(p._notes) - p.maxNotes; over > 0 {
		p._notes = append(p._notes[:0:0], p._notes[over:]...)
	}
	p._generation++
	switch kind {
	case KindError:
		p.log.Warnln(msg)
	default:
		p.log.Infoln(msg)
	}
}

// Dismiss removes a notification. It reports whether the ID was found.
func (p *Panel) Dismiss(id string) bool {
	var found bool
	phony.Block(p, func() {
		for i, n := range p._notes {
			if n.ID == id {
				p._notes = append(p._notes[:i:i], p._notes[i+1:]...)
				p._generation++
				found = true
				return
			}
		}
	})
	return found
}
