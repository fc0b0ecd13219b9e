package types

import (
	"fmt"
	"time"
)

// EventType is the kind of change a watch event reports
type EventType string

const (
	Added    EventType = "ADDED"
	Modified EventType = "MODIFIED"
	Deleted  EventType = "DELETED"
)

// Actionable reports whether an event of this type can trigger the action.
func (t EventType) Actionable() bool {
	return t == Added || t == Modified
}

// UnsetVersion is the version token used when the cluster reported none.
const UnsetVersion = "0"

// Resource is a read-only snapshot of a cluster object as seen in one event
type Resource struct {
	Kind        string            `json:"kind"`
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	UID         string            `json:"uid"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Version     string            `json:"version"`
}

// Annotation returns the value stored under key, or "" when either the
// annotation map or the key is missing.
func (r Resource) Annotation(key string) string {
	if r.Annotations == nil {
		return ""
	}
	return r.Annotations[key]
}

// Key identifies the resource as kind/namespace/name.
func (r Resource) Key() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// Event is a single entry of the watch stream
type Event struct {
	Type     EventType `json:"type"`
	Resource Resource  `json:"resource"`
}

// AnnotationPatch is the only write the controller issues against a resource.
type AnnotationPatch struct {
	Annotations map[string]string `json:"annotations"`
}

// Outcome is the terminal state of a handled event
type Outcome string

const (
	Ineligible Outcome = "ineligible"
	Conflicted Outcome = "conflicted"
	Acted      Outcome = "acted"
	Failed     Outcome = "failed"
)

// Decision records how one event was handled
type Decision struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	UID       string    `json:"uid"`
	EventType EventType `json:"event_type"`
	Version   string    `json:"version"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}
