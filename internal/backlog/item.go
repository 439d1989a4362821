// Package backlog implements the prioritized work queues.
//
// A Queue pairs a min-heap of work items with a similarity index namespace.
// Both are mutated together under one lock so that every live item always
// has an embedding in the namespace.
package backlog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a work item.
type Status int

const (
	StatusTodo Status = iota
	StatusInProgress
	StatusDone
)

var statusNames = map[Status]string{
	StatusTodo:       "todo",
	StatusInProgress: "in_progress",
	StatusDone:       "done",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts a status name back into a Status.
func ParseStatus(name string) (Status, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	for s, n := range statusNames {
		if n == normalized {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalYAML stores statuses by name.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML accepts the names written by MarshalYAML.
func (s *Status) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WorkItem is one entry of a backlog. Lower Priority is more urgent.
type WorkItem struct {
	ID          string  `yaml:"id"`
	Priority    int     `yaml:"priority"`
	Description string  `yaml:"description"`
	Status      Status  `yaml:"status"`
	Assignee    *string `yaml:"assignee,omitempty"`
}

// ItemID derives the identity of a work item from its description.
// Identical descriptions collide, which is how duplicates are superseded.
func ItemID(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// NewWorkItem creates a Todo item with a content-derived id.
func NewWorkItem(priority int, description string) WorkItem {
	return WorkItem{
		ID:          ItemID(description),
		Priority:    priority,
		Description: description,
		Status:      StatusTodo,
	}
}

// AssigneeName returns the assignee or "" when the item is unassigned.
func (w WorkItem) AssigneeName() string {
	if w.Assignee == nil {
		return ""
	}
	return *w.Assignee
}

func (w WorkItem) clone() WorkItem {
	if w.Assignee != nil {
		name := *w.Assignee
		w.Assignee = &name
	}
	return w
}
