// Package binlog turns a flat build-event stream into context-qualified text
// lines. Events only carry numeric project/target/task identifiers; the
// Resolver rebuilds their names from the *Started events seen so far.
package binlog

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the event variant.
type Kind int

const (
	KindOther Kind = iota
	KindProjectStarted
	KindProjectEvaluationStarted
	KindTargetStarted
	KindTaskStarted
	KindWarning
	KindError
	KindMessage
)

var kindNames = map[Kind]string{
	KindOther:                    "Other",
	KindProjectStarted:           "ProjectStarted",
	KindProjectEvaluationStarted: "ProjectEvaluationStarted",
	KindTargetStarted:            "TargetStarted",
	KindTaskStarted:              "TaskStarted",
	KindWarning:                  "Warning",
	KindError:                    "Error",
	KindMessage:                  "Message",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a decoder type name to a Kind. Unknown names are KindOther.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindOther
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("event type: %w", err)
	}
	*k = ParseKind(s)
	return nil
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Context links an event to its project, target and task.
type Context struct {
	ProjectContextID int `json:"projectContextId"`
	TargetID         int `json:"targetId"`
	TaskID           int `json:"taskId"`
}

// Event is one decoded build event. Fields that do not apply to the
// variant are left zero.
type Event struct {
	Kind    Kind     `json:"type"`
	Context *Context `json:"context,omitempty"`
	Message string   `json:"message,omitempty"`

	// Warning, Error and Message
	File        string `json:"file,omitempty"`
	Line        int    `json:"lineNumber,omitempty"`
	Column      int    `json:"columnNumber,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Code        string `json:"code,omitempty"`

	// *Started
	ProjectFile string `json:"projectFile,omitempty"`
	TargetName  string `json:"targetName,omitempty"`
	TaskName    string `json:"taskName,omitempty"`
}
