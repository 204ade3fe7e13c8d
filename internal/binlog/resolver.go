package binlog

import (
	"log/slog"
	"strings"
)

type targetKey struct {
	project int
	target  int
}

type taskKey struct {
	project int
	target  int
	task    int
}

// Qualifier is the best-known names for an event's context. Levels counts
// how many of project, target and task resolved, top-down.
type Qualifier struct {
	Project string
	Target  string
	Task    string
	Levels  int
}

// Prefix renders the qualifier as "Project: P, Target: T, Task: K - ".
// Returns "" when the project is unknown.
func (q Qualifier) Prefix() string {
	if q.Levels == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Project: ")
	b.WriteString(q.Project)
	if q.Levels > 1 {
		b.WriteString(", Target: ")
		b.WriteString(q.Target)
		if q.Levels > 2 {
			b.WriteString(", Task: ")
			b.WriteString(q.Task)
		}
	}
	b.WriteString(" - ")
	return b.String()
}

// Resolver maps context identifiers to names. It only grows during a pass;
// a single Resolver belongs to one projection run.
type Resolver struct {
	projects map[int]string
	targets  map[targetKey]string
	tasks    map[taskKey]string
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.Reset()
	return r
}

// Reset forgets every registered name.
func (r *Resolver) Reset() {
	r.projects = make(map[int]string)
	r.targets = make(map[targetKey]string)
	r.tasks = make(map[taskKey]string)
}

// Observe registers names carried by *Started events. Other kinds and
// events without a context are ignored. A target or task whose parent was
// never started is not registered.
func (r *Resolver) Observe(ev Event) {
	c := ev.Context
	if c == nil {
		return
	}

	switch ev.Kind {
	case KindProjectStarted, KindProjectEvaluationStarted:
		r.projects[c.ProjectContextID] = ev.ProjectFile

	case KindTargetStarted:
		if _, ok := r.projects[c.ProjectContextID]; !ok {
			slog.Debug("binlog.orphan_target", "project", c.ProjectContextID, "target", ev.TargetName)
			return
		}
		r.targets[targetKey{c.ProjectContextID, c.TargetID}] = ev.TargetName

	case KindTaskStarted:
		if _, ok := r.targets[targetKey{c.ProjectContextID, c.TargetID}]; !ok {
			slog.Debug("binlog.orphan_task", "project", c.ProjectContextID, "target", c.TargetID, "task", ev.TaskName)
			return
		}
		r.tasks[taskKey{c.ProjectContextID, c.TargetID, c.TaskID}] = ev.TaskName
	}
}

// Resolve looks up the names for c. A missing level hides every level
// below it; a miss is never an error.
func (r *Resolver) Resolve(c *Context) Qualifier {
	var q Qualifier
	if c == nil {
		return q
	}

	project, ok := r.projects[c.ProjectContextID]
	if !ok {
		return q
	}
	q.Project = project
	q.Levels = 1

	target, ok := r.targets[targetKey{c.ProjectContextID, c.TargetID}]
	if !ok {
		return q
	}
	q.Target = target
	q.Levels = 2

	if task, ok := r.tasks[taskKey{c.ProjectContextID, c.TargetID, c.TaskID}]; ok {
		q.Task = task
		q.Levels = 3
	}
	return q
}
