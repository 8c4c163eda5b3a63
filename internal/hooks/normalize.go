package hooks

import "strings"

// Separator splits a shorthand string into individual commands
const Separator = "&&"

// Descriptor is a hook configuration as a caller writes it. The variants are
// nil (no hook), Shorthand, Callback and Declaration.
type Descriptor interface {
	descriptor()
}

// Shorthand is a list of commands joined by "&&", for example
// "npm run lint && npm test". The separator is not quote aware.
type Shorthand string

// Declaration is the structured form of a hook configuration
type Declaration struct {
	Scripts  []Task
	Parallel bool
	Blocking bool
	Once     bool
}

func (Shorthand) descriptor()   {}
func (Callback) descriptor()    {}
func (Declaration) descriptor() {}

// Normalize turns any descriptor into a TaskSet. It never fails: unknown or
// empty shapes produce an empty set.
func Normalize(d Descriptor) TaskSet {
	switch v := d.(type) {
	case nil:
		return TaskSet{}
	case Shorthand:
		return TaskSet{Tasks: splitShorthand(string(v))}
	case Callback:
		if v == nil {
			return TaskSet{}
		}
		return TaskSet{Tasks: []Task{Func(v)}}
	case Declaration:
		return fromDeclaration(v)
	case *Declaration:
		if v == nil {
			return TaskSet{}
		}
		return fromDeclaration(*v)
	default:
		return TaskSet{}
	}
}

func fromDeclaration(d Declaration) TaskSet {
	tasks := make([]Task, 0, len(d.Scripts))
	for _, t := range d.Scripts {
		if usable(t) {
			tasks = append(tasks, t)
		}
	}
	return TaskSet{
		Tasks:    tasks,
		Parallel: d.Parallel,
		Blocking: d.Blocking,
		Once:     d.Once,
	}
}

func usable(t Task) bool {
	switch t.Kind {
	case CallbackTask:
		return t.Func != nil
	case CommandTask:
		if t.Script != nil {
			return t.Script.Command != ""
		}
		return strings.TrimSpace(t.Line) != ""
	default:
		return false
	}
}

func splitShorthand(s string) []Task {
	parts := strings.Split(s, Separator)
	tasks := make([]Task, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tasks = append(tasks, Command(p))
	}
	return tasks
}
