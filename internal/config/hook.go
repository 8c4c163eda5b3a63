package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lightfastai/buildhooks/internal/hooks"
)

// Hook is the configuration of one phase. In YAML it is written as a
// shorthand string, a list of scripts, or a mapping:
//
//	buildEnd: "npm run lint && npm test"
//	afterDone:
//	  - node scripts/copy.js
//	  - command: rsync
//	    args: [-a, dist/, public/]
//	watchRun:
//	  scripts: [node scripts/clean.js]
//	  blocking: true
//	  once: true
type Hook struct {
	// Shorthand is set when the hook was written as a single string.
	Shorthand string

	Scripts  []Script
	Parallel bool
	Blocking bool
	Once     bool
}

type hookFields struct {
	Scripts  []Script `yaml:"scripts,omitempty"`
	Parallel bool     `yaml:"parallel,omitempty"`
	Blocking bool     `yaml:"blocking,omitempty"`
	Once     bool     `yaml:"once,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler
func (h *Hook) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*h = Hook{Shorthand: value.Value}
		return nil
	case yaml.SequenceNode:
		var scripts []Script
		if err := value.Decode(&scripts); err != nil {
			return err
		}
		*h = Hook{Scripts: scripts}
		return nil
	case yaml.MappingNode:
		var f hookFields
		if err := value.Decode(&f); err != nil {
			return err
		}
		*h = Hook{Scripts: f.Scripts, Parallel: f.Parallel, Blocking: f.Blocking, Once: f.Once}
		return nil
	default:
		return fmt.Errorf("line %d: hook must be a string, a list of scripts or a mapping", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler, using the shortest form that keeps
// the hook's meaning
func (h Hook) MarshalYAML() (interface{}, error) {
	switch {
	case h.Shorthand != "":
		return h.Shorthand, nil
	case !h.Parallel && !h.Blocking && !h.Once:
		return h.Scripts, nil
	default:
		return hookFields{Scripts: h.Scripts, Parallel: h.Parallel, Blocking: h.Blocking, Once: h.Once}, nil
	}
}

// Descriptor converts the hook into the engine's descriptor
func (h Hook) Descriptor() hooks.Descriptor {
	if h.Shorthand != "" {
		return hooks.Shorthand(h.Shorthand)
	}
	tasks := make([]hooks.Task, 0, len(h.Scripts))
	for _, s := range h.Scripts {
		tasks = append(tasks, s.Task())
	}
	return hooks.Declaration{
		Scripts:  tasks,
		Parallel: h.Parallel,
		Blocking: h.Blocking,
		Once:     h.Once,
	}
}

// Script is one entry of a hook's script list: a command line, or a
// command with its arguments already split
type Script struct {
	Line    string
	Command string
	Args    []string

	structured bool
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *Script) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = Script{Line: value.Value}
		return nil
	case yaml.MappingNode:
		var hs hooks.Script
		if err := value.Decode(&hs); err != nil {
			return err
		}
		*s = Script{Command: hs.Command, Args: hs.Args, structured: true}
		return nil
	default:
		return fmt.Errorf("line %d: script must be a string or a {command, args} mapping", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler
func (s Script) MarshalYAML() (interface{}, error) {
	if s.structured || s.Command != "" {
		return hooks.Script{Command: s.Command, Args: s.Args}, nil
	}
	return s.Line, nil
}

// Task converts the script into an engine task
func (s Script) Task() hooks.Task {
	if s.structured || s.Command != "" {
		return hooks.Structured(hooks.Script{Command: s.Command, Args: s.Args})
	}
	return hooks.Command(s.Line)
}
