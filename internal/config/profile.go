// Package config parses a bwsandbox profile — a single JSON-with-comments
// document selecting which side-car services run and how they are
// configured — into an ordered list of service.Service instances plus the
// payload command to run inside the sandbox.
//
// Profile document syntax, environment-variable expansion, and
// command-line argument parsing are external collaborators (spec.md §1);
// this package is the minimal concrete implementation a shipped CLI needs.
package config

import (
	"encoding/json"
	"errors"
)

// Profile is the top-level parsed document.
type Profile struct {
	Sandbox  BwrapArgsSpec            `json:"sandbox,omitempty"`
	Command  CommandSpec              `json:"command"`
	Services map[string]ServiceEntry `json:"services,omitempty"`
}

// BwrapArgsSpec is spec.md's command-builder block: the profile's own
// bwrap-level sandbox arguments (binds, unshare flags, and the like).
// These become the "user-supplied arguments" stashed by BwrapProcBuilder
// and flushed exactly once between the apply_before and apply_after
// passes (spec.md §3, §6) — they configure bwrap itself, not the payload
// that later runs inside it. See CommandSpec for the payload side.
//
// Template names a built-in bwrap argument list (see
// sandboxTemplates in template.go); Args, if also present, is appended
// after the template's own arguments.
type BwrapArgsSpec struct {
	Template string   `json:"template,omitempty"`
	Args     []string `json:"args,omitempty"`
}

// CommandSpec describes the payload to run inside the sandbox: either a
// named built-in Template (see template.go) or an explicit Executable plus
// Args. Template is resolved first; Executable, if also present, replaces
// the template's executable, and Args are appended after the template's
// own arguments.
type CommandSpec struct {
	Template   string   `json:"template,omitempty"`
	Executable string   `json:"executable,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// ServiceEntry is either inline JSON content for a service kind, or an
// include path (possibly a doublestar glob matching several fragment
// files, merged in sorted order) resolved relative to the profile's own
// directory. Exactly one of Include or Inline is meaningful after
// unmarshalling: a bare JSON string becomes Include, anything else
// becomes Inline.
type ServiceEntry struct {
	Include string
	Inline  json.RawMessage
}

func (e *ServiceEntry) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		e.Include = asString
		e.Inline = nil
		return nil
	}
	e.Include = ""
	e.Inline = append(json.RawMessage(nil), data...)
	return nil
}

func (e ServiceEntry) MarshalJSON() ([]byte, error) {
	if e.Include != "" {
		return json.Marshal(e.Include)
	}
	if e.Inline != nil {
		return e.Inline, nil
	}
	return nil, errors.New("config: empty service entry")
}
