package config

import (
	"encoding/json"
	"testing"
)

func TestServiceEntryUnmarshalInclude(t *testing.T) {
	var e ServiceEntry
	if err := json.Unmarshal([]byte(`"fragments/*.jsonc"`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Include != "fragments/*.jsonc" {
		t.Fatalf("expected include path, got %+v", e)
	}
	if e.Inline != nil {
		t.Fatalf("expected nil inline, got %s", e.Inline)
	}
}

func TestServiceEntryUnmarshalInline(t *testing.T) {
	var e ServiceEntry
	if err := json.Unmarshal([]byte(`{"unset_all": true}`), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.Include != "" {
		t.Fatalf("expected empty include, got %q", e.Include)
	}
	if string(e.Inline) != `{"unset_all": true}` {
		t.Fatalf("unexpected inline content: %s", e.Inline)
	}
}

func TestProfileUnmarshalServicesMap(t *testing.T) {
	doc := `{
		"command": {"executable": "/bin/echo", "args": ["hi"]},
		"services": {
			"env": {"unset_all": true, "keep": ["PATH"]},
			"network": "network.jsonc"
		}
	}`
	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Command.Executable != "/bin/echo" {
		t.Fatalf("unexpected command: %+v", p.Command)
	}
	if p.Services["network"].Include != "network.jsonc" {
		t.Fatalf("expected network include path, got %+v", p.Services["network"])
	}
	if p.Services["env"].Inline == nil {
		t.Fatalf("expected env inline content")
	}
}

func TestProfileUnmarshalSandboxBlock(t *testing.T) {
	doc := `{
		"sandbox": {"template": "minimal", "args": ["--setenv", "FOO", "bar"]},
		"command": {"executable": "/bin/true"}
	}`
	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Sandbox.Template != "minimal" {
		t.Fatalf("unexpected sandbox template: %+v", p.Sandbox)
	}
	if len(p.Sandbox.Args) != 3 || p.Sandbox.Args[0] != "--setenv" {
		t.Fatalf("unexpected sandbox args: %+v", p.Sandbox)
	}
}

func TestProfileUnmarshalOmitsSandboxByDefault(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"command": {"executable": "/bin/true"}}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Sandbox.Template != "" || len(p.Sandbox.Args) != 0 {
		t.Fatalf("expected zero-value sandbox block, got %+v", p.Sandbox)
	}
}
