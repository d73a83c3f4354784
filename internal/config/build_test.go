package config

import (
	"encoding/json"
	"testing"
)

func TestBuildServicesOrdersByKnownKindRegardlessOfMapOrder(t *testing.T) {
	p := &Profile{
		Services: map[string]ServiceEntry{
			"network":  {Inline: json.RawMessage(`{"kind": "socks-proxy"}`)},
			"env":      {Inline: json.RawMessage(`{"unset_all": true, "keep": ["PATH"]}`)},
			"appimage": {Inline: json.RawMessage(`{}`)},
		},
	}

	services, err := BuildServices(p, nil)
	if err != nil {
		t.Fatalf("BuildServices: %v", err)
	}
	if len(services) != 3 {
		t.Fatalf("expected 3 services, got %d", len(services))
	}
	names := []string{services[0].Name(), services[1].Name(), services[2].Name()}
	want := []string{"env", "appimage", "socks-proxy"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected order: %v", names)
		}
	}
}

func TestBuildServicesRejectsUnknownKind(t *testing.T) {
	p := &Profile{
		Services: map[string]ServiceEntry{
			"carrier-pigeon": {Inline: json.RawMessage(`{}`)},
		},
	}
	if _, err := BuildServices(p, nil); err == nil {
		t.Fatalf("expected error for unknown service kind")
	}
}

func TestBuildServicesRejectsUnknownNetworkKind(t *testing.T) {
	p := &Profile{
		Services: map[string]ServiceEntry{
			"network": {Inline: json.RawMessage(`{"kind": "carrier-pigeon"}`)},
		},
	}
	if _, err := BuildServices(p, nil); err == nil {
		t.Fatalf("expected error for unknown network kind")
	}
}
