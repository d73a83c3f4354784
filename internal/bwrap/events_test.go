package bwrap

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadEventSandboxStatus(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"child-pid": 123, "net-namespace": 456}` + "\n"))
	ev, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.sandboxStatus == nil {
		t.Fatalf("expected a sandbox status event")
	}
	if ev.sandboxStatus.ChildPID == nil || *ev.sandboxStatus.ChildPID != 123 {
		t.Fatalf("unexpected child pid: %+v", ev.sandboxStatus)
	}
	if ev.sandboxStatus.NetNamespace == nil || *ev.sandboxStatus.NetNamespace != 456 {
		t.Fatalf("unexpected net namespace: %+v", ev.sandboxStatus)
	}
}

func TestReadEventExitStatus(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"exit-code": 7}` + "\n"))
	ev, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.exitStatus == nil || ev.exitStatus.ExitCode == nil || *ev.exitStatus.ExitCode != 7 {
		t.Fatalf("unexpected exit status: %+v", ev.exitStatus)
	}
}

func TestReadEventNegativeExitCode(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"exit-code": -1}` + "\n"))
	ev, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.exitStatus == nil || *ev.exitStatus.ExitCode != -1 {
		t.Fatalf("unexpected exit status: %+v", ev.exitStatus)
	}
}

func TestReadEventEOF(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	ev, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if !ev.eof {
		t.Fatalf("expected eof event")
	}
}

func TestReadEventMalformedJSON(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`not json` + "\n"))
	_, err := readEvent(r)
	if err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
	if _, ok := err.(*EventError); !ok {
		t.Fatalf("expected *EventError, got %T", err)
	}
}

func TestReadEventUnrecognisedIsSkippedNotFatal(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(`{"some-other-field": true}` + "\n"))
	ev, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent: %v", err)
	}
	if ev.sandboxStatus != nil || ev.exitStatus != nil || ev.eof {
		t.Fatalf("expected a skip event, got %+v", ev)
	}
}

func TestReadEventMultipleLinesSequentially(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(
		`{"child-pid": 1}` + "\n" + `{"exit-code": 0}` + "\n",
	))
	first, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent (1): %v", err)
	}
	if first.sandboxStatus == nil {
		t.Fatalf("expected sandbox status first")
	}
	second, err := readEvent(r)
	if err != nil {
		t.Fatalf("readEvent (2): %v", err)
	}
	if second.exitStatus == nil {
		t.Fatalf("expected exit status second")
	}
}
