//go:build linux

package netns

import "testing"

func TestNewDefaultsTapName(t *testing.T) {
	s := New(Config{})
	if s.cfg.TapName != "tap0" {
		t.Fatalf("expected default tap name tap0, got %q", s.cfg.TapName)
	}
}

func TestNewPreservesExplicitTapName(t *testing.T) {
	s := New(Config{TapName: "tap9"})
	if s.cfg.TapName != "tap9" {
		t.Fatalf("expected tap9, got %q", s.cfg.TapName)
	}
}

func TestNsenterEnvEncodesFdAndTarget(t *testing.T) {
	env, err := nsenterEnv(7, []string{"slirp4netns", "--ready-fd", "5"})
	if err != nil {
		t.Fatalf("nsenterEnv: %v", err)
	}
	if len(env) != 2 {
		t.Fatalf("expected 2 env entries, got %v", env)
	}
	if env[0] != "_BWSANDBOX_NETNS_FD=7" {
		t.Fatalf("unexpected fd env entry: %q", env[0])
	}
	want := "_BWSANDBOX_NETNS_EXEC=slirp4netns\x1f--ready-fd\x1f5"
	if env[1] != want {
		t.Fatalf("unexpected exec env entry: got %q, want %q", env[1], want)
	}
}

func TestNsenterEnvRejectsEmptyTarget(t *testing.T) {
	if _, err := nsenterEnv(7, nil); err == nil {
		t.Fatalf("expected error for empty target")
	}
}

func TestNsenterEnvRejectsSeparatorInArg(t *testing.T) {
	if _, err := nsenterEnv(7, []string{"slirp4netns", "bad\x1farg"}); err == nil {
		t.Fatalf("expected error for argument containing the reserved separator")
	}
}
