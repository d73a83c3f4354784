package appimage

import "testing"

type fakeCmd struct{ args []string }

func (f *fakeCmd) AppendArg(args ...string) { f.args = append(f.args, args...) }

func TestApplyBeforeSetsEnv(t *testing.T) {
	s := New()
	cmd := &fakeCmd{}
	if _, err := s.ApplyBefore(cmd); err != nil {
		t.Fatalf("ApplyBefore: %v", err)
	}
	want := []string{"--setenv", "APPIMAGE_EXTRACT_AND_RUN", "1", "--setenv", "APPIMAGE", "1"}
	if len(cmd.args) != len(want) {
		t.Fatalf("got %v, want %v", cmd.args, want)
	}
	for i := range want {
		if cmd.args[i] != want[i] {
			t.Fatalf("got %v, want %v", cmd.args, want)
		}
	}
}
