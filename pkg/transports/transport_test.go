package transports

import "testing"

func TestNormalizeCallEndReason(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"ringing":     "",
		"in-progress": "",
		"completed":   EndCompleted,
		"Busy":        EndBusy,
		"no-answer":   EndNoAnswer,
		"canceled":    EndFailed,
		"weird":       EndUnknown,
	}
	for in, want := range cases {
		if got := NormalizeCallEndReason(in); got != want {
			t.Fatalf("NormalizeCallEndReason(%q)=%q want %q", in, got, want)
		}
	}
}

func TestConnected(t *testing.T) {
	if !Connected(EndCompleted) || Connected(EndBusy) || Connected(EndNoAnswer) {
		t.Fatalf("unexpected connected mapping")
	}
}
