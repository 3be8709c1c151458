package errorsx

import (
	"fmt"
	"net/http"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTTSSynthesize)
	if Reason(err) != ReasonTTSSynthesize {
		t.Fatalf("expected reason %s, got %s", ReasonTTSSynthesize, Reason(err))
	}
	if !HasReason(err, ReasonTTSSynthesize) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonSheetUpdate)
	second := Wrap(fmt.Errorf("bulk row: %w", first), ReasonTelephonyDial)
	if Reason(second) != ReasonSheetUpdate {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		Validation("to is required"):        http.StatusBadRequest,
		NotFound("campaign 7"):              http.StatusNotFound,
		Wrap(assertErr{}, ReasonStoreQuery): http.StatusInternalServerError,
		assertErr{}:                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusCode(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
