package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/transports"
)

// Placement is one call recorded by the mock dialer.
type Placement struct {
	Request transports.CallRequest
	CallSID string
	At      time.Time
}

// Dialer is an in-memory dialer for local runs and tests. It issues
// sequential call ids and fails numbers listed in Fail.
type Dialer struct {
	mu         sync.Mutex
	seq        int
	placements []Placement
	fail       map[string]error
	now        func() time.Time
}

func New() *Dialer {
	return &Dialer{fail: make(map[string]error), now: time.Now}
}

func (d *Dialer) Name() string { return "mock" }

// Fail makes every placement to number return err.
func (d *Dialer) Fail(number string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = errorsx.New(errorsx.ReasonTelephonyDial, "mock dial failure")
	}
	d.fail[number] = err
}

func (d *Dialer) PlaceCall(ctx context.Context, req transports.CallRequest) (string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.fail[req.To]; ok {
		return "", err
	}
	d.seq++
	sid := fmt.Sprintf("MOCK%06d", d.seq)
	d.placements = append(d.placements, Placement{Request: req, CallSID: sid, At: d.now()})
	return sid, nil
}

// Placements returns a copy of the recorded placements in order.
func (d *Dialer) Placements() []Placement {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Placement, len(d.placements))
	copy(out, d.placements)
	return out
}
