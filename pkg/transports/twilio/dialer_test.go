package twilio

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/resilience"
	"github.com/harunnryd/sampark/pkg/transports"
	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCreator struct {
	last *api.CreateCallParams
	sid  string
	err  error
}

func (s *stubCreator) CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error) {
	s.last = params
	if s.err != nil {
		return nil, s.err
	}
	return &api.ApiV2010Call{Sid: &s.sid}, nil
}

func TestDialerPlaceCallUsesWebhookURLs(t *testing.T) {
	stub := &stubCreator{sid: "CA123"}
	d := NewDialer(Config{
		AccountSID: "AC1",
		AuthToken:  "token",
		FromNumber: "+200",
		PublicURL:  "https://example.com/",
	})
	d.client = stub

	sid, err := d.PlaceCall(context.Background(), transports.CallRequest{To: "+100", Ref: "ref-1"})
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("expected sid CA123, got %s", sid)
	}
	if stub.last == nil || stub.last.To == nil || *stub.last.To != "+100" {
		t.Fatalf("expected To param")
	}
	if stub.last.From == nil || *stub.last.From != "+200" {
		t.Fatalf("expected configured From param")
	}
	if stub.last.Url == nil || *stub.last.Url != "https://example.com/answer?ref=ref-1" {
		t.Fatalf("unexpected answer url %v", stub.last.Url)
	}
	if stub.last.StatusCallback == nil || *stub.last.StatusCallback != "https://example.com/call-status?ref=ref-1" {
		t.Fatalf("unexpected status callback %v", stub.last.StatusCallback)
	}
}

func TestDialerPlaceCallRequestFromOverrides(t *testing.T) {
	stub := &stubCreator{sid: "CA999"}
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token", FromNumber: "+200"})
	d.client = stub

	if _, err := d.PlaceCall(context.Background(), transports.CallRequest{To: "+100", From: "+300"}); err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if *stub.last.From != "+300" {
		t.Fatalf("expected request From to win")
	}
	if !strings.HasPrefix(*stub.last.Url, "http://localhost:8080/answer") {
		t.Fatalf("unexpected local url %s", *stub.last.Url)
	}
}

func TestDialerPlaceCallValidation(t *testing.T) {
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token"})
	d.client = &stubCreator{sid: "CA1"}
	_, err := d.PlaceCall(context.Background(), transports.CallRequest{To: "+100"})
	if !errorsx.HasReason(err, errorsx.ReasonValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDialerPlaceCallRateLimit(t *testing.T) {
	stub := &stubCreator{err: &twilioclient.TwilioRestError{Status: 429, Message: "slow down"}}
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token", FromNumber: "+200"})
	d.client = stub

	_, err := d.PlaceCall(context.Background(), transports.CallRequest{To: "+100"})
	if !errorsx.HasReason(err, errorsx.ReasonTelephonyDial) {
		t.Fatalf("expected telephony reason, got %v", err)
	}
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit classification")
	}
}

func TestDialerPlaceCallHonoursContext(t *testing.T) {
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token", FromNumber: "+200"})
	d.client = &stubCreator{sid: "CA1"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.PlaceCall(ctx, transports.CallRequest{To: "+100"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
