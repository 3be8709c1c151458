package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/harunnryd/sampark/pkg/resilience"
	"github.com/harunnryd/sampark/pkg/transports"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// Dialer provides outbound call creation via Twilio REST API.
type Dialer struct {
	cfg    Config
	client callCreator
}

// NewDialer creates a new Twilio dialer.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

func (d *Dialer) Name() string { return "twilio" }

// Config returns the dialer configuration with defaults applied.
func (d *Dialer) Config() Config { return d.cfg }

// PlaceCall starts an outbound call whose answer and status webhooks carry req.Ref.
func (d *Dialer) PlaceCall(ctx context.Context, req transports.CallRequest) (string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	from := strings.TrimSpace(req.From)
	if from == "" {
		from = d.cfg.FromNumber
	}
	if strings.TrimSpace(req.To) == "" || from == "" {
		return "", errorsx.Validation("to/from required")
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", errorsx.New(errorsx.ReasonTelephonyDial, "missing twilio credentials")
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(from)
	params.SetUrl(d.cfg.webhookURL(d.cfg.AnswerPath, req.Ref))
	params.SetMethod(http.MethodPost)
	params.SetStatusCallback(d.cfg.webhookURL(d.cfg.StatusPath, req.Ref))
	params.SetStatusCallbackMethod(http.MethodPost)
	params.SetStatusCallbackEvent([]string{"completed"})
	if d.cfg.RingTimeoutS > 0 {
		params.SetTimeout(d.cfg.RingTimeoutS)
	}
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", classifyError(err)
	}
	if resp == nil || resp.Sid == nil {
		return "", errorsx.New(errorsx.ReasonTelephonyDial, "missing call sid")
	}
	return *resp.Sid, nil
}

func classifyError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) && restErr.Status == http.StatusTooManyRequests {
		err = fmt.Errorf("%w: %v", resilience.RateLimitError{Provider: "twilio", Message: restErr.Message}, err)
	}
	return errorsx.Wrap(err, errorsx.ReasonTelephonyDial)
}
