package campaign

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/sampark/pkg/dialog"
)

// Source types accepted by the from-source endpoint.
const (
	SourceText = "text"
	SourceURL  = "url"
	SourceFile = "file"
	// SourceAdhoc marks a plan built from campaignText on a call request.
	SourceAdhoc = "adhoc"
)

// PreviewLimit caps the source excerpt stored with a plan.
const PreviewLimit = 200

// Plan is the planner's output: campaign metadata plus per-state prompts.
// Script keys are state names in any case; unknown keys are ignored when the
// plan is applied to a call.
type Plan struct {
	Name     string                   `json:"campaignName"`
	Language string                   `json:"language"`
	Goal     string                   `json:"goal,omitempty"`
	Script   map[string]dialog.Prompt `json:"script"`
	Meta     Meta                     `json:"meta"`
}

type Meta struct {
	SourceTextPreview string `json:"sourceTextPreview"`
	Planner           string `json:"planner,omitempty"`
}

// Override converts the plan script into the campaign tier of a call.
// Prompts with empty text are skipped so the default tier answers for them.
func (p Plan) Override() dialog.Script {
	in := make(map[string]dialog.Prompt, len(p.Script))
	for k, v := range p.Script {
		if strings.EqualFold(k, "campaign_code") || strings.TrimSpace(v.Text) == "" {
			continue
		}
		in[k] = dialog.Prompt{Text: strings.TrimSpace(v.Text), Terminal: v.Terminal}
	}
	return dialog.ScriptFromMap(in)
}

// Campaign is a stored plan.
type Campaign struct {
	ID            string          `json:"id"`
	SourceType    string          `json:"sourceType"`
	SourcePayload json.RawMessage `json:"sourcePayload,omitempty"`
	Plan          Plan            `json:"campaign"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Namespace keys the campaign's cached audio.
func (c Campaign) Namespace() string {
	return "campaign-" + c.ID
}

// Seed fills the campaign part of a call seed.
func (c Campaign) Seed(seed dialog.Seed) dialog.Seed {
	seed.CampaignID = c.ID
	seed.Namespace = c.Namespace()
	seed.Override = c.Plan.Override()
	return seed
}

// AdhocNamespace derives a namespace from the prompts of an ad-hoc plan, so
// calls share cached audio only when they would speak the same script.
func AdhocNamespace(override dialog.Script) string {
	h := sha256.New()
	for _, st := range dialog.States() {
		p, ok := override[st]
		if !ok {
			continue
		}
		fmt.Fprintf(h, "%s\x00%t\x00%s\x00", st, p.Terminal, p.Text)
	}
	return "adhoc-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// AdhocSeed fills a call seed from a plan built for a single request.
func AdhocSeed(seed dialog.Seed, p Plan) dialog.Seed {
	seed.Override = p.Override()
	seed.Namespace = AdhocNamespace(seed.Override)
	return seed
}

// Repository persists campaigns.
type Repository interface {
	Create(ctx context.Context, c Campaign) (Campaign, error)
	Get(ctx context.Context, id string) (Campaign, error)
}

// Planner turns source text into a call plan.
type Planner interface {
	Name() string
	Plan(ctx context.Context, text string) (Plan, error)
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > PreviewLimit {
		r = r[:PreviewLimit]
	}
	return string(r)
}
