package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"google.golang.org/genai"
)

const (
	DefaultLanguage = "gu-IN"
	DefaultGoal     = "information_confirmation"

	defaultOpening  = "નમસ્તે, હું ઓફિસમાંથી બોલું છું."
	defaultTaskAsk  = "આ માહિતી તમને સમજાઈ ગઈ છે કે નહીં?"
	defaultClosing  = "આભાર. શુભ દિવસ."
	defaultPending  = "જો તમને વધુ માહિતી જોઈએ તો અમે ફરીથી સંપર્ક કરીશું."
	maxSummaryRunes = 160
	maxNameRunes    = 60
)

// Draft is the free-form outline a planner extracts from source text. Build
// turns it into a Plan with a complete script.
type Draft struct {
	Name             string `json:"campaignName"`
	Goal             string `json:"goal"`
	Summary          string `json:"summary"`
	SuggestedOpening string `json:"suggestedOpening"`
	SuggestedClosing string `json:"suggestedClosing"`
}

// Build assembles the call script for a draft. Only the states a campaign can
// meaningfully change are overridden; the rest come from the default script.
func Build(d Draft, source string) Plan {
	opening := strings.TrimSpace(d.SuggestedOpening)
	if opening == "" {
		opening = defaultOpening
	}
	if summary := strings.TrimSpace(d.Summary); summary != "" {
		opening = opening + " " + summary
	}
	closing := strings.TrimSpace(d.SuggestedClosing)
	if closing == "" {
		closing = defaultClosing
	}
	goal := strings.TrimSpace(d.Goal)
	if goal == "" {
		goal = DefaultGoal
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = truncate(firstLine(source), maxNameRunes)
	}
	return Plan{
		Name:     name,
		Language: DefaultLanguage,
		Goal:     goal,
		Script: map[string]dialog.Prompt{
			dialog.StateIntro.String():           {Text: opening},
			dialog.StateTaskCheck.String():       {Text: defaultTaskAsk},
			dialog.StateTaskDone.String():        {Text: closing, Terminal: true},
			dialog.StateProblemRecorded.String(): {Text: defaultPending, Terminal: true},
		},
		Meta: Meta{SourceTextPreview: preview(source)},
	}
}

// RulePlanner builds plans without any model: the opening carries the first
// sentence of the source text.
type RulePlanner struct{}

func NewRulePlanner() *RulePlanner { return &RulePlanner{} }

func (RulePlanner) Name() string { return "rule" }

func (RulePlanner) Plan(ctx context.Context, text string) (Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Plan{}, errorsx.Validation("text is required")
	}
	p := Build(Draft{Summary: truncate(firstSentence(text), maxSummaryRunes)}, text)
	p.Meta.Planner = "rule"
	return p, nil
}

// contentGenerator is the part of the genai Models service the planner uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// Fallback answers when the model call or its JSON fails. Nil disables it.
	Fallback Planner
	Logger   *slog.Logger
}

// GenAIPlanner asks a Gemini model for a Draft in JSON.
type GenAIPlanner struct {
	models   contentGenerator
	model    string
	temp     float32
	fallback Planner
	logger   *slog.Logger
}

const plannerInstruction = `You write short outbound phone call scripts in Gujarati.
Read the source text and answer with one JSON object with the keys
campaignName, goal, summary, suggestedOpening, suggestedClosing.
summary is one or two spoken sentences in Gujarati that carry the message.
suggestedOpening greets the listener in Gujarati. suggestedClosing thanks them.
Do not add any other keys.`

func NewGenAIPlanner(ctx context.Context, cfg GenAIConfig) (*GenAIPlanner, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("genai planner: api_key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai planner: %w", err)
	}
	return newGenAIPlanner(client.Models, cfg), nil
}

func newGenAIPlanner(models contentGenerator, cfg GenAIConfig) *GenAIPlanner {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GenAIPlanner{
		models:   models,
		model:    cfg.Model,
		temp:     cfg.Temperature,
		fallback: cfg.Fallback,
		logger:   cfg.Logger,
	}
}

func (g *GenAIPlanner) Name() string { return "genai" }

func (g *GenAIPlanner) Plan(ctx context.Context, text string) (Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Plan{}, errorsx.Validation("text is required")
	}
	d, err := g.draft(ctx, text)
	if err != nil {
		if g.fallback == nil {
			return Plan{}, errorsx.Wrap(err, errorsx.ReasonPlannerFailed)
		}
		g.logger.Warn("planner_fallback", "model", g.model, "error", err)
		return g.fallback.Plan(ctx, text)
	}
	p := Build(d, text)
	p.Meta.Planner = "genai"
	return p, nil
}

func (g *GenAIPlanner) draft(ctx context.Context, text string) (Draft, error) {
	temp := g.temp
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType:  "application/json",
			SystemInstruction: genai.NewContentFromText(plannerInstruction, genai.RoleUser),
			Temperature:       &temp,
		})
	if err != nil {
		return Draft{}, err
	}
	raw := strings.TrimSpace(resp.Text())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(raw, "```")), "```")
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Draft{}, fmt.Errorf("decode planner response: %w", err)
	}
	if strings.TrimSpace(d.Summary) == "" && strings.TrimSpace(d.SuggestedOpening) == "" {
		return Draft{}, fmt.Errorf("planner response has no spoken text")
	}
	return d, nil
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	end := -1
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '।' {
			end = i + utf8.RuneLen(r)
			break
		}
	}
	if end > 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n]))
}
