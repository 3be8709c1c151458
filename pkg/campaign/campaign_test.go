package campaign

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"google.golang.org/genai"
)

type stubModels struct {
	text  string
	err   error
	calls int
}

func (s *stubModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s.text, genai.RoleModel)}},
	}, nil
}

func TestPlanOverrideNormalizesKeys(t *testing.T) {
	p := Plan{Script: map[string]dialog.Prompt{
		"intro":         {Text: " hello "},
		"Task_Done":     {Text: "bye", Terminal: true},
		"MESSAGE":       {Text: "ignored"},
		"campaign_code": {Text: "x"},
		"TASK_CHECK":    {Text: "  "},
	}}
	got := p.Override()
	if len(got) != 2 {
		t.Fatalf("expected 2 prompts, got %v", got)
	}
	if got[dialog.StateIntro].Text != "hello" {
		t.Fatalf("unexpected intro %q", got[dialog.StateIntro].Text)
	}
	if !got[dialog.StateTaskDone].Terminal {
		t.Fatalf("expected terminal TASK_DONE")
	}
	if _, ok := got[dialog.StateTaskCheck]; ok {
		t.Fatalf("blank prompt should fall through to default")
	}
}

func TestAdhocNamespaceFollowsScript(t *testing.T) {
	a := AdhocNamespace(dialog.Script{dialog.StateIntro: {Text: "opening"}, dialog.StateTaskDone: {Text: "bye", Terminal: true}})
	b := AdhocNamespace(dialog.Script{dialog.StateTaskDone: {Text: "bye", Terminal: true}, dialog.StateIntro: {Text: "opening"}})
	if a != b || !strings.HasPrefix(a, "adhoc-") {
		t.Fatalf("unexpected namespaces %q %q", a, b)
	}
	if AdhocNamespace(dialog.Script{dialog.StateIntro: {Text: "opening v2"}, dialog.StateTaskDone: {Text: "bye", Terminal: true}}) == a {
		t.Fatalf("different prompts should not share a namespace")
	}
	if AdhocNamespace(dialog.Script{dialog.StateIntro: {Text: "opening"}, dialog.StateTaskDone: {Text: "bye"}}) == a {
		t.Fatalf("terminal flag should be part of the namespace")
	}
}

func TestAdhocSeedUsesPlanScript(t *testing.T) {
	p := Plan{Script: map[string]dialog.Prompt{"intro": {Text: " opening "}}}
	seed := AdhocSeed(dialog.Seed{Phone: "+911234567890"}, p)
	if seed.Namespace != AdhocNamespace(dialog.Script{dialog.StateIntro: {Text: "opening"}}) {
		t.Fatalf("unexpected namespace %q", seed.Namespace)
	}
	if seed.Override[dialog.StateIntro].Text != "opening" || seed.Phone != "+911234567890" {
		t.Fatalf("unexpected seed %+v", seed)
	}
}

func TestCampaignSeed(t *testing.T) {
	c := Campaign{ID: "42", Plan: Build(Draft{Summary: "x"}, "source")}
	seed := c.Seed(dialog.Seed{Phone: "+911234567890"})
	if seed.Namespace != "campaign-42" || seed.CampaignID != "42" {
		t.Fatalf("unexpected seed %+v", seed)
	}
	if _, ok := seed.Override[dialog.StateIntro]; !ok {
		t.Fatalf("expected intro override")
	}
}

func TestRulePlanner(t *testing.T) {
	text := "આવતીકાલે કચેરી બંધ રહેશે. વધુ માહિતી માટે વેબસાઇટ જુઓ."
	p, err := NewRulePlanner().Plan(context.Background(), text)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	intro := p.Script[dialog.StateIntro.String()].Text
	if !strings.HasPrefix(intro, defaultOpening) || !strings.Contains(intro, "આવતીકાલે કચેરી બંધ રહેશે.") {
		t.Fatalf("unexpected intro %q", intro)
	}
	if strings.Contains(intro, "વેબસાઇટ") {
		t.Fatalf("intro should carry only the first sentence: %q", intro)
	}
	if p.Script[dialog.StateTaskCheck.String()].Text != defaultTaskAsk {
		t.Fatalf("unexpected task check")
	}
	if !p.Script[dialog.StateTaskDone.String()].Terminal {
		t.Fatalf("closing should be terminal")
	}
	if p.Language != "gu-IN" || p.Meta.Planner != "rule" || p.Meta.SourceTextPreview != text {
		t.Fatalf("unexpected plan %+v", p)
	}
}

func TestRulePlannerRejectsEmpty(t *testing.T) {
	_, err := NewRulePlanner().Plan(context.Background(), "   ")
	if !errorsx.HasReason(err, errorsx.ReasonValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreviewIsBounded(t *testing.T) {
	long := strings.Repeat("અ", 500)
	if got := len([]rune(preview(long))); got != PreviewLimit {
		t.Fatalf("expected %d runes, got %d", PreviewLimit, got)
	}
}

func TestGenAIPlannerBuildsFromDraft(t *testing.T) {
	stub := &stubModels{text: "```json\n{\"campaignName\":\"Office\",\"goal\":\"notice\",\"summary\":\"કચેરી બંધ છે.\",\"suggestedOpening\":\"નમસ્તે.\",\"suggestedClosing\":\"આભાર.\"}\n```"}
	g := newGenAIPlanner(stub, GenAIConfig{})
	p, err := g.Plan(context.Background(), "office closed tomorrow")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if p.Name != "Office" || p.Goal != "notice" || p.Meta.Planner != "genai" {
		t.Fatalf("unexpected plan %+v", p)
	}
	if got := p.Script[dialog.StateIntro.String()].Text; got != "નમસ્તે. કચેરી બંધ છે." {
		t.Fatalf("unexpected intro %q", got)
	}
	if got := p.Script[dialog.StateTaskDone.String()].Text; got != "આભાર." {
		t.Fatalf("unexpected closing %q", got)
	}
}

func TestGenAIPlannerFallsBack(t *testing.T) {
	stub := &stubModels{err: errors.New("quota")}
	g := newGenAIPlanner(stub, GenAIConfig{Fallback: NewRulePlanner()})
	p, err := g.Plan(context.Background(), "office closed tomorrow.")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if p.Meta.Planner != "rule" {
		t.Fatalf("expected rule fallback, got %q", p.Meta.Planner)
	}
}

func TestGenAIPlannerFailsWithoutFallback(t *testing.T) {
	stub := &stubModels{text: "not json"}
	g := newGenAIPlanner(stub, GenAIConfig{})
	_, err := g.Plan(context.Background(), "office closed tomorrow")
	if !errorsx.HasReason(err, errorsx.ReasonPlannerFailed) {
		t.Fatalf("expected planner_failed, got %v", err)
	}
}

func TestLoadFromText(t *testing.T) {
	if _, err := LoadFromText(" short "); !errorsx.HasReason(err, errorsx.ReasonSourceLoad) {
		t.Fatalf("expected source_load error, got %v", err)
	}
	got, err := LoadFromText("  long enough text  ")
	if err != nil || got != "long enough text" {
		t.Fatalf("unexpected %q %v", got, err)
	}
}

func TestLoadFromURL(t *testing.T) {
	page := `<html><head><title>t</title><style>p{}</style></head><body>
<h1>Notice</h1><script>var x = 1;</script>
<p>The   district office will remain closed on Monday
for maintenance work.</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	l := &Loader{Client: srv.Client()}
	got, err := l.LoadFromURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := "Notice The district office will remain closed on Monday for maintenance work."
	if got != want {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestLoadFromURLTooShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>tiny</body></html>"))
	}))
	defer srv.Close()

	l := &Loader{Client: srv.Client()}
	if _, err := l.LoadFromURL(context.Background(), srv.URL); !errorsx.HasReason(err, errorsx.ReasonSourceLoad) {
		t.Fatalf("expected source_load error, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	plain := base64.StdEncoding.EncodeToString([]byte("plain campaign text"))
	got, err := LoadFromFile("notes.txt", plain)
	if err != nil || got != "plain campaign text" {
		t.Fatalf("unexpected %q %v", got, err)
	}

	page := base64.StdEncoding.EncodeToString([]byte("<html><body><p>html   campaign</p><p>text</p></body></html>"))
	got, err = LoadFromFile("notice.HTML", page)
	if err != nil || got != "html campaign text" {
		t.Fatalf("unexpected %q %v", got, err)
	}

	if _, err := LoadFromFile("x.txt", "%%%"); !errorsx.HasReason(err, errorsx.ReasonValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoaderDispatch(t *testing.T) {
	l := NewLoader(0)
	payload, _ := json.Marshal(SourcePayload{Text: "campaign from text"})
	got, err := l.Load(context.Background(), SourceText, payload)
	if err != nil || got != "campaign from text" {
		t.Fatalf("unexpected %q %v", got, err)
	}
	if _, err := l.Load(context.Background(), "pdf", payload); !errorsx.HasReason(err, errorsx.ReasonValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	c, err := repo.Create(context.Background(), Campaign{SourceType: SourceText, Plan: Plan{Name: "n"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", c)
	}
	got, err := repo.Get(context.Background(), c.ID)
	if err != nil || got.Plan.Name != "n" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if _, err := repo.Get(context.Background(), "missing"); !errorsx.HasReason(err, errorsx.ReasonNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
