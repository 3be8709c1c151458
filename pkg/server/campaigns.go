package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/harunnryd/sampark/pkg/audiocache"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/errorsx"
)

type previewRequest struct {
	Text string `json:"text"`
}

type sourceRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, errorsx.Validation("campaign id required"))
		return
	}
	if s.campaigns == nil {
		writeError(w, errorsx.NotFound("campaign not found"))
		return
	}
	c, err := s.campaigns.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "campaign": c})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, errorsx.Validation("text is required"))
		return
	}
	plan, err := s.planner.Plan(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("campaign_preview_failed", "error", err)
		writeError(w, errorsx.Wrap(err, errorsx.ReasonPlannerFailed))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "campaign": plan})
}

func (s *Server) handleFromSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Type == "" || len(req.Payload) == 0 || string(req.Payload) == "null" {
		writeError(w, errorsx.Validation("type and payload required"))
		return
	}
	text, err := s.loader.Load(r.Context(), req.Type, req.Payload)
	if err != nil {
		s.logger.Warn("campaign_source_failed", "type", req.Type, "error", err)
		writeError(w, err)
		return
	}
	plan, err := s.planner.Plan(r.Context(), text)
	if err != nil {
		writeError(w, errorsx.Wrap(err, errorsx.ReasonPlannerFailed))
		return
	}
	if s.campaigns == nil {
		writeError(w, errorsx.New(errorsx.ReasonStoreQuery, "no campaign store configured"))
		return
	}
	saved, err := s.campaigns.Create(r.Context(), campaign.Campaign{
		SourceType:    req.Type,
		SourcePayload: req.Payload,
		Plan:          plan,
	})
	if err != nil {
		s.logger.Error("campaign_save_failed", "error", err)
		writeError(w, err)
		return
	}
	s.logger.Info("campaign_created", "campaign_id", saved.ID, "source_type", req.Type, "planner", plan.Meta.Planner)
	s.preloadCampaign(saved)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"campaignId": saved.ID,
		"sourceType": req.Type,
		"campaign":   plan,
	})
}

// preloadCampaign renders the campaign's own prompts in the background so its
// first calls are served from the cache.
func (s *Server) preloadCampaign(c campaign.Campaign) {
	prompts := audiocache.OverrideUtterances(c.Plan.Override())
	if s.resolver == nil || len(prompts) == 0 {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.resolver.Preload(s.baseCtx, c.Namespace(), prompts); err != nil {
			s.logger.Warn("campaign_preload_incomplete", "campaign_id", c.ID, "prompts", len(prompts), "error", err)
			return
		}
		s.logger.Info("campaign_preload_done", "campaign_id", c.ID, "prompts", len(prompts))
	}()
}
