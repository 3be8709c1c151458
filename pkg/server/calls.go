package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/dialog"
	"github.com/harunnryd/sampark/pkg/dispatch"
	"github.com/harunnryd/sampark/pkg/errorsx"
)

// phoneList accepts a JSON array or a comma separated string.
type phoneList []string

func (p *phoneList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*p = cleanPhones(list)
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*p = cleanPhones(strings.Split(one, ","))
	return nil
}

func cleanPhones(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type callRequest struct {
	To           string `json:"to"`
	CampaignID   string `json:"campaignId"`
	CampaignText string `json:"campaignText"`
}

type bulkRequest struct {
	Phones       phoneList `json:"phones"`
	BatchID      string    `json:"batchId"`
	CampaignID   string    `json:"campaignId"`
	CampaignText string    `json:"campaignText"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" {
		writeError(w, errorsx.Validation("Phone number required"))
		return
	}
	seed, hasCampaign, err := s.seedFor(r.Context(), req.CampaignID, req.CampaignText)
	if err != nil {
		writeError(w, err)
		return
	}
	seed.Phone = req.To
	sess, err := s.placer.Place(r.Context(), seed)
	if err != nil {
		s.logger.Error("call_place_failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "calling",
		"callSid":     sess.CallSID,
		"hasCampaign": hasCampaign,
	})
}

func (s *Server) handleBulkCall(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Phones) == 0 {
		writeError(w, errorsx.Validation("No phone numbers provided"))
		return
	}
	req.BatchID = strings.TrimSpace(req.BatchID)
	if req.BatchID == "" {
		writeError(w, errorsx.Validation("Batch ID required"))
		return
	}
	seed, hasCampaign, err := s.seedFor(r.Context(), req.CampaignID, req.CampaignText)
	if err != nil {
		writeError(w, err)
		return
	}
	s.dispatcher.Start(s.baseCtx, dispatch.Batch{ID: req.BatchID, Phones: req.Phones, Seed: seed})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "bulk calling started",
		"total":       len(req.Phones),
		"batchId":     req.BatchID,
		"hasCampaign": hasCampaign,
	})
}

// seedFor resolves the script context of a placement. A stored campaign must
// exist; an ad-hoc plan that fails to build falls back to the default script.
func (s *Server) seedFor(ctx context.Context, campaignID, campaignText string) (dialog.Seed, bool, error) {
	if id := strings.TrimSpace(campaignID); id != "" {
		if s.campaigns == nil {
			return dialog.Seed{}, false, errorsx.NotFound("campaign not found")
		}
		c, err := s.campaigns.Get(ctx, id)
		if err != nil {
			return dialog.Seed{}, false, err
		}
		return c.Seed(dialog.Seed{}), true, nil
	}
	text := strings.TrimSpace(campaignText)
	if text == "" || s.planner == nil {
		return dialog.Seed{}, false, nil
	}
	plan, err := s.planner.Plan(ctx, text)
	if err != nil {
		s.logger.Warn("adhoc_campaign_failed", "planner", s.planner.Name(), "error", err)
		return dialog.Seed{}, false, nil
	}
	return campaign.AdhocSeed(dialog.Seed{}, plan), true, nil
}
