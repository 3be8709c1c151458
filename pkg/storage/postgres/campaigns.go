package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sampark/pkg/campaign"
	"github.com/harunnryd/sampark/pkg/errorsx"
	"github.com/jackc/pgx/v5"
)

// CampaignRepository implements campaign.Repository on the campaigns table.
type CampaignRepository struct {
	db dbtx
}

func (s *Store) Campaigns() *CampaignRepository {
	return &CampaignRepository{db: s.db}
}

func (r *CampaignRepository) Create(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	plan, err := json.Marshal(c.Plan)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("encode campaign: %w", err)
	}
	var payload []byte
	if len(c.SourcePayload) > 0 {
		payload = c.SourcePayload
	}
	var created time.Time
	err = r.db.QueryRow(ctx, `
		INSERT INTO campaigns (id, source_type, source_payload, campaign_json)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		c.ID, c.SourceType, payload, plan,
	).Scan(&created)
	if err != nil {
		return campaign.Campaign{}, errorsx.Errorf(errorsx.ReasonStoreQuery, "insert campaign: %w", err)
	}
	c.CreatedAt = created
	return c, nil
}

func (r *CampaignRepository) Get(ctx context.Context, id string) (campaign.Campaign, error) {
	var (
		c       campaign.Campaign
		payload []byte
		plan    []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, source_type, source_payload, campaign_json, created_at
		FROM campaigns WHERE id = $1`, id,
	).Scan(&c.ID, &c.SourceType, &payload, &plan, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return campaign.Campaign{}, errorsx.NotFound("campaign not found")
	}
	if err != nil {
		return campaign.Campaign{}, errorsx.Errorf(errorsx.ReasonStoreQuery, "select campaign: %w", err)
	}
	if len(payload) > 0 {
		c.SourcePayload = payload
	}
	if err := json.Unmarshal(plan, &c.Plan); err != nil {
		return campaign.Campaign{}, errorsx.Errorf(errorsx.ReasonStoreQuery, "decode campaign %s: %w", id, err)
	}
	return c, nil
}
