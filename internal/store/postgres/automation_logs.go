package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/znz-systems/leadbridge/internal/models"
)

func (g *Gateway) AppendAutomationLog(ctx context.Context, params models.AutomationLogCreateParams) error {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode automation log metadata: %w", err)
	}

	_, err = g.q.ExecContext(ctx,
		`INSERT INTO automation_logs
		 (tenant_id, automation_type, trigger_type, target_id, target_type, customer_id, message_content, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		params.TenantID, params.AutomationType, params.TriggerType, params.TargetID, params.TargetType,
		params.CustomerID, params.MessageContent, params.Status, string(raw),
	)
	return err
}
