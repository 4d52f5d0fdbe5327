package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nexusworks/payments/model"
)

const gatewayColumns = `gateway_id, type, name, fee_percentage, fee_fixed, charges_payer, supports_refund, supports_partial_refund, supports_recurring, supports_escrow, min_amount, max_amount, currencies, countries, success_rate, avg_latency_ms, created_at`

func (d *Datasource) RecordGateway(ctx context.Context, g *model.Gateway) (*model.Gateway, error) {
	if g.GatewayID == "" {
		g.GatewayID = model.GenerateUUIDWithSuffix("gtw")
	}
	g.CreatedAt = time.Now()
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO gateways (gateway_id, type, name, fee_percentage, fee_fixed, charges_payer, supports_refund, supports_partial_refund, supports_recurring, supports_escrow, min_amount, max_amount, currencies, countries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, g.GatewayID, g.Type, g.Name, g.FeePercentage, g.FeeFixed, g.ChargesPayer, g.SupportsRefund, g.SupportsPartialRefund, g.SupportsRecurring, g.SupportsEscrow, g.MinAmount, g.MaxAmount, pq.Array(g.Currencies), pq.Array(g.Countries), g.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "recording gateway")
	}
	return g, nil
}

func scanGateway(row interface {
	Scan(dest ...interface{}) error
}) (*model.Gateway, error) {
	g := &model.Gateway{}
	err := row.Scan(&g.GatewayID, &g.Type, &g.Name, &g.FeePercentage, &g.FeeFixed, &g.ChargesPayer, &g.SupportsRefund, &g.SupportsPartialRefund, &g.SupportsRecurring, &g.SupportsEscrow, &g.MinAmount, &g.MaxAmount, pq.Array(&g.Currencies), pq.Array(&g.Countries), &g.SuccessRate, &g.AvgLatencyMs, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (d *Datasource) GetGatewayByType(ctx context.Context, gatewayType string) (*model.Gateway, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+gatewayColumns+` FROM gateways WHERE type = $1
	`, gatewayType)
	return scanGateway(row)
}

func (d *Datasource) GetAllGateways(ctx context.Context) ([]*model.Gateway, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+gatewayColumns+` FROM gateways ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var gateways []*model.Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	return gateways, rows.Err()
}

// UpdateGatewayMetrics folds one dispatch observation into the gateway's
// rolling health metrics (exponentially weighted, newest observation at 10%).
func (d *Datasource) UpdateGatewayMetrics(ctx context.Context, gatewayType string, success bool, latencyMs int64) error {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE gateways
		SET success_rate = success_rate * 0.9 + $2 * 0.1,
		    avg_latency_ms = (avg_latency_ms * 9 + $3) / 10
		WHERE type = $1
	`, gatewayType, outcome, latencyMs)
	return errors.Wrap(err, "updating gateway metrics")
}
