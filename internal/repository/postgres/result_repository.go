package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/safety-stock/internal/repository"
	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
)

type resultRepository struct {
	db *DB
}

// NewResultRepository stores results in the safety_stock_*_results tables.
func NewResultRepository(db *DB) repository.ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) SaveHistory(ctx context.Context, jobID string, rows []safetystock.HistoryResult, skipped []safetystock.SkippedGroup) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM safety_stock_history_results WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear history results: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO safety_stock_history_results (
				job_id, position, item_name, org_code, average_daily_qty, std_dev,
				lead_time, supply_lead_time_var_days, service_level, service_factor,
				ss_sup, ss_demand, total_ss, days_of_cover
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare history insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx,
				jobID, i, row.ItemName, row.OrgCode, row.AverageDailyQty, row.StdDev,
				row.LeadTime, row.SupplyLeadTimeVarDays, row.ServiceLevel, row.ServiceFactor,
				row.SSSupply, row.SSDemand, row.TotalSS, row.DaysOfCover,
			); err != nil {
				return fmt.Errorf("failed to insert history result %s/%s: %w", row.ItemName, row.OrgCode, err)
			}
		}

		return saveSkipped(ctx, tx, jobID, repository.EstimatorHistory, skipped)
	})
}

func (r *resultRepository) SaveForecast(ctx context.Context, jobID string, rows []safetystock.ForecastResult, skipped []safetystock.SkippedGroup) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM safety_stock_forecast_results WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear forecast results: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO safety_stock_forecast_results (
				job_id, position, item_name, org_code, forecast_err_percent, avg_daily_fcst,
				lead_time, service_level, service_factor, safety_stock, days_of_cover
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare forecast insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx,
				jobID, i, row.ItemName, row.OrgCode, row.ForecastErrPercent, row.AvgDailyForecast,
				row.LeadTime, row.ServiceLevel, row.ServiceFactor, row.SafetyStock, row.DaysOfCover,
			); err != nil {
				return fmt.Errorf("failed to insert forecast result %s/%s: %w", row.ItemName, row.OrgCode, err)
			}
		}

		return saveSkipped(ctx, tx, jobID, repository.EstimatorForecast, skipped)
	})
}

func saveSkipped(ctx context.Context, tx *sql.Tx, jobID, estimator string, skipped []safetystock.SkippedGroup) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM safety_stock_skipped_groups WHERE job_id = $1 AND estimator = $2`, jobID, estimator,
	); err != nil {
		return fmt.Errorf("failed to clear skipped groups: %w", err)
	}

	for i, s := range skipped {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO safety_stock_skipped_groups (job_id, estimator, position, item_name, org_code, reason)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, jobID, estimator, i, s.Key.ItemName, s.Key.OrgCode, string(s.Reason)); err != nil {
			return fmt.Errorf("failed to insert skipped group %s: %w", s.Key, err)
		}
	}
	return nil
}

func (r *resultRepository) GetHistory(ctx context.Context, jobID string) ([]safetystock.HistoryResult, error) {
	query := `
		SELECT item_name, org_code, average_daily_qty, std_dev, lead_time,
		       supply_lead_time_var_days, service_level, service_factor,
		       ss_sup, ss_demand, total_ss, days_of_cover
		FROM safety_stock_history_results
		WHERE job_id = $1
		ORDER BY position
	`

	var rows []safetystock.HistoryResult
	if err := r.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("error getting history results: %w", err)
	}
	return rows, nil
}

func (r *resultRepository) GetForecast(ctx context.Context, jobID string) ([]safetystock.ForecastResult, error) {
	query := `
		SELECT item_name, org_code, forecast_err_percent, avg_daily_fcst, lead_time,
		       service_level, service_factor, safety_stock, days_of_cover
		FROM safety_stock_forecast_results
		WHERE job_id = $1
		ORDER BY position
	`

	var rows []safetystock.ForecastResult
	if err := r.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("error getting forecast results: %w", err)
	}
	return rows, nil
}

type skippedRow struct {
	ItemName string `db:"item_name"`
	OrgCode  string `db:"org_code"`
	Reason   string `db:"reason"`
}

func (r *resultRepository) GetSkipped(ctx context.Context, jobID, estimator string) ([]safetystock.SkippedGroup, error) {
	query := `
		SELECT item_name, org_code, reason
		FROM safety_stock_skipped_groups
		WHERE job_id = $1 AND estimator = $2
		ORDER BY position
	`

	var rows []skippedRow
	if err := r.db.SelectContext(ctx, &rows, query, jobID, estimator); err != nil {
		return nil, fmt.Errorf("error getting skipped groups: %w", err)
	}

	skipped := make([]safetystock.SkippedGroup, 0, len(rows))
	for _, row := range rows {
		skipped = append(skipped, safetystock.SkippedGroup{
			Key:    safetystock.GroupKey{ItemName: row.ItemName, OrgCode: row.OrgCode},
			Reason: safetystock.SkipReason(row.Reason),
		})
	}
	return skipped, nil
}

func (r *resultRepository) DeleteJob(ctx context.Context, jobID string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"safety_stock_history_results",
			"safety_stock_forecast_results",
			"safety_stock_skipped_groups",
		} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE job_id = $1`, table), jobID); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		return nil
	})
}
