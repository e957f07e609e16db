package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PetroPulse/internal/domain/models"
	pkgch "PetroPulse/pkg/clickhouse"
	applogger "PetroPulse/pkg/logger"
)

// ArchiveSchema returns idempotent DDL for the archive tables.
func ArchiveSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecast_archive (
			computed_at  DateTime,
			series_id    LowCardinality(String),
			generated_at DateTime,
			step_ts      DateTime,
			point        Float64,
			lower        Float64,
			upper        Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(computed_at)
		ORDER BY (series_id, computed_at, step_ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.anomaly_archive (
			computed_at  DateTime,
			equipment_id LowCardinality(String),
			ts           DateTime,
			is_anomalous UInt8,
			severity     Float64,
			reason_code  LowCardinality(String)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(computed_at)
		ORDER BY (equipment_id, computed_at, ts)`, database),
	}
}

// CHResultArchive persists refresh outputs to ClickHouse for history
// charts and export jobs.
type CHResultArchive struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

// NewCHResultArchive creates a ClickHouse-backed result archive.
func NewCHResultArchive(client *pkgch.Client, database string, l *applogger.Logger) *CHResultArchive {
	return &CHResultArchive{client: client, db: client.DB(), database: database, l: l}
}

func (a *CHResultArchive) ArchiveForecasts(ctx context.Context, computedAt int64, forecasts []models.ForecastResult) error {
	total := 0
	for _, f := range forecasts {
		total += len(f.Horizon)
	}
	if total == 0 {
		return nil
	}

	start := time.Now()
	ts := time.Unix(computedAt, 0)

	values := make([]string, 0, total)
	args := make([]interface{}, 0, total*7)
	for _, f := range forecasts {
		for _, hp := range f.Horizon {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, ts, f.SeriesID, f.GeneratedAt, hp.Timestamp, hp.Point, hp.Lower, hp.Upper)
		}
	}

	q := fmt.Sprintf(
		"INSERT INTO %s.forecast_archive (computed_at, series_id, generated_at, step_ts, point, lower, upper) VALUES %s",
		a.database, strings.Join(values, ","),
	)
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive forecasts: %w", err)
	}

	if a.l != nil {
		a.l.Debug("forecasts archived",
			applogger.Int("series", len(forecasts)),
			applogger.Int("rows", total),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func (a *CHResultArchive) ArchiveVerdicts(ctx context.Context, computedAt int64, verdicts []models.AnomalyVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	start := time.Now()
	ts := time.Unix(computedAt, 0)

	values := make([]string, 0, len(verdicts))
	args := make([]interface{}, 0, len(verdicts)*6)
	for _, v := range verdicts {
		flagged := uint8(0)
		if v.IsAnomalous {
			flagged = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, ts, v.EquipmentID, v.Timestamp, flagged, v.Severity, v.ReasonCode)
	}

	q := fmt.Sprintf(
		"INSERT INTO %s.anomaly_archive (computed_at, equipment_id, ts, is_anomalous, severity, reason_code) VALUES %s",
		a.database, strings.Join(values, ","),
	)
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive verdicts: %w", err)
	}

	if a.l != nil {
		a.l.Debug("verdicts archived",
			applogger.Int("rows", len(verdicts)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

func (a *CHResultArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *CHResultArchive) Close() error {
	return a.client.Close()
}
