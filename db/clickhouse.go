package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"stockwatch/models"
	"stockwatch/utils"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS watch_records (
    record_type String,
    ticker String,
    display_name String,
    price Decimal(18, 8),
    observed_at DateTime64(3),
    delta Decimal(18, 8),
    computed_at DateTime64(3),
    updated_at DateTime64(3)
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (record_type, ticker)
`

// ClickHouseStore keeps the watch table in ClickHouse. ReplacingMergeTree
// keyed on (record_type, ticker) collapses rewrites into latest-value rows;
// reads go through FINAL so the newest version wins before merges run.
type ClickHouseStore struct {
	conn driver.Conn
}

type watchRow struct {
	RecordType  string          `ch:"record_type"`
	Ticker      string          `ch:"ticker"`
	DisplayName string          `ch:"display_name"`
	Price       decimal.Decimal `ch:"price"`
	ObservedAt  time.Time       `ch:"observed_at"`
	Delta       decimal.Decimal `ch:"delta"`
	ComputedAt  time.Time       `ch:"computed_at"`
	UpdatedAt   time.Time       `ch:"updated_at"`
}

func NewClickHouseStore(host string, port int, database, username, password string) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Protocol: clickhouse.Native,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// The daemon often starts before the database is up.
	ping := func() error { return conn.Ping(context.Background()) }
	if err := backoff.Retry(ping, utils.NewExponentialBackoff()); err != nil {
		return nil, fmt.Errorf("failed to reach ClickHouse: %w", err)
	}

	s := &ClickHouseStore{conn: conn}
	if err := s.createTable(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *ClickHouseStore) createTable() error {
	return s.conn.Exec(context.Background(), createTableSQL)
}

func (s *ClickHouseStore) Put(ctx context.Context, rec models.Record) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO watch_records")
	if err != nil {
		return err
	}

	row := toRow(rec)
	if err := batch.AppendStruct(&row); err != nil {
		return err
	}

	return batch.Send()
}

func (s *ClickHouseStore) Get(ctx context.Context, typ models.RecordType, ticker string) (models.Record, bool, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT record_type, ticker, display_name, price, observed_at, delta, computed_at, updated_at
		FROM watch_records FINAL
		WHERE record_type = ? AND ticker = ?
		LIMIT 1`, string(typ), ticker)
	if err != nil {
		return models.Record{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return models.Record{}, false, rows.Err()
	}

	var row watchRow
	if err := rows.ScanStruct(&row); err != nil {
		return models.Record{}, false, err
	}

	return fromRow(row), true, nil
}

func (s *ClickHouseStore) List(ctx context.Context, typ models.RecordType) ([]models.Record, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT record_type, ticker, display_name, price, observed_at, delta, computed_at, updated_at
		FROM watch_records FINAL
		WHERE record_type = ?
		ORDER BY ticker`, string(typ))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var row watchRow
		if err := rows.ScanStruct(&row); err != nil {
			return nil, err
		}
		out = append(out, fromRow(row))
	}

	return out, rows.Err()
}

// Ping reports whether the connection is healthy. Used by the /health
// endpoint.
func (s *ClickHouseStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

func toRow(rec models.Record) watchRow {
	return watchRow{
		RecordType:  string(rec.Type),
		Ticker:      rec.Ticker,
		DisplayName: rec.DisplayName,
		Price:       rec.Price,
		ObservedAt:  clampTime(rec.ObservedAt),
		Delta:       rec.Delta,
		ComputedAt:  clampTime(rec.ComputedAt),
		UpdatedAt:   time.Now().UTC(),
	}
}

func fromRow(row watchRow) models.Record {
	return models.Record{
		Type:        models.RecordType(row.RecordType),
		Ticker:      row.Ticker,
		DisplayName: row.DisplayName,
		Price:       row.Price,
		ObservedAt:  row.ObservedAt,
		Delta:       row.Delta,
		ComputedAt:  row.ComputedAt,
	}
}

// clampTime keeps zero times inside the DateTime64 range.
func clampTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}
