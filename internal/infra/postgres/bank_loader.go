package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"ecn-prep-service/internal/bank"
)

// BankLoader loads specialty files stored as JSONB rows of bank_files.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context) (bank.Data, error) {
	rows, err := l.pool.Query(ctx, `SELECT specialty, data FROM bank_files ORDER BY specialty`)
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	defer rows.Close()

	data := make(bank.Data)
	for rows.Next() {
		var specialty string
		var raw []byte
		if err := rows.Scan(&specialty, &raw); err != nil {
			return nil, err
		}
		var file bank.SpecialtyFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", specialty, err)
		}
		data[specialty] = file
	}
	return data, rows.Err()
}

// ImportBank upserts every specialty file, replacing existing content.
func (l *BankLoader) ImportBank(ctx context.Context, data bank.Data) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for specialty, file := range data {
		raw, err := json.Marshal(file)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", specialty, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO bank_files (specialty, data) VALUES ($1, $2)
			ON CONFLICT (specialty) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			specialty, raw)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", specialty, err)
		}
	}
	return tx.Commit(ctx)
}
