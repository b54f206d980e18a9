// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luxfi/samizdat/pkg/ids"
)

const schema = `
CREATE TABLE IF NOT EXISTS samizdat_records (
	kind TEXT  NOT NULL,
	id   BYTEA NOT NULL,
	body BYTEA NOT NULL,
	PRIMARY KEY (kind, id)
)`

// PostgresStore keeps records in one table. Update runs SERIALIZABLE and
// locks every row it reads, so overlapping settlements queue on the rows
// they share.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Ready pings the database.
func (s *PostgresStore) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (s *PostgresStore) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func (s *PostgresStore) run(ctx context.Context, opts pgx.TxOptions, fn func(Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	writable := opts.AccessMode != pgx.ReadOnly
	if err := fn(recordTx{raw: &pgTx{ctx: ctx, tx: tx, writable: writable}}); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgTx struct {
	ctx      context.Context
	tx       pgx.Tx
	writable bool
}

func (t *pgTx) get(bucket string, id ids.ID) ([]byte, error) {
	q := "SELECT body FROM samizdat_records WHERE kind = $1 AND id = $2"
	if t.writable {
		q += " FOR UPDATE"
	}
	var body []byte
	err := t.tx.QueryRow(t.ctx, q, bucket, id[:]).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select %s: %w", bucket, err)
	}
	return body, nil
}

func (t *pgTx) put(bucket string, id ids.ID, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO samizdat_records (kind, id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, id) DO UPDATE SET body = EXCLUDED.body`,
		bucket, id[:], value)
	if err != nil {
		return fmt.Errorf("storage: upsert %s: %w", bucket, err)
	}
	return nil
}

func (t *pgTx) each(bucket string, fn func(ids.ID, []byte) error) error {
	rows, err := t.tx.Query(t.ctx, "SELECT id, body FROM samizdat_records WHERE kind = $1 ORDER BY id", bucket)
	if err != nil {
		return fmt.Errorf("storage: scan %s: %w", bucket, err)
	}
	type row struct {
		id   ids.ID
		body []byte
	}
	// drain first: the connection cannot serve fn's queries while rows is open
	var all []row
	for rows.Next() {
		var raw, body []byte
		if err := rows.Scan(&raw, &body); err != nil {
			rows.Close()
			return err
		}
		id, err := ids.FromBytes(raw)
		if err != nil {
			continue
		}
		all = append(all, row{id: id, body: body})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range all {
		if err := fn(r.id, r.body); err != nil {
			return err
		}
	}
	return nil
}
