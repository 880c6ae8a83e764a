package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/owt-mfg/erpsync/internal/data/pgxutil"
	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// ErrRecordNotFound is returned when a raw record is not found.
var ErrRecordNotFound = errors.New("raw record not found")

// RawRepoConfig holds configuration options for the raw record repository.
type RawRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// RawRepo provides database operations for the raw landing table. It is the
// single writer for raw_records; every upstream payload passes through Ingest.
type RawRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewRawRepo creates a new RawRepo instance with the given database connection and configuration.
func NewRawRepo(db *sql.DB, cfg RawRepoConfig) *RawRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &RawRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const rawRecordColumns = `
  id,
  external_key,
  payload,
  payload_hash,
  fetched_at,
  created_at,
  updated_at
`

// IngestParams groups the inputs to Ingest.
type IngestParams struct {
	ExternalKey string
	Payload     json.RawMessage
	PayloadHash string
}

// Ingest lands one upstream payload idempotently, keyed by external_key.
//
//   - key unseen: insert, changed=true
//   - key seen, same hash: touch fetched_at only, changed=false
//   - key seen, different hash: replace payload and hash, changed=true
//
// The existing row is locked FOR UPDATE so concurrent ingests of the same key
// serialize instead of clobbering each other.
func (r *RawRepo) Ingest(ctx context.Context, p IngestParams) (*model.IngestResult, error) {
	if p.ExternalKey == "" {
		return nil, errors.New("external key is required")
	}
	if len(p.Payload) == 0 {
		return nil, errors.New("payload is required")
	}
	if p.PayloadHash == "" {
		return nil, errors.New("payload hash is required")
	}

	var result *model.IngestResult
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var ingestErr error
			result, ingestErr = r.ingestInTx(ctx, tx, p)
			return ingestErr
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RawRepo) ingestInTx(ctx context.Context, tx pgx.Tx, p IngestParams) (*model.IngestResult, error) {
	now := r.timeProvider.Now().UTC()

	var id, existingHash string
	err := tx.QueryRow(ctx, `
		SELECT id, payload_hash
		FROM raw_records
		WHERE external_key = $1
		FOR UPDATE
	`, p.ExternalKey).Scan(&id, &existingHash)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return r.insertRecordInTx(ctx, tx, p, now)
	case err != nil:
		return nil, fmt.Errorf("lock raw record: %w", err)
	}

	if existingHash == p.PayloadHash {
		if _, touchErr := tx.Exec(ctx, `
			UPDATE raw_records
			SET fetched_at = $2
			WHERE id = $1
		`, id, now); touchErr != nil {
			return nil, fmt.Errorf("touch raw record: %w", touchErr)
		}
		return &model.IngestResult{RecordID: id, Changed: false}, nil
	}

	if _, updateErr := tx.Exec(ctx, `
		UPDATE raw_records
		SET payload = $2,
		    payload_hash = $3,
		    fetched_at = $4,
		    updated_at = $4
		WHERE id = $1
	`, id, []byte(p.Payload), p.PayloadHash, now); updateErr != nil {
		return nil, fmt.Errorf("update raw record: %w", updateErr)
	}
	return &model.IngestResult{RecordID: id, Changed: true}, nil
}

func (r *RawRepo) insertRecordInTx(ctx context.Context, tx pgx.Tx, p IngestParams, now time.Time) (*model.IngestResult, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO raw_records (external_key, payload, payload_hash, fetched_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, $4)
		ON CONFLICT (external_key) DO NOTHING
		RETURNING id
	`, p.ExternalKey, []byte(p.Payload), p.PayloadHash, now).Scan(&id)
	if err == nil {
		return &model.IngestResult{RecordID: id, Changed: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert raw record: %w", err)
	}

	// Another transaction inserted the key between our lock probe and the
	// insert. Lock the winner's row and apply the regular update path.
	var existingHash string
	if lockErr := tx.QueryRow(ctx, `
		SELECT id, payload_hash
		FROM raw_records
		WHERE external_key = $1
		FOR UPDATE
	`, p.ExternalKey).Scan(&id, &existingHash); lockErr != nil {
		return nil, fmt.Errorf("lock raw record after insert race: %w", lockErr)
	}

	if existingHash == p.PayloadHash {
		if _, touchErr := tx.Exec(ctx, `
			UPDATE raw_records
			SET fetched_at = $2
			WHERE id = $1
		`, id, now); touchErr != nil {
			return nil, fmt.Errorf("touch raw record: %w", touchErr)
		}
		return &model.IngestResult{RecordID: id, Changed: false}, nil
	}

	if _, updateErr := tx.Exec(ctx, `
		UPDATE raw_records
		SET payload = $2,
		    payload_hash = $3,
		    fetched_at = $4,
		    updated_at = $4
		WHERE id = $1
	`, id, []byte(p.Payload), p.PayloadHash, now); updateErr != nil {
		return nil, fmt.Errorf("update raw record: %w", updateErr)
	}
	return &model.IngestResult{RecordID: id, Changed: true}, nil
}

// GetByKey retrieves a raw record by its external key.
func (r *RawRepo) GetByKey(ctx context.Context, externalKey string) (*model.RawRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+rawRecordColumns+`
		FROM raw_records
		WHERE external_key = $1
	`, externalKey)

	rec, err := scanRawRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw record: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a raw record by its ID.
func (r *RawRepo) GetByID(ctx context.Context, id string) (*model.RawRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+rawRecordColumns+`
		FROM raw_records
		WHERE id = $1
	`, id)

	rec, err := scanRawRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw record: %w", err)
	}
	return rec, nil
}

type rawRecordScanner interface {
	Scan(dest ...any) error
}

func scanRawRecord(scanner rawRecordScanner) (*model.RawRecord, error) {
	rec := &model.RawRecord{}
	var payload []byte
	if err := scanner.Scan(
		&rec.ID,
		&rec.ExternalKey,
		&payload,
		&rec.PayloadHash,
		&rec.FetchedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Payload = append(json.RawMessage(nil), payload...)
	return rec, nil
}
