package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paperai/api/internal/paper"
)

var ErrNotFound = errors.New("generation not found")

// Record is one admitted generation, successful or not.
type Record struct {
	ID         uuid.UUID            `json:"id"`
	CreatedAt  time.Time            `json:"createdAt"`
	ClientKey  string               `json:"-"`
	Engine     string               `json:"engine"`
	Model      string               `json:"model"`
	Config     paper.PaperConfig    `json:"config"`
	FileCount  int                  `json:"fileCount"`
	SourceHash string               `json:"sourceHash"`
	Kind       paper.ErrorKind      `json:"kind,omitempty"`
	Message    string               `json:"message,omitempty"`
	Paper      *paper.QuestionPaper `json:"paper,omitempty"`
	LatencyMs  int64                `json:"latencyMs"`
}

// SourceHash fingerprints the uploaded files, in order.
func SourceHash(files []paper.SourceFile) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.MimeType))
		h.Write([]byte{0})
		h.Write(f.Payload)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type GenerationRepo struct{ DB *pgxpool.Pool }

func NewGenerationRepo(db *pgxpool.Pool) *GenerationRepo { return &GenerationRepo{DB: db} }

const ddl = `
create table if not exists generations (
  id           uuid primary key,
  created_at   timestamptz not null default now(),
  client_key   text not null,
  engine       text not null,
  model        text not null,
  config_json  jsonb not null,
  file_count   int not null,
  source_hash  text not null,
  error_kind   text not null default '',
  error_msg    text not null default '',
  paper_json   jsonb,
  latency_ms   bigint not null
);
create index if not exists generations_created_at_idx on generations (created_at desc);`

func (r *GenerationRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, ddl)
	return err
}

// Insert stores rec, assigning ID and CreatedAt when unset.
func (r *GenerationRepo) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var pj []byte
	if rec.Paper != nil {
		if pj, err = json.Marshal(rec.Paper); err != nil {
			return fmt.Errorf("marshal paper: %w", err)
		}
	}
	const q = `
insert into generations (
  id, created_at, client_key, engine, model, config_json,
  file_count, source_hash, error_kind, error_msg, paper_json, latency_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.DB.Exec(ctx, q,
		rec.ID, rec.CreatedAt, rec.ClientKey, rec.Engine, rec.Model, cfg,
		rec.FileCount, rec.SourceHash, string(rec.Kind), rec.Message, pj, rec.LatencyMs,
	)
	return err
}

const selectCols = `id, created_at, client_key, engine, model, config_json,
  file_count, source_hash, error_kind, error_msg, paper_json, latency_ms`

func (r *GenerationRepo) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.DB.QueryRow(ctx, `select `+selectCols+` from generations where id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Recent returns the newest records first.
func (r *GenerationRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `select `+selectCols+` from generations order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *GenerationRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	tag, err := r.DB.Exec(ctx, `delete from generations where created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		cfg, pj []byte
		kind    string
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.ClientKey, &rec.Engine, &rec.Model, &cfg,
		&rec.FileCount, &rec.SourceHash, &kind, &rec.Message, &pj, &rec.LatencyMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &rec.Config); err != nil {
		return nil, fmt.Errorf("decode config_json: %w", err)
	}
	if len(pj) > 0 {
		var p paper.QuestionPaper
		if err := json.Unmarshal(pj, &p); err != nil {
			return nil, fmt.Errorf("decode paper_json: %w", err)
		}
		rec.Paper = &p
	}
	rec.Kind = paper.ErrorKind(kind)
	return &rec, nil
}
