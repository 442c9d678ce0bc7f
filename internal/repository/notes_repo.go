package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/services"
)

// NotesRepo is the shared notes cache, keyed by (video_id, playlist_id).
type NotesRepo struct {
	pool *pgxpool.Pool
}

func NewNotesRepo(pool *pgxpool.Pool) *NotesRepo {
	return &NotesRepo{pool: pool}
}

const notesColumns = `video_id, playlist_id, COALESCE(generated_by, ''), topic, source,
	key_takeaways, concepts, must_remember, formula_or_logic, summary, created_at`

func scanNotes(row pgx.Row) (models.NotesRecord, error) {
	var n models.NotesRecord
	var takeaways, concepts, remember, formula []byte
	err := row.Scan(&n.VideoID, &n.PlaylistID, &n.UserID, &n.Topic, &n.Source,
		&takeaways, &concepts, &remember, &formula, &n.Summary, &n.CreatedAt)
	if err != nil {
		return models.NotesRecord{}, err
	}
	if err := unmarshalIfSet(takeaways, &n.KeyTakeaways); err != nil {
		return models.NotesRecord{}, fmt.Errorf("decode key_takeaways: %w", err)
	}
	if err := unmarshalIfSet(concepts, &n.Concepts); err != nil {
		return models.NotesRecord{}, fmt.Errorf("decode concepts: %w", err)
	}
	if err := unmarshalIfSet(remember, &n.MustRemember); err != nil {
		return models.NotesRecord{}, fmt.Errorf("decode must_remember: %w", err)
	}
	if len(formula) > 0 && string(formula) != "null" {
		n.FormulaOrLogic = &models.FormulaOrLogic{}
		if err := unmarshalIfSet(formula, n.FormulaOrLogic); err != nil {
			return models.NotesRecord{}, fmt.Errorf("decode formula_or_logic: %w", err)
		}
	}
	return n, nil
}

func (r *NotesRepo) Get(ctx context.Context, key services.CacheKey) (models.NotesRecord, bool, error) {
	query := `SELECT ` + notesColumns + ` FROM cached_video_notes WHERE video_id = $1 AND playlist_id = $2`
	n, err := scanNotes(r.pool.QueryRow(ctx, query, key.VideoID, key.PlaylistID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NotesRecord{}, false, nil
	}
	if err != nil {
		return models.NotesRecord{}, false, fmt.Errorf("get notes: %w", err)
	}
	return n, true, nil
}

// Put replaces every column of the row, including created_at and generated_by.
func (r *NotesRepo) Put(ctx context.Context, key services.CacheKey, n models.NotesRecord) error {
	var generatedBy *string
	if n.UserID != "" {
		generatedBy = &n.UserID
	}

	query := `INSERT INTO cached_video_notes
		(video_id, playlist_id, generated_by, topic, source, key_takeaways, concepts, must_remember, formula_or_logic, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (video_id, playlist_id) DO UPDATE SET
			generated_by = EXCLUDED.generated_by,
			topic = EXCLUDED.topic,
			source = EXCLUDED.source,
			key_takeaways = EXCLUDED.key_takeaways,
			concepts = EXCLUDED.concepts,
			must_remember = EXCLUDED.must_remember,
			formula_or_logic = EXCLUDED.formula_or_logic,
			summary = EXCLUDED.summary,
			created_at = EXCLUDED.created_at`

	_, err := r.pool.Exec(ctx, query,
		key.VideoID, key.PlaylistID, generatedBy, n.Topic, n.Source,
		jsonArray(n.KeyTakeaways), jsonArray(n.Concepts), jsonArray(n.MustRemember), jsonNullable(n.FormulaOrLogic),
		n.Summary, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put notes: %w", err)
	}
	return nil
}

func (r *NotesRepo) ListByPlaylist(ctx context.Context, playlistID string) ([]models.NotesRecord, error) {
	query := `SELECT ` + notesColumns + ` FROM cached_video_notes WHERE playlist_id = $1`
	rows, err := r.pool.Query(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []models.NotesRecord
	for rows.Next() {
		n, err := scanNotes(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notes: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
