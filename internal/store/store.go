// Package store persists chapter results in SQLite so a chapter can be
// fetched and single pages retried after the run that produced it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// ErrNotFound is returned for unknown chapters and pages.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed chapter store.
type Store struct {
	db *sql.DB
}

// Chapter is a stored chapter result plus what is needed to re-run a page.
type Chapter struct {
	Result    *pipeline.ChapterResult
	Options   engine.Options
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChapterID returns a fresh chapter id.
func NewChapterID() string {
	return uuid.New().String()
}

// Open opens or creates the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		cancelled BOOLEAN DEFAULT FALSE,
		source_lang TEXT,
		target_lang TEXT,
		elapsed_ms INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pages (
		chapter_id TEXT NOT NULL,
		page_num INTEGER NOT NULL,
		status TEXT NOT NULL,
		failure_stage TEXT,
		error TEXT,
		code TEXT,
		pipeline_mode TEXT,
		degraded BOOLEAN DEFAULT FALSE,
		fallback_reason TEXT,
		no_visible_change BOOLEAN DEFAULT FALSE,
		regions_count INTEGER,
		translator TEXT,
		model TEXT,
		elapsed_ms INTEGER,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (chapter_id, page_num),
		FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(chapter_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveChapter writes res and all its pages, replacing any earlier copy.
func (s *Store) SaveChapter(ctx context.Context, res *pipeline.ChapterResult, opts engine.Options) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chapters (id, status, total, success_count, failed_count, cancelled,
			source_lang, target_lang, elapsed_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total = excluded.total,
			success_count = excluded.success_count,
			failed_count = excluded.failed_count,
			cancelled = excluded.cancelled,
			source_lang = excluded.source_lang,
			target_lang = excluded.target_lang,
			elapsed_ms = excluded.elapsed_ms,
			updated_at = excluded.updated_at`,
		res.ChapterID, string(res.Status), res.Total, res.SuccessCount, res.FailedCount, res.Cancelled,
		opts.SourceLang, opts.TargetLang, res.Elapsed.Milliseconds(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save chapter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE chapter_id = ?`, res.ChapterID); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}
	for _, p := range res.Pages {
		if err := upsertPage(ctx, tx, res.ChapterID, p, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChapter loads a chapter and its pages in page order.
func (s *Store) GetChapter(ctx context.Context, chapterID string) (*Chapter, error) {
	ch := &Chapter{Result: &pipeline.ChapterResult{ChapterID: chapterID}}
	var (
		status          string
		elapsedMS       int64
		sourceLang, tgt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, total, success_count, failed_count, cancelled,
			source_lang, target_lang, elapsed_ms, created_at, updated_at
		FROM chapters WHERE id = ?`, chapterID).Scan(
		&status, &ch.Result.Total, &ch.Result.SuccessCount, &ch.Result.FailedCount, &ch.Result.Cancelled,
		&sourceLang, &tgt, &elapsedMS, &ch.CreatedAt, &ch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chapter: %w", err)
	}
	ch.Result.Status = pipeline.ChapterStatus(status)
	ch.Result.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	ch.Options = engine.Options{SourceLang: sourceLang.String, TargetLang: tgt.String}

	pages, err := s.pages(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	ch.Result.Pages = pages
	return ch, nil
}

// UpdatePage replaces one page outcome, re-derives the chapter counts and
// status from the stored pages, and returns the updated result.
func (s *Store) UpdatePage(ctx context.Context, chapterID string, out *pipeline.PageOutcome) (*pipeline.ChapterResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE chapter_id = ? AND page_num = ?`, chapterID, out.Page).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up page: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("chapter %s page %d: %w", chapterID, out.Page, ErrNotFound)
	}

	now := time.Now().UTC()
	if err := upsertPage(ctx, tx, chapterID, out, now); err != nil {
		return nil, err
	}

	var total, success int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM pages WHERE chapter_id = ?`,
		string(pipeline.StatusSuccess), string(pipeline.StatusFallbackSuccess), chapterID).Scan(&total, &success)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	failed := total - success
	_, err = tx.ExecContext(ctx, `
		UPDATE chapters SET status = ?, total = ?, success_count = ?, failed_count = ?, updated_at = ?
		WHERE id = ?`,
		string(pipeline.DeriveStatus(success, failed)), total, success, failed, now, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to update chapter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	ch, err := s.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	return ch.Result, nil
}

// DeleteChapter removes a chapter and its pages.
func (s *Store) DeleteChapter(ctx context.Context, chapterID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE chapter_id = ?`, chapterID); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, chapterID)
	if err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	return tx.Commit()
}

// ListChapters returns chapter summaries, newest first, without pages.
func (s *Store) ListChapters(ctx context.Context, limit int) ([]*pipeline.ChapterResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, total, success_count, failed_count, cancelled, elapsed_ms
		FROM chapters ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var out []*pipeline.ChapterResult
	for rows.Next() {
		r := &pipeline.ChapterResult{}
		var status string
		var elapsedMS int64
		if err := rows.Scan(&r.ChapterID, &status, &r.Total, &r.SuccessCount, &r.FailedCount, &r.Cancelled, &elapsedMS); err != nil {
			return nil, err
		}
		r.Status = pipeline.ChapterStatus(status)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) pages(ctx context.Context, chapterID string) ([]*pipeline.PageOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_num, status, failure_stage, error, code, pipeline_mode, degraded, fallback_reason,
			no_visible_change, regions_count, translator, model, elapsed_ms
		FROM pages WHERE chapter_id = ? ORDER BY page_num`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	var pages []*pipeline.PageOutcome
	for rows.Next() {
		var (
			p                                                    pipeline.PageOutcome
			status                                               string
			stage, errMsg, code, mode, reason, translator, model sql.NullString
			regions, elapsedMS                                   sql.NullInt64
		)
		if err := rows.Scan(&p.Page, &status, &stage, &errMsg, &code, &mode, &p.Degraded, &reason,
			&p.NoVisibleChange, &regions, &translator, &model, &elapsedMS); err != nil {
			return nil, err
		}
		p.Status = pipeline.Status(status)
		p.FailureStage = pipeline.Stage(stage.String)
		p.Error = errMsg.String
		p.Code = rpc.Code(code.String)
		p.PipelineMode = rpc.PipelineMode(mode.String)
		p.FallbackReason = rpc.Code(reason.String)
		p.RegionsCount = int(regions.Int64)
		p.Translator = translator.String
		p.Model = model.String
		p.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

func upsertPage(ctx context.Context, tx *sql.Tx, chapterID string, p *pipeline.PageOutcome, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages (chapter_id, page_num, status, failure_stage, error, code, pipeline_mode,
			degraded, fallback_reason, no_visible_change, regions_count, translator, model, elapsed_ms, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chapterID, p.Page, string(p.Status), string(p.FailureStage), p.Error, string(p.Code), string(p.PipelineMode),
		p.Degraded, string(p.FallbackReason), p.NoVisibleChange, p.RegionsCount, p.Translator, p.Model,
		p.Elapsed.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("failed to save page %d: %w", p.Page, err)
	}
	return nil
}
