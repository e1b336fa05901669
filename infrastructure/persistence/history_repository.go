package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"my-history/domain/dto"
	"my-history/domain/model"
	"my-history/infrastructure/logger"
)

// EnsureHistorySchema creates the watch_history table if not exists.
// (id, platform) is the composite primary key.
func EnsureHistorySchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS watch_history (
        id TEXT NOT NULL,
        platform TEXT NOT NULL,
        business TEXT NOT NULL DEFAULT '',
        external_ref TEXT NOT NULL DEFAULT '',
        content_ref BIGINT NOT NULL DEFAULT 0,
        title TEXT NOT NULL DEFAULT '',
        category_tag TEXT NOT NULL DEFAULT '',
        cover_url TEXT NOT NULL DEFAULT '',
        view_time BIGINT NOT NULL DEFAULT 0,
        uri TEXT NOT NULL DEFAULT '',
        author_name TEXT NOT NULL DEFAULT '',
        author_id BIGINT NOT NULL DEFAULT 0,
        recorded_at BIGINT NOT NULL DEFAULT 0,
        PRIMARY KEY (id, platform)
    )`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create watch_history table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_watch_history_view_time ON watch_history(view_time DESC)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_watch_history_view_time")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_watch_history_platform ON watch_history(platform)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_watch_history_platform")
	}
	return nil
}

const historyColumns = `id, platform, business, external_ref, content_ref, title, category_tag, cover_url, view_time, uri, author_name, author_id, recorded_at`

// HistoryRepository implements repository.IHistory on PostgreSQL.
type HistoryRepository struct{ db *sql.DB }

func NewHistoryRepository(db *sql.DB) *HistoryRepository { return &HistoryRepository{db: db} }

func (r *HistoryRepository) Exists(ctx context.Context, id, platform string) (*model.HistoryKey, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, view_time FROM watch_history WHERE id=$1 AND platform=$2`, id, platform)
	key := &model.HistoryKey{}
	if err := row.Scan(&key.ID, &key.ViewTime); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

func (r *HistoryRepository) InsertIfAbsent(ctx context.Context, rec *model.HistoryRecord) (bool, error) {
	return insertIfAbsent(ctx, r.db, rec)
}

func (r *HistoryRepository) InsertOrUpdateViewTime(ctx context.Context, rec *model.HistoryRecord) (bool, bool, error) {
	return insertOrUpdateViewTime(ctx, r.db, rec)
}

// ApplyBatch applies one page of records in a single transaction so
// concurrent readers never observe a partially written page.
func (r *HistoryRepository) ApplyBatch(ctx context.Context, recs []model.HistoryRecord, updateViewTime bool) (int, int, error) {
	if len(recs) == 0 {
		return 0, 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var newCount, updateCount int
	for i := range recs {
		if updateViewTime {
			var inserted, updated bool
			inserted, updated, err = insertOrUpdateViewTime(ctx, tx, &recs[i])
			if err != nil {
				return 0, 0, err
			}
			if inserted {
				newCount++
			}
			if updated {
				updateCount++
			}
		} else {
			var inserted bool
			inserted, err = insertIfAbsent(ctx, tx, &recs[i])
			if err != nil {
				return 0, 0, err
			}
			if inserted {
				newCount++
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return newCount, updateCount, nil
}

func (r *HistoryRepository) Delete(ctx context.Context, id, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM watch_history WHERE id=$1 AND platform=$2`, id, platform)
	return err
}

func (r *HistoryRepository) List(ctx context.Context, req *dto.HistoryListRequest) ([]model.HistoryRecord, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if req.Platform != "" {
		where += fmt.Sprintf(" AND platform=$%d", idx)
		args = append(args, req.Platform)
		idx++
	}
	if req.Business != "" {
		where += fmt.Sprintf(" AND business=$%d", idx)
		args = append(args, req.Business)
		idx++
	}
	if req.Keyword != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR author_name ILIKE $%d)", idx, idx)
		args = append(args, "%"+req.Keyword+"%")
		idx++
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM watch_history `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM watch_history %s ORDER BY view_time DESC LIMIT $%d OFFSET $%d`, historyColumns, where, idx, idx+1)
	args = append(args, pageSize, (page-1)*pageSize)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.HistoryRecord, 0, pageSize)
	for rows.Next() {
		var rec model.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.Platform, &rec.Business, &rec.ExternalRef, &rec.ContentRef, &rec.Title, &rec.CategoryTag, &rec.CoverURL, &rec.ViewTime, &rec.URI, &rec.AuthorName, &rec.AuthorID, &rec.RecordedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// execer lets the single-record helpers run against both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertIfAbsent(ctx context.Context, db execer, rec *model.HistoryRecord) (bool, error) {
	if rec.RecordedAt == 0 {
		rec.RecordedAt = time.Now().UnixMilli()
	}
	q := `INSERT INTO watch_history (` + historyColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		  ON CONFLICT (id, platform) DO NOTHING`
	res, err := db.ExecContext(ctx, q, rec.ID, rec.Platform, rec.Business, rec.ExternalRef, rec.ContentRef, rec.Title, rec.CategoryTag, rec.CoverURL, rec.ViewTime, rec.URI, rec.AuthorName, rec.AuthorID, rec.RecordedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertOrUpdateViewTime(ctx context.Context, db execer, rec *model.HistoryRecord) (bool, bool, error) {
	row := db.QueryRowContext(ctx, `SELECT view_time FROM watch_history WHERE id=$1 AND platform=$2`, rec.ID, rec.Platform)
	var stored int64
	err := row.Scan(&stored)
	if err == sql.ErrNoRows {
		inserted, insErr := insertIfAbsent(ctx, db, rec)
		return inserted, false, insErr
	}
	if err != nil {
		return false, false, err
	}
	if stored == rec.ViewTime {
		return false, false, nil
	}
	_, err = db.ExecContext(ctx, `UPDATE watch_history SET view_time=$1, recorded_at=$2 WHERE id=$3 AND platform=$4`,
		rec.ViewTime, time.Now().UnixMilli(), rec.ID, rec.Platform)
	if err != nil {
		return false, false, err
	}
	return false, true, nil
}
