package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"my-history/domain/dto"
	"my-history/domain/model"
)

func sampleRecord() *model.HistoryRecord {
	return &model.HistoryRecord{
		ID:          "av100",
		Platform:    model.PlatformBilibili,
		Business:    "archive",
		ExternalRef: "BV1xx411c7mD",
		ContentRef:  200,
		Title:       "some video",
		CoverURL:    "https://cdn.example.com/cover.jpg",
		ViewTime:    1700000000,
		URI:         "https://www.bilibili.com/video/BV1xx411c7mD",
		AuthorName:  "uploader",
		AuthorID:    42,
		RecordedAt:  1700000000000,
	}
}

func TestHistoryRepository_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, view_time FROM watch_history WHERE id=$1 AND platform=$2`)).
		WithArgs("av100", model.PlatformBilibili).
		WillReturnRows(sqlmock.NewRows([]string{"id", "view_time"}).AddRow("av100", int64(1700000000)))

	key, err := repo.Exists(context.Background(), "av100", model.PlatformBilibili)
	require.NoError(t, err)
	require.NotNil(t, key)
	require.Equal(t, "av100", key.ID)
	require.EqualValues(t, 1700000000, key.ViewTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_ExistsMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, view_time FROM watch_history`)).
		WithArgs("missing", model.PlatformPodcast).
		WillReturnRows(sqlmock.NewRows([]string{"id", "view_time"}))

	key, err := repo.Exists(context.Background(), "missing", model.PlatformPodcast)
	require.NoError(t, err)
	require.Nil(t, key)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_InsertIfAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)
	rec := sampleRecord()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)

	// Conflict: ON CONFLICT DO NOTHING reports zero rows affected.
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.InsertIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_InsertOrUpdateViewTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)
	rec := sampleRecord()

	// Absent: falls through to insert.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT view_time FROM watch_history`)).
		WillReturnRows(sqlmock.NewRows([]string{"view_time"}))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, updated, err := repo.InsertOrUpdateViewTime(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, inserted)
	require.False(t, updated)

	// Present with identical view time: no-op.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT view_time FROM watch_history`)).
		WillReturnRows(sqlmock.NewRows([]string{"view_time"}).AddRow(rec.ViewTime))

	inserted, updated, err = repo.InsertOrUpdateViewTime(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, inserted)
	require.False(t, updated)

	// Present with older view time: view_time and recorded_at move forward.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT view_time FROM watch_history`)).
		WillReturnRows(sqlmock.NewRows([]string{"view_time"}).AddRow(rec.ViewTime - 3600))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE watch_history SET view_time=$1, recorded_at=$2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, updated, err = repo.InsertOrUpdateViewTime(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, inserted)
	require.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_ApplyBatchAtomic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)
	recs := []model.HistoryRecord{*sampleRecord(), *sampleRecord()}
	recs[1].ID = "av101"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	newCount, updateCount, err := repo.ApplyBatch(context.Background(), recs, false)
	require.NoError(t, err)
	require.Equal(t, 1, newCount)
	require.Equal(t, 0, updateCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_ApplyBatchRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)
	recs := []model.HistoryRecord{*sampleRecord()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO watch_history`)).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, _, err = repo.ApplyBatch(context.Background(), recs, false)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM watch_history WHERE 1=1 AND platform=$1 AND (title ILIKE $2 OR author_name ILIKE $2)`)).
		WithArgs(model.PlatformBilibili, "%cat%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "platform", "business", "external_ref", "content_ref", "title", "category_tag", "cover_url", "view_time", "uri", "author_name", "author_id", "recorded_at"}).
		AddRow("av100", model.PlatformBilibili, "archive", "BV1", int64(0), "cat video", "", "", int64(1700000000), "", "someone", int64(1), int64(0))
	mock.ExpectQuery(`SELECT id, platform, .+ FROM watch_history WHERE 1=1 AND platform=\$1.+ORDER BY view_time DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(model.PlatformBilibili, "%cat%", 20, 0).
		WillReturnRows(rows)

	items, total, err := repo.List(context.Background(), &dto.HistoryListRequest{Platform: model.PlatformBilibili, Keyword: "cat"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, "cat video", items[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}
