package ollamavision

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// DB records batch runs and their per-image captions so previous runs can be
// inspected after the fact.
type DB struct {
	mu sync.Mutex
	db *sql.DB

	filepath string
}

type Batch struct {
	Id         int
	Folder     string
	Backend    string
	Model      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Succeeded  int
	Failed     int
	Cancelled  bool
}

type Caption struct {
	Id        int
	BatchId   int
	Path      string
	Caption   string
	Error     string
	CreatedAt time.Time
}

func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.db.Close()
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	if err := sqldb.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		return nil, err
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

// CreateBatch inserts a new batches row and returns its id.
func (db *DB) CreateBatch(ctx context.Context, folder, backend, model string, at time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx,
		"INSERT INTO batches (folder, backend, model, started_at) VALUES (?,?,?,?)",
		folder, backend, model, at)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishBatch records the final tally for a batches row.
func (db *DB) FinishBatch(ctx context.Context, id int64, run *BatchRun) error {
	_, err := db.db.ExecContext(ctx,
		"UPDATE batches SET finished_at=$1,succeeded=$2,failed=$3,cancelled=$4 WHERE id=$5",
		run.FinishedAt,
		run.Succeeded,
		run.Failed,
		run.Cancelled,
		id)
	return err
}

// InsertCaptions writes per-image results for a batch, batchSize rows per
// INSERT, all inside one transaction.
func (db *DB) InsertCaptions(ctx context.Context, batchId int64, results []ItemResult, batchSize int) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	txn, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	now := time.Now()
	start := 0
	affected := 0
	for start < len(results) {
		end := start + batchSize
		if end > len(results) {
			end = len(results)
		}

		qsb := strings.Builder{}
		qsb.WriteString("INSERT INTO captions (batch_id, image_path, caption, error, created_at) VALUES")
		values := make([]any, 0, batchSize*5)
		for idx, res := range results[start:end] {
			base := idx * 5
			qsb.WriteString(" ($")
			qsb.WriteString(strconv.Itoa(base + 1))
			for i := 2; i <= 5; i++ {
				qsb.WriteString(",$")
				qsb.WriteString(strconv.Itoa(base + i))
			}
			qsb.WriteString("),")

			var errText string
			if res.Err != nil {
				errText = res.Err.Error()
			}
			values = append(values, batchId, res.Path, res.Caption, errText, now)
		}
		queryString := qsb.String()

		// Remove trailing comma
		queryString = queryString[0 : len(queryString)-1]

		res, err := txn.ExecContext(ctx, queryString, values...)
		if err != nil {
			return 0, err
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		affected += int(ra)
		start = end
	}

	return affected, txn.Commit()
}

// RecordRun stores a finished BatchRun and its results in one call.
func (db *DB) RecordRun(ctx context.Context, backend, model string, run *BatchRun) error {
	id, err := db.CreateBatch(ctx, run.Folder, backend, model, run.StartedAt)
	if err != nil {
		return err
	}
	if _, err := db.InsertCaptions(ctx, id, run.Results, 100); err != nil {
		return err
	}
	return db.FinishBatch(ctx, id, run)
}

// RecentBatches returns the most recent batch runs, newest first.
func (db *DB) RecentBatches(ctx context.Context, limit int) ([]*Batch, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, folder, backend, model, started_at, finished_at,
			   succeeded, failed, cancelled
		FROM batches
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b := &Batch{}
		err := rows.Scan(
			&b.Id,
			&b.Folder,
			&b.Backend,
			&b.Model,
			&b.StartedAt,
			&b.FinishedAt,
			&b.Succeeded,
			&b.Failed,
			&b.Cancelled,
		)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return batches, nil
}

// BatchCaptions returns all caption rows recorded for a batch, ordered by
// image path.
func (db *DB) BatchCaptions(ctx context.Context, batchId int) ([]*Caption, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, batch_id, image_path, caption, error, created_at
		FROM captions
		WHERE batch_id=?
		ORDER BY image_path`, batchId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captions []*Caption
	for rows.Next() {
		c := &Caption{}

		var caption, errText sql.NullString
		err := rows.Scan(&c.Id, &c.BatchId, &c.Path, &caption, &errText, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning captions: %w", err)
		}
		if caption.Valid {
			c.Caption = caption.String
		}
		if errText.Valid {
			c.Error = errText.String
		}
		captions = append(captions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating captions: %w", err)
	}

	return captions, nil
}
