// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec,
// for local development and offline use without a hosted index.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
)

// SQLiteVecDriver implements vector.Index using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db         *sql.DB
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions int
}

// NewSQLiteVecDriver creates a new SQLite vector index backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so string record ids map
	// through this table. The (namespace, record_id) pair is the logical key.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace TEXT NOT NULL DEFAULT '',
			record_id TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE(namespace, record_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Int("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &SQLiteVecDriver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Upsert stores records in the namespace. A record with an existing
// (namespace, id) pair replaces the stored one.
func (d *SQLiteVecDriver) Upsert(ctx context.Context, namespace string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if len(rec.Values) != d.dimensions {
			return fmt.Errorf("%w: record %s has %d values, index expects %d",
				vector.ErrDimensionMismatch, rec.ID, len(rec.Values), d.dimensions)
		}

		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %s: %w", rec.ID, err)
		}
		embBlob := serializeFloat32(rec.Values)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_records WHERE namespace = ? AND record_id = ?`,
			namespace, rec.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_records SET metadata = ? WHERE rowid = ?`,
				string(metaJSON), existingRowID,
			); err != nil {
				return fmt.Errorf("updating record %s: %w", rec.ID, err)
			}

			// vec0 does not support UPDATE, so replace via DELETE + INSERT
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for record %s: %w", rec.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for record %s: %w", rec.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_records(namespace, record_id, metadata) VALUES (?, ?, ?)`,
				namespace, rec.ID, string(metaJSON),
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", rec.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for record %s: %w", rec.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for record %s: %w", rec.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted records to sqlite-vec",
		zap.Int("count", len(records)),
		zap.String("namespace", namespace),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding within the
// namespace.
func (d *SQLiteVecDriver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob := serializeFloat32(embedding)

	// KNN via vec0 MATCH, then JOIN back for record id and metadata. The
	// namespace filter runs after KNN, so over-fetch to keep topK hits
	// available once other namespaces are filtered out.
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			r.record_id,
			r.metadata,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_records r ON r.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			AND r.namespace = ?
		ORDER BY ve.distance
	`, queryBlob, topK*4, namespace)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var recordID, metaJSON string
		var distance float64
		if err := rows.Scan(&recordID, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for record %s: %w", recordID, err)
		}

		matches = append(matches, vector.Match{
			ID:       recordID,
			Metadata: metadata,
			// Convert distance to similarity: lower distance = higher score
			Score: 1.0 / (1.0 + distance),
		})
		if len(matches) == topK {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec",
		zap.Int("matches", len(matches)),
		zap.String("namespace", namespace),
	)

	return matches, nil
}

// Fetch retrieves records by their IDs. Missing IDs are omitted.
func (d *SQLiteVecDriver) Fetch(ctx context.Context, namespace string, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := []any{namespace}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT r.record_id, r.metadata, r.rowid
		FROM vec_records r
		WHERE r.namespace = ? AND r.record_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	// Collect rows first so the cursor is closed before issuing the
	// embedding lookups (SQLite uses a single connection).
	type recordRow struct {
		recordID string
		metaJSON string
		rowID    int64
	}
	byID := make(map[string]recordRow, len(ids))

	for rows.Next() {
		var rr recordRow
		if err := rows.Scan(&rr.recordID, &rr.metaJSON, &rr.rowID); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		byID[rr.recordID] = rr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	rows.Close()

	// Preserve the requested order for the ids that were found.
	records := make([]vector.Record, 0, len(byID))
	for _, id := range ids {
		rr, ok := byID[id]
		if !ok {
			continue
		}

		rec := vector.Record{ID: rr.recordID}
		if err := json.Unmarshal([]byte(rr.metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for record %s: %w", rr.recordID, err)
		}

		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, rr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			rec.Values, _ = deserializeFloat32(embBlob)
		}

		records = append(records, rec)
	}

	return records, nil
}

// Stats reports the index dimension and per-namespace vector counts.
func (d *SQLiteVecDriver) Stats(ctx context.Context) (*vector.Stats, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT namespace, COUNT(*) FROM vec_records GROUP BY namespace`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer rows.Close()

	namespaces := make(map[string]int)
	total := 0
	for rows.Next() {
		var namespace string
		var count int
		if err := rows.Scan(&namespace, &count); err != nil {
			return nil, fmt.Errorf("scanning namespace count: %w", err)
		}
		namespaces[namespace] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating namespace counts: %w", err)
	}

	return &vector.Stats{
		Dimension:        d.dimensions,
		TotalVectorCount: total,
		Namespaces:       namespaces,
		Metric:           "cosine",
	}, nil
}

// DeleteAll removes every record in the namespace.
func (d *SQLiteVecDriver) DeleteAll(ctx context.Context, namespace string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid FROM vec_records WHERE namespace = ?`, namespace,
	)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM vec_records WHERE namespace = ?`, namespace,
	); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("cleared sqlite-vec namespace",
		zap.String("namespace", namespace),
		zap.Int("count", len(rowIDs)),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

var _ vector.Index = (*SQLiteVecDriver)(nil)
