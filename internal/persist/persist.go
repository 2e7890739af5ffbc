// Package persist stores document collection snapshots in SQLite, so a
// corpus survives process restarts without re-embedding anything.
package persist

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	_ "modernc.org/sqlite"

	"github.com/corpusqa/corpusqa/internal/docs"
	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	key       TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	citation  TEXT NOT NULL,
	embedding BLOB
);
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	doc_key   TEXT NOT NULL,
	ordinal   INTEGER NOT NULL,
	name      TEXT NOT NULL,
	text      TEXT NOT NULL,
	embedding BLOB,
	FOREIGN KEY (doc_key) REFERENCES documents(key)
);
CREATE TABLE IF NOT EXISTS tombstones (
	key TEXT PRIMARY KEY
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_key ON chunks(doc_key);
`

// DB is a snapshot store backed by a SQLite file.
type DB struct {
	db *sql.DB
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	return &DB{db: db}, nil
}

// Save replaces the stored snapshot with snap in one transaction.
func (d *DB) Save(ctx context.Context, snap *docs.Snapshot) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chunks", "documents", "tombstones"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (key, name, citation, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	defer docStmt.Close()
	for _, doc := range snap.Documents {
		if _, err := docStmt.ExecContext(ctx, doc.Key, doc.Name, doc.Citation, encodeVector(doc.Embedding)); err != nil {
			return pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (id, doc_key, ordinal, name, text, embedding) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	defer chunkStmt.Close()
	for _, c := range snap.Chunks {
		if _, err := chunkStmt.ExecContext(ctx, c.ID, c.DocKey, c.Ordinal, c.Name, c.Text, encodeVector(c.Embedding)); err != nil {
			return pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
	}

	for _, key := range snap.Tombstones {
		if _, err := tx.ExecContext(ctx, "INSERT INTO tombstones (key) VALUES (?)", key); err != nil {
			return pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty
// snapshot, not an error.
func (d *DB) Load(ctx context.Context) (*docs.Snapshot, error) {
	snap := &docs.Snapshot{}

	rows, err := d.db.QueryContext(ctx, "SELECT key, name, citation, embedding FROM documents ORDER BY key")
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	for rows.Next() {
		var doc docs.Document
		var blob []byte
		if err := rows.Scan(&doc.Key, &doc.Name, &doc.Citation, &blob); err != nil {
			rows.Close()
			return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
		doc.Embedding = decodeVector(blob)
		snap.Documents = append(snap.Documents, &doc)
	}
	// Close does not surface iteration errors; a mid-scan failure would
	// otherwise truncate the snapshot silently.
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := rows.Close(); err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	rows, err = d.db.QueryContext(ctx,
		"SELECT id, doc_key, ordinal, name, text, embedding FROM chunks ORDER BY doc_key, ordinal")
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	for rows.Next() {
		var c docs.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocKey, &c.Ordinal, &c.Name, &c.Text, &blob); err != nil {
			rows.Close()
			return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
		c.Embedding = decodeVector(blob)
		snap.Chunks = append(snap.Chunks, &c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := rows.Close(); err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	rows, err = d.db.QueryContext(ctx, "SELECT key FROM tombstones ORDER BY key")
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
		}
		snap.Tombstones = append(snap.Tombstones, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := rows.Close(); err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	return snap, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 vector.
func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
