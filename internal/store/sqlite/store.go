// Package sqlite keeps a digest database in a SQLite file. Weights are
// stored as a posting table indexed by chunk so that ranking only touches
// the chunks a query actually contains.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"fbhash/internal/domain"
	"fbhash/internal/similarity"
	"fbhash/internal/store/sqlite/migrations"
)

// Storage is a SQLite-backed digest database.
type Storage struct {
	db     *sql.DB
	path   string
	ready  bool
	scheme domain.Scheme
	model  string
}

// NewStorage opens or creates the database file at path.
func NewStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Storage{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Storage) loadMeta() error {
	rows, err := s.db.Query("SELECT key, value FROM meta WHERE key IN ('scheme', 'model')")
	if err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}
	defer rows.Close()
	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("reading meta: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}
	tag, ok := values["scheme"]
	if !ok {
		return nil
	}
	scheme, err := domain.ParseScheme(tag)
	if err != nil {
		return err
	}
	s.ready = true
	s.scheme = scheme
	s.model = values["model"]
	return nil
}

func (s *Storage) Init(scheme domain.Scheme, model string) error {
	if model == "" {
		return errors.New("empty corpus model id")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{"DELETE FROM weights", "DELETE FROM digests"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("resetting database: %w", err)
		}
	}
	for k, v := range map[string]string{"scheme": scheme.String(), "model": model} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("writing meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.ready = true
	s.scheme = scheme
	s.model = model
	return nil
}

func (s *Storage) Meta() (domain.Scheme, string, error) {
	if !s.ready {
		return domain.Scheme{}, "", domain.ErrNotInitialized
	}
	return s.scheme, s.model, nil
}

// Upsert stores records in one transaction, replacing any with the same path.
func (s *Storage) Upsert(records []domain.Record) error {
	if !s.ready {
		return domain.ErrNotInitialized
	}
	for _, r := range records {
		if err := s.compatible(r.Digest); err != nil {
			return err
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertWeight, err := tx.Prepare("INSERT INTO weights (digest_id, chunk_id, weight) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer insertWeight.Close()

	for _, r := range records {
		if _, err := tx.Exec("DELETE FROM digests WHERE path = ?", r.Path); err != nil {
			return fmt.Errorf("replacing %s: %w", r.Path, err)
		}
		res, err := tx.Exec("INSERT INTO digests (path) VALUES (?)", r.Path)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", r.Path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, e := range r.Digest.Entries {
			if _, err := insertWeight.Exec(id, int64(e.ID), e.Weight); err != nil {
				return fmt.Errorf("inserting weights of %s: %w", r.Path, err)
			}
		}
	}
	return tx.Commit()
}

// Search ranks every stored digest against query. Only postings that share
// a chunk with the query are read; records with no overlap score 0.
func (s *Storage) Search(query domain.Digest, topK int) ([]domain.SearchResult, error) {
	if !s.ready {
		return nil, domain.ErrNotInitialized
	}
	if err := s.compatible(query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = similarity.DefaultTopK
	}

	// Temp tables are per connection; the transaction pins one.
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("CREATE TEMP TABLE IF NOT EXISTS query_weights (chunk_id INTEGER PRIMARY KEY, weight REAL NOT NULL)"); err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM query_weights"); err != nil {
		return nil, err
	}
	insert, err := tx.Prepare("INSERT INTO query_weights (chunk_id, weight) VALUES (?, ?)")
	if err != nil {
		return nil, err
	}
	defer insert.Close()
	for _, e := range query.Entries {
		if _, err := insert.Exec(int64(e.ID), e.Weight); err != nil {
			return nil, err
		}
	}

	rows, err := tx.Query(`
		SELECT d.path, COALESCE(s.score, 0) AS score
		FROM digests d
		LEFT JOIN (
			SELECT w.digest_id, SUM(w.weight * q.weight) AS score
			FROM query_weights q
			JOIN weights w ON w.chunk_id = q.chunk_id
			GROUP BY w.digest_id
		) s ON s.digest_id = d.id
		ORDER BY score DESC, d.path ASC
		LIMIT ?`, topK)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var path string
		var raw float64
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		score, err := domain.NewScore(raw)
		if err != nil {
			return nil, fmt.Errorf("scoring %s: %w", path, err)
		}
		results = append(results, domain.SearchResult{Path: path, Score: score})
	}
	return results, rows.Err()
}

// Records returns every stored digest sorted by path.
func (s *Storage) Records() ([]domain.Record, error) {
	rows, err := s.db.Query(`
		SELECT d.path, w.chunk_id, w.weight
		FROM digests d
		LEFT JOIN weights w ON w.digest_id = d.id
		ORDER BY d.path`)
	if err != nil {
		return nil, fmt.Errorf("listing digests: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var path string
		var chunk sql.NullInt64
		var weight sql.NullFloat64
		if err := rows.Scan(&path, &chunk, &weight); err != nil {
			return nil, err
		}
		if len(records) == 0 || records[len(records)-1].Path != path {
			records = append(records, domain.Record{
				Path:   path,
				Digest: domain.Digest{Scheme: s.scheme, Model: s.model},
			})
		}
		if chunk.Valid {
			d := &records[len(records)-1].Digest
			d.Entries = append(d.Entries, domain.Entry{ID: domain.ChunkID(uint64(chunk.Int64)), Weight: weight.Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		slices.SortFunc(records[i].Digest.Entries, func(a, b domain.Entry) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			}
			return 0
		})
	}
	return records, nil
}

// Clear removes every digest but keeps the scheme and model binding.
func (s *Storage) Clear() error {
	for _, stmt := range []string{"DELETE FROM weights", "DELETE FROM digests"} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("clearing database: %w", err)
		}
	}
	return nil
}

func (s *Storage) compatible(d domain.Digest) error {
	return similarity.Compatible(domain.Digest{Scheme: s.scheme, Model: s.model}, d)
}

var _ domain.Storage = (*Storage)(nil)
