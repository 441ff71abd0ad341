package simindex

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hashreview/internal/config"
	"hashreview/internal/match"
	"hashreview/internal/services"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the index database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("index schema version mismatch")

// Entry is a stored reference fingerprint.
type Entry struct {
	ID          int64
	ImageID     string
	Algorithm   string
	Fingerprint string
	SourceTag   string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Match is a query hit: a stored entry and its distance from the probe.
type Match struct {
	Entry    Entry
	Distance float64
}

// Index is an append-only fingerprint store backed by SQLite.
type Index struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the index database next to the queue
// database under the configured data directory.
func Open(cfg *config.Config) (*Index, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.IndexDBPath()
	// Connection-string pragmas reach every pooled connection, not just the
	// one an Exec would run on.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Path returns the database file path backing the index.
func (i *Index) Path() string {
	return i.path
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := i.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create index schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// NewEntry describes a fingerprint to index.
type NewEntry struct {
	ImageID     string
	Algorithm   string
	Fingerprint string
	SourceTag   string
	Metadata    map[string]string
}

// Add appends a fingerprint to the index. Fingerprints must be hex; the
// algorithm name is normalized to lowercase.
func (i *Index) Add(ctx context.Context, entry NewEntry) (*Entry, error) {
	fingerprint, err := normalizeFingerprint(entry.Fingerprint)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "simindex", "add", err.Error(), nil)
	}
	imageID := strings.TrimSpace(entry.ImageID)
	if imageID == "" {
		return nil, services.Wrap(services.ErrValidation, "simindex", "add", "image id is required", nil)
	}
	algorithm := match.FamilyFor(entry.Algorithm).Name
	if algorithm == "" {
		return nil, services.Wrap(services.ErrValidation, "simindex", "add", "algorithm is required", nil)
	}

	var metadataJSON any
	if len(entry.Metadata) > 0 {
		raw, marshalErr := json.Marshal(entry.Metadata)
		if marshalErr != nil {
			return nil, fmt.Errorf("encode entry metadata: %w", marshalErr)
		}
		metadataJSON = string(raw)
	}

	now := time.Now().UTC()
	res, err := i.db.ExecContext(ctx,
		`INSERT INTO index_entries (image_id, algorithm, fingerprint, source_tag, metadata_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		imageID,
		algorithm,
		fingerprint,
		nullable(strings.TrimSpace(entry.SourceTag)),
		metadataJSON,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert index entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert index entry: %w", err)
	}

	stored := &Entry{
		ID:          id,
		ImageID:     imageID,
		Algorithm:   algorithm,
		Fingerprint: fingerprint,
		SourceTag:   strings.TrimSpace(entry.SourceTag),
		Metadata:    entry.Metadata,
		CreatedAt:   now,
	}
	return stored, nil
}

// Query returns indexed entries within threshold of the probe fingerprint,
// ordered by ascending distance with insertion order breaking ties.
//
// Threshold is an inclusive upper bound for perceptual-style algorithms.
// Exact-match algorithms ignore it and return only zero-distance hits. An
// empty index, or no qualifying neighbors, yields an empty slice.
func (i *Index) Query(ctx context.Context, algorithm, fingerprint string, threshold float64, limit int) ([]Match, error) {
	probe, err := normalizeFingerprint(fingerprint)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "simindex", "query", err.Error(), nil)
	}
	family := match.FamilyFor(algorithm)

	if family.Kind == match.KindCryptoExact {
		return i.queryExact(ctx, family.Name, probe, limit)
	}
	return i.queryNearest(ctx, family.Name, probe, threshold, limit)
}

func (i *Index) queryExact(ctx context.Context, algorithm, probe string, limit int) ([]Match, error) {
	query := `SELECT id, image_id, algorithm, fingerprint, source_tag, metadata_json, created_at
        FROM index_entries WHERE algorithm = ? AND fingerprint = ? ORDER BY id ASC`
	args := []any{algorithm, probe}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exact matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan index entry: %w", scanErr)
		}
		matches = append(matches, Match{Entry: *entry, Distance: 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exact matches: %w", err)
	}
	return matches, nil
}

func (i *Index) queryNearest(ctx context.Context, algorithm, probe string, threshold float64, limit int) ([]Match, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT id, image_id, algorithm, fingerprint, source_tag, metadata_json, created_at
         FROM index_entries WHERE algorithm = ? ORDER BY id ASC`,
		algorithm,
	)
	if err != nil {
		return nil, fmt.Errorf("query index entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan index entry: %w", scanErr)
		}
		distance, comparable := hammingDistance(probe, entry.Fingerprint)
		if !comparable {
			continue
		}
		if float64(distance) > threshold {
			continue
		}
		matches = append(matches, Match{Entry: *entry, Distance: float64(distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index entries: %w", err)
	}

	// Entries arrive in insertion order, so a stable sort preserves it among
	// equal distances.
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// HasEntries reports whether the index holds any fingerprint for the
// algorithm, without scanning the index.
func (i *Index) HasEntries(ctx context.Context, algorithm string) (bool, error) {
	family := match.FamilyFor(algorithm)
	var one int
	err := i.db.QueryRowContext(ctx,
		"SELECT 1 FROM index_entries WHERE algorithm = ? LIMIT 1", family.Name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check index entries: %w", err)
	}
	return true, nil
}

// RandomEntry picks a uniformly random indexed entry for the algorithm, used
// to seed random-probe flows. Returns (nil, nil) when the index is empty.
func (i *Index) RandomEntry(ctx context.Context, algorithm string) (*Entry, error) {
	family := match.FamilyFor(algorithm)
	row := i.db.QueryRowContext(ctx,
		`SELECT id, image_id, algorithm, fingerprint, source_tag, metadata_json, created_at
         FROM index_entries WHERE algorithm = ? ORDER BY RANDOM() LIMIT 1`,
		family.Name,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick random entry: %w", err)
	}
	return entry, nil
}

// Count returns the number of entries per algorithm.
func (i *Index) Count(ctx context.Context) (map[string]int, error) {
	rows, err := i.db.QueryContext(ctx,
		"SELECT algorithm, COUNT(1) FROM index_entries GROUP BY algorithm")
	if err != nil {
		return nil, fmt.Errorf("count index entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			algorithm string
			count     int
		)
		if scanErr := rows.Scan(&algorithm, &count); scanErr != nil {
			return nil, fmt.Errorf("scan index count: %w", scanErr)
		}
		counts[algorithm] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index counts: %w", err)
	}
	return counts, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id         int64
		imageID    string
		algorithm  string
		hash       string
		sourceTag  sql.NullString
		metadata   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&id, &imageID, &algorithm, &hash, &sourceTag, &metadata, &createdRaw); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:          id,
		ImageID:     imageID,
		Algorithm:   algorithm,
		Fingerprint: hash,
		SourceTag:   sourceTag.String,
	}
	if metadata.Valid && metadata.String != "" {
		decoded := map[string]string{}
		if err := json.Unmarshal([]byte(metadata.String), &decoded); err == nil {
			entry.Metadata = decoded
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
