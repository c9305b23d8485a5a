package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"livability-pipeline/models"
	"livability-pipeline/utils"
)

const (
	indexFile       = "index.db"
	snapshotLayout  = "20060102_150405.000000"
	legacyLayout    = "20060102_150405"
	cacheMigration  = `
CREATE TABLE IF NOT EXISTS cache_index (
	identifier   TEXT PRIMARY KEY,
	storage_key  TEXT    NOT NULL,
	retrieved_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_snapshots (
	storage_key TEXT PRIMARY KEY
);
`
	upsertIndexSQL = `
INSERT INTO cache_index (identifier, storage_key, retrieved_at) VALUES (?, ?, ?)
ON CONFLICT (identifier) DO UPDATE SET
	storage_key  = excluded.storage_key,
	retrieved_at = excluded.retrieved_at
WHERE excluded.retrieved_at >= cache_index.retrieved_at
`
	insertSnapshotSQL = `INSERT OR IGNORE INTO cache_snapshots (storage_key) VALUES (?)`
)

// snapshotName matches "<name>_<YYYYmmdd_HHMMSS>[.ffffff].json".
var snapshotName = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})(\.\d+)?\.json$`)

// FileCache is an arena of per-identifier JSON snapshots plus a SQLite index
// from identifier to its most recent snapshot. Snapshots are never rewritten;
// a newer Put adds a snapshot and moves the index pointer.
type FileCache struct {
	dir     string
	db      *sql.DB
	keepRaw bool
	logger  *utils.Logger
	now     func() time.Time
}

// OpenFileCache opens (or creates) the cache in dir and indexes any snapshot
// files the index does not know about yet, including files written by the
// legacy scraper.
func OpenFileCache(ctx context.Context, dir string, keepRaw bool, logger *utils.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", dir)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, indexFile))
	if err != nil {
		return nil, eris.Wrap(err, "cache: open index")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}

	c := &FileCache{dir: dir, db: db, keepRaw: keepRaw, logger: logger, now: time.Now}
	adopted, err := c.reconcile(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if adopted > 0 {
		logger.Info("[cache] Indexed %d snapshot files from %s", adopted, dir)
	}
	return c, nil
}

// Close releases the index.
func (c *FileCache) Close() error {
	return c.db.Close()
}

// Get returns the most recent record for id. A snapshot that cannot be read
// or decoded is reported as a miss so one bad file never blocks a run.
func (c *FileCache) Get(ctx context.Context, id string) (*models.LivabilityRecord, bool, error) {
	entry, err := c.entry(ctx, id)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return &entry.LivabilityRecord, true, nil
}

// Put stores a new snapshot for id and points the index at it.
func (c *FileCache) Put(ctx context.Context, id string, rec *models.LivabilityRecord, raw string) error {
	entry := &models.CacheEntry{
		Identifier:       id,
		RetrievedAt:      c.now().UTC(),
		LivabilityRecord: *rec,
	}
	if c.keepRaw {
		entry.RawText = raw
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", id)
	}

	key := fmt.Sprintf("%s_%s.json", safeName(id), entry.RetrievedAt.Format(snapshotLayout))
	if err := writeFileAtomic(filepath.Join(c.dir, key), data, 0644); err != nil {
		return eris.Wrapf(err, "cache: write snapshot %s", key)
	}

	if err := c.index(ctx, id, key, entry.RetrievedAt); err != nil {
		return err
	}
	c.logger.Debug("[cache] Stored %s as %s", id, key)
	return nil
}

// Lookup returns the records of every id that has a readable snapshot.
func (c *FileCache) Lookup(ctx context.Context, ids []string) (map[string]*models.LivabilityRecord, error) {
	out := make(map[string]*models.LivabilityRecord, len(ids))
	for _, id := range ids {
		rec, ok, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = rec
		}
	}
	return out, nil
}

// Entries returns the most recent snapshot of every indexed identifier,
// ordered by identifier.
func (c *FileCache) Entries(ctx context.Context) ([]*models.CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT identifier FROM cache_index ORDER BY identifier`)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list index")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "cache: scan index")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, eris.Wrap(err, "cache: iterate index")
	}
	rows.Close()

	entries := make([]*models.CacheEntry, 0, len(ids))
	for _, id := range ids {
		e, err := c.entry(ctx, id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// index records key as a snapshot of id and moves the index pointer to it
// unless a newer snapshot is already indexed.
func (c *FileCache) index(ctx context.Context, id, key string, at time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "cache: begin index %s", key)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertIndexSQL, id, key, at.UnixNano()); err != nil {
		return eris.Wrapf(err, "cache: index %s", key)
	}
	if _, err := tx.ExecContext(ctx, insertSnapshotSQL, key); err != nil {
		return eris.Wrapf(err, "cache: record snapshot %s", key)
	}
	return eris.Wrapf(tx.Commit(), "cache: commit index %s", key)
}

// lookup returns the storage key of id's latest snapshot. Legacy files only
// carry the filename form of an identifier, so that form is tried second.
func (c *FileCache) lookup(ctx context.Context, id string) (string, int64, bool, error) {
	candidates := []string{id}
	if alt := safeName(id); alt != id {
		candidates = append(candidates, alt)
	}
	for _, cand := range candidates {
		var key string
		var retrieved int64
		err := c.db.QueryRowContext(ctx,
			`SELECT storage_key, retrieved_at FROM cache_index WHERE identifier = ?`, cand,
		).Scan(&key, &retrieved)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", 0, false, eris.Wrapf(err, "cache: lookup %s", id)
		}
		return key, retrieved, true, nil
	}
	return "", 0, false, nil
}

func (c *FileCache) entry(ctx context.Context, id string) (*models.CacheEntry, error) {
	key, retrieved, ok, err := c.lookup(ctx, id)
	if err != nil || !ok {
		return nil, err
	}

	entry, err := readSnapshot(filepath.Join(c.dir, key))
	if err != nil {
		c.logger.Warn("[cache] Ignoring unreadable snapshot %s for %s: %v", key, id, err)
		return nil, nil
	}
	entry.Identifier = id
	if entry.RetrievedAt.IsZero() {
		entry.RetrievedAt = time.Unix(0, retrieved).UTC()
	}
	return entry, nil
}

// reconcile adds snapshot files the cache has never seen to the index and
// returns how many it adopted. Files keep their identifier inside the JSON;
// older files only carry it in their name.
func (c *FileCache) reconcile(ctx context.Context) (int, error) {
	known := make(map[string]struct{})
	rows, err := c.db.QueryContext(ctx,
		`SELECT storage_key FROM cache_snapshots UNION SELECT storage_key FROM cache_index`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: read index")
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "cache: scan index")
		}
		known[key] = struct{}{}
	}
	rows.Close()

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: list %s", c.dir)
	}

	adopted := 0
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, ok := known[name]; ok {
			continue
		}
		m := snapshotName.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		entry, err := readSnapshot(filepath.Join(c.dir, name))
		if err != nil {
			c.logger.Warn("[cache] Skipping unreadable snapshot %s: %v", name, err)
			continue
		}

		id := models.NormalizeID(entry.Identifier)
		if id == "" {
			id = models.NormalizeID(m[1])
		}
		at := entry.RetrievedAt
		if at.IsZero() {
			at = snapshotTime(m[2], m[3])
		}

		if err := c.index(ctx, id, name, at); err != nil {
			return adopted, err
		}
		adopted++
	}
	return adopted, nil
}

func readSnapshot(path string) (*models.CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	entry.Normalize()
	return &entry, nil
}

func snapshotTime(stamp, frac string) time.Time {
	if frac != "" {
		if t, err := time.ParseInLocation(snapshotLayout, stamp+frac, time.UTC); err == nil {
			return t
		}
	}
	t, err := time.ParseInLocation(legacyLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

var unsafeName = strings.NewReplacer(" ", "_", ",", "", "/", "_", "\\", "_", ":", "_")

// safeName turns an identifier into a filename fragment.
func safeName(id string) string {
	return unsafeName.Replace(id)
}
