package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	"livability-pipeline/models"
)

const pgColumnsPerRow = 13

// PostgresWriter mirrors cached livability records into PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping failed after retries")
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: migrate")
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS livability_records (
			identifier               TEXT        PRIMARY KEY,
			zip_code                 TEXT,
			overall_livability_score SMALLINT,
			housing_score            SMALLINT,
			neighborhood_score       SMALLINT,
			transportation_score     SMALLINT,
			environment_score        SMALLINT,
			health_score             SMALLINT,
			engagement_score         SMALLINT,
			opportunity_score        SMALLINT,
			total_population         BIGINT,
			race_ethnicity           JSONB       NOT NULL DEFAULT '{}'::jsonb,
			retrieved_at             TIMESTAMPTZ NOT NULL,
			synced_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_livability_zip     ON livability_records(zip_code);
		CREATE INDEX IF NOT EXISTS idx_livability_overall ON livability_records(overall_livability_score);
	`)
	return err
}

// Write upserts every entry in batches. A row is only replaced by an entry
// retrieved at the same time or later.
func (pw *PostgresWriter) Write(entries []*models.CacheEntry) error {
	const batchSize = 50
	for i := 0; i < len(entries); i += batchSize {
		end := i + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		query, args, err := buildUpsert(entries[i:end])
		if err != nil {
			return err
		}
		if _, err := pw.db.Exec(query, args...); err != nil {
			return eris.Wrapf(err, "postgres: upsert batch at %d", i)
		}
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func buildUpsert(batch []*models.CacheEntry) (string, []interface{}, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*pgColumnsPerRow)

	for idx, e := range batch {
		base := idx * pgColumnsPerRow
		placeholders := make([]string, pgColumnsPerRow)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		race, err := json.Marshal(e.Demographics.RaceEthnicity)
		if err != nil {
			return "", nil, eris.Wrapf(err, "postgres: encode race for %s", e.Identifier)
		}

		valueArgs = append(valueArgs, e.Identifier, nullString(e.ZipCode), nullInt(e.OverallScore))
		for _, c := range models.Categories {
			valueArgs = append(valueArgs, nullInt(e.Categories[c]))
		}
		valueArgs = append(valueArgs, nullInt64(e.Demographics.TotalPopulation), string(race), e.RetrievedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO livability_records (
			identifier, zip_code, overall_livability_score,
			housing_score, neighborhood_score, transportation_score, environment_score,
			health_score, engagement_score, opportunity_score,
			total_population, race_ethnicity, retrieved_at
		)
		VALUES %s
		ON CONFLICT (identifier) DO UPDATE SET
			zip_code                 = EXCLUDED.zip_code,
			overall_livability_score = EXCLUDED.overall_livability_score,
			housing_score            = EXCLUDED.housing_score,
			neighborhood_score       = EXCLUDED.neighborhood_score,
			transportation_score     = EXCLUDED.transportation_score,
			environment_score        = EXCLUDED.environment_score,
			health_score             = EXCLUDED.health_score,
			engagement_score         = EXCLUDED.engagement_score,
			opportunity_score        = EXCLUDED.opportunity_score,
			total_population         = EXCLUDED.total_population,
			race_ethnicity           = EXCLUDED.race_ethnicity,
			retrieved_at             = EXCLUDED.retrieved_at,
			synced_at                = NOW()
		WHERE livability_records.retrieved_at <= EXCLUDED.retrieved_at
	`, strings.Join(valueStrings, ","))

	return query, valueArgs, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
