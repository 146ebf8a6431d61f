package runlog

import "database/sql"

// Schema contains the complete DDL for the run-history tables.
const Schema = `
-- One row per verification run
CREATE TABLE IF NOT EXISTS verification_runs (
    run_id TEXT PRIMARY KEY,
    base_url TEXT NOT NULL,
    routes TEXT NOT NULL,
    out_dir TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    assert_failures INTEGER NOT NULL DEFAULT 0,
    visual_failures INTEGER NOT NULL DEFAULT 0,
    ok INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_runs_started
    ON verification_runs(started_at DESC);

-- One row per route within a run
CREATE TABLE IF NOT EXISTS verification_routes (
    run_id TEXT NOT NULL REFERENCES verification_runs(run_id),
    route TEXT NOT NULL,
    artifact_key TEXT NOT NULL,
    assert_failures INTEGER NOT NULL DEFAULT 0,
    visual_status TEXT NOT NULL DEFAULT 'skipped',
    visual_summary TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, route)
);
CREATE INDEX IF NOT EXISTS idx_routes_run
    ON verification_routes(run_id);
`

// ApplySchema applies the DDL to a database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
