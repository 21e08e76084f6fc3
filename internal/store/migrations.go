package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per ringing session
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			decision TEXT NOT NULL DEFAULT '' CHECK(decision IN ('', 'accepted', 'declined')),
			gesture TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			decided_at DATETIME
		)`,

		// Plugin actions run for a call event
		`CREATE TABLE IF NOT EXISTS call_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
			event TEXT NOT NULL,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			executed_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_call_actions_call_id ON call_actions(call_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
