package db

// Migrate runs all database migrations.
func (d *DB) Migrate() error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(`
			CREATE TABLE IF NOT EXISTS personalities (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				avatar TEXT NOT NULL DEFAULT '',
				personality TEXT NOT NULL,
				traits TEXT NOT NULL DEFAULT '[]',
				description TEXT NOT NULL DEFAULT '',
				avatar_gallery TEXT NOT NULL DEFAULT '[]',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}

		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS chats (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL CHECK(type IN ('individual', 'group')),
				name TEXT NOT NULL,
				personality_ids TEXT NOT NULL,
				last_message_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)
		`)
		if err != nil {
			return err
		}

		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				chat_id TEXT NOT NULL,
				sender_id TEXT NOT NULL,
				sender_name TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL,
				images TEXT NOT NULL DEFAULT '[]',
				seq INTEGER NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
			)
		`)
		if err != nil {
			return err
		}

		// seq preserves insertion order; created_at is informational only.
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq)",
			"CREATE INDEX IF NOT EXISTS idx_chats_last_message ON chats(last_message_at)",
		}

		for _, idx := range indexes {
			if _, err := d.db.Exec(idx); err != nil {
				return err
			}
		}

		return nil
	})
}
