package repository

// schema returns the idempotent DDL for a dialect, one statement per entry.
func schema(d Dialect) []string {
	switch d {
	case DialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id BIGSERIAL PRIMARY KEY,
				slug TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				excerpt TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				cover_image TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '',
				published BOOLEAN NOT NULL DEFAULT FALSE,
				views BIGINT NOT NULL DEFAULT 0,
				published_at TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published, published_at)`,
			`CREATE TABLE IF NOT EXISTS photos (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				caption TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL,
				storage_medium TEXT NOT NULL DEFAULT 'remote',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS events (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				location TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL DEFAULT '',
				starts_at TIMESTAMPTZ NOT NULL,
				ends_at TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events(starts_at)`,
			`CREATE TABLE IF NOT EXISTS feedback (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'new',
				created_at TIMESTAMPTZ NOT NULL
			)`,
		}
	case DialectMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				slug VARCHAR(191) NOT NULL UNIQUE,
				title VARCHAR(255) NOT NULL,
				excerpt TEXT NOT NULL,
				content LONGTEXT NOT NULL,
				cover_image LONGTEXT NOT NULL,
				category VARCHAR(100) NOT NULL DEFAULT '',
				tags TEXT NOT NULL,
				published TINYINT(1) NOT NULL DEFAULT 0,
				views BIGINT NOT NULL DEFAULT 0,
				published_at DATETIME(6) NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				INDEX idx_posts_published (published, published_at)
			) CHARACTER SET utf8mb4`,
			`CREATE TABLE IF NOT EXISTS photos (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				caption TEXT NOT NULL,
				image_url LONGTEXT NOT NULL,
				storage_medium VARCHAR(16) NOT NULL DEFAULT 'remote',
				created_at DATETIME(6) NOT NULL
			) CHARACTER SET utf8mb4`,
			`CREATE TABLE IF NOT EXISTS events (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				location VARCHAR(255) NOT NULL DEFAULT '',
				image_url LONGTEXT NOT NULL,
				starts_at DATETIME(6) NOT NULL,
				ends_at DATETIME(6) NULL,
				created_at DATETIME(6) NOT NULL,
				INDEX idx_events_starts_at (starts_at)
			) CHARACTER SET utf8mb4`,
			`CREATE TABLE IF NOT EXISTS feedback (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				email VARCHAR(255) NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'new',
				created_at DATETIME(6) NOT NULL
			) CHARACTER SET utf8mb4`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				slug TEXT NOT NULL UNIQUE,
				title TEXT NOT NULL,
				excerpt TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				cover_image TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '',
				published INTEGER NOT NULL DEFAULT 0,
				views INTEGER NOT NULL DEFAULT 0,
				published_at DATETIME NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published, published_at)`,
			`CREATE TABLE IF NOT EXISTS photos (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				caption TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL,
				storage_medium TEXT NOT NULL DEFAULT 'remote',
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				location TEXT NOT NULL DEFAULT '',
				image_url TEXT NOT NULL DEFAULT '',
				starts_at DATETIME NOT NULL,
				ends_at DATETIME NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events(starts_at)`,
			`CREATE TABLE IF NOT EXISTS feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'new',
				created_at DATETIME NOT NULL
			)`,
		}
	}
}
