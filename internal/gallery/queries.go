package gallery

// Gallery schema. Versioned through PRAGMA user_version; SchemaQuery
// creates version 1.
const SchemaQuery = `
	CREATE TABLE IF NOT EXISTS vaults (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT '',
		sha256 TEXT NOT NULL,
		format TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vaults_label ON vaults(label);

	CREATE TABLE IF NOT EXISTS vault_tags (
		vault_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (vault_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_vault_tags_tag ON vault_tags(tag);
`

// Vault record queries
const (
	InsertVaultQuery = `
		INSERT INTO vaults (
			id, path, label, sha256, format, width, height, capacity,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectVaultByIDQuery = `
		SELECT id, path, label, sha256, format, width, height, capacity,
			   created_at, updated_at
		FROM vaults
		WHERE id = ?
	`

	SelectVaultByPathQuery = `
		SELECT id, path, label, sha256, format, width, height, capacity,
			   created_at, updated_at
		FROM vaults
		WHERE path = ?
	`

	SelectVaultByLabelQuery = `
		SELECT id, path, label, sha256, format, width, height, capacity,
			   created_at, updated_at
		FROM vaults
		WHERE label = ?
	`

	SelectAllVaultsQuery = `
		SELECT id, path, label, sha256, format, width, height, capacity,
			   created_at, updated_at
		FROM vaults
		ORDER BY label, path
	`

	SearchVaultsQuery = `
		SELECT DISTINCT v.id, v.path, v.label, v.sha256, v.format, v.width,
			   v.height, v.capacity, v.created_at, v.updated_at
		FROM vaults v
		LEFT JOIN vault_tags t ON t.vault_id = v.id
		WHERE lower(v.label) LIKE ? OR lower(v.path) LIKE ? OR lower(t.tag) LIKE ?
		ORDER BY v.label, v.path
	`

	UpdateVaultLabelQuery = `
		UPDATE vaults
		SET label = ?, updated_at = ?
		WHERE id = ?
	`

	UpdateVaultHashQuery = `
		UPDATE vaults
		SET sha256 = ?, updated_at = ?
		WHERE id = ?
	`

	DeleteVaultQuery = `
		DELETE FROM vaults
		WHERE id = ?
	`
)

// Tag queries
const (
	InsertVaultTagQuery = `
		INSERT OR IGNORE INTO vault_tags (vault_id, tag)
		VALUES (?, ?)
	`

	SelectVaultTagsQuery = `
		SELECT tag
		FROM vault_tags
		WHERE vault_id = ?
		ORDER BY tag
	`

	DeleteVaultTagsQuery = `
		DELETE FROM vault_tags
		WHERE vault_id = ?
	`
)
