package stores

import "fmt"

// queries holds the SQL for one set of table names. Table names are
// validated identifiers; every value is bound as a parameter.
type queries struct {
	insertOwner   string
	selectOwnerID string
	listOwners    string

	selectTests string
	selectTest  string
	upsertTest  string

	insertReport string
	listReports  string
}

func buildQueries(t Tables) queries {
	return queries{
		insertOwner: fmt.Sprintf(`
			INSERT INTO %s (name, created_at) VALUES (?, ?)
			ON CONFLICT (name) DO NOTHING
		`, t.Owners),
		selectOwnerID: fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, t.Owners),
		listOwners:    fmt.Sprintf(`SELECT name FROM %s ORDER BY name ASC`, t.Owners),

		selectTests: fmt.Sprintf(`
			SELECT name, data, version
			FROM %s
			WHERE owner_id = ?
			ORDER BY name ASC
		`, t.Tests),
		selectTest: fmt.Sprintf(`
			SELECT t.name, t.data, t.version
			FROM %s t
			JOIN %s o ON o.id = t.owner_id
			WHERE o.name = ? AND t.name = ?
		`, t.Tests, t.Owners),
		// The stored version never goes backwards: a write carrying a stale
		// version still lands one above what is stored.
		upsertTest: fmt.Sprintf(`
			INSERT INTO %[1]s (name, data, owner_id, version, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (name, owner_id) DO UPDATE SET
				version = MAX(excluded.version, %[1]s.version + 1),
				data = json_set(excluded.data, '$.version', MAX(excluded.version, %[1]s.version + 1)),
				updated_at = excluded.updated_at
			RETURNING version
		`, t.Tests),

		insertReport: fmt.Sprintf(`
			INSERT INTO %s (
				run_id, owner, name, version, device_info,
				start_time, end_time, inverted_start_time,
				passed_steps, error_steps, steps, images, logs,
				runtime_exception, success
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.Reports),
		listReports: fmt.Sprintf(`
			SELECT id, run_id, owner, name, version, device_info,
				   start_time, end_time, inverted_start_time,
				   passed_steps, error_steps, steps, images, logs,
				   runtime_exception, success
			FROM %s
			WHERE owner = ?
			ORDER BY inverted_start_time ASC, id DESC
			LIMIT ? OFFSET ?
		`, t.Reports),
	}
}
