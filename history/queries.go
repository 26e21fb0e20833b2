package history

// SQL statements for the history store.

const (
	InsertSyncRun = `
		INSERT INTO sync_runs (
			run_id,
			started_at,
			duration_ms,
			user_count,
			group_count,
			entry_count,
			collision_count,
			status,
			error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)
