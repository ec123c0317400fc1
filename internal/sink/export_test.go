package sink

// Archive reads used by the external tests.
var (
	SQLiteRecord = (*SQLite).record
	SQLiteCount  = (*SQLite).count
)
