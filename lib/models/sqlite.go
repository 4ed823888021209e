package models

import "strings"

// sqliteParams make writers queue instead of failing. Deferred transactions that read and
// then write get SQLITE_BUSY when two of them upgrade at once, and the busy handler does
// not run for that case; BEGIN IMMEDIATE takes the write lock up front so it does.
var sqliteParams = []string{
	"_txlock=immediate",
	"_busy_timeout=5000",
	"_journal_mode=WAL",
}

// SQLiteDSN appends the locking parameters to dsn, keeping any the caller already set.
func SQLiteDSN(dsn string) string {
	var missing []string
	for _, param := range sqliteParams {
		name := param[:strings.IndexByte(param, '=')+1]
		if !strings.Contains(dsn, name) {
			missing = append(missing, param)
		}
	}
	if len(missing) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
