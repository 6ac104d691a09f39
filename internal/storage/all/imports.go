// Package all registers every built-in storage backend with the storage
// factory. Import it for side effects:
//
//	import _ "cyberetl/internal/storage/all"
//
// Kinds made available: "csv", "postgres", "sqlite", "mssql".
package all

import (
	_ "cyberetl/internal/storage/csvfile"
	_ "cyberetl/internal/storage/mssql"
	_ "cyberetl/internal/storage/postgres"
	_ "cyberetl/internal/storage/sqlite"
)
