// Package migrations compiles the schema SQL files into the binary and
// hands them to the database package, so deployments never need the .sql
// files on disk. Importing this package for its init side effect is enough:
//
//	import _ "github.com/bluewatt/bluewatt-core/migrations"
package migrations

import (
	"embed"

	"github.com/bluewatt/bluewatt-core/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
