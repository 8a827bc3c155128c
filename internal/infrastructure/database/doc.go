// Package database opens the SQLite store and runs its embedded schema
// migrations.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The connection runs in WAL mode with foreign keys on and a busy timeout,
// and the pool is capped at a single connection since SQLite serialises
// writers anyway. The database file is chmodded to 0600 because it holds
// credential hashes.
//
// Migrations live in the top-level migrations/ package as paired
// .up.sql/.down.sql files named with a YYYYMMDD_HHMMSS version prefix.
// Each applies in its own transaction and is recorded in
// schema_migrations, so a failed migration can simply be rerun.
package database
