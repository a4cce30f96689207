// ScadaDB holds the durable record of ingested telemetry in both shapes:
// wide rows (one per batch and station group, tags as columns) and tall
// rows (one per tag). It is written to by the persistence writer only,
// but may be read by any service.
package scadadb

import (
	"database/sql"
	"embed"
	"log"
	"os"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/pathing"

	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// InitializeDatabase must be called manually on startup
func InitializeDatabase() {
	// Create DB before migrations
	db := GetDB()
	_, err := db.Exec("SELECT 1;")
	if err != nil {
		log.Printf("Warning: Could not create DB: %v", err)
	}

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
}

func GetDB() *sql.DB {
	once.Do(func() {
		if err := os.MkdirAll(pathing.GetDataDir(), 0755); err != nil {
			log.Fatal(err)
		}
		var err error
		db, err = sql.Open("sqlite", pathing.GetScadaDbPath())
		if err != nil {
			log.Fatal(err)
		}
		// Verify connection
		if err = db.Ping(); err != nil {
			log.Fatal(err)
		}
	})
	return db
}
