// Command migration prepares the key-value table for a SQL store and can
// seed the offer cache from a JSON export of the sheet.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"cryptocagua/config"
	"cryptocagua/dao"
	"cryptocagua/db"
	"cryptocagua/model"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	seedPath := flag.String("seed", "", "JSON file with an array of offers to load into the cache")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	// 1. Create table
	dialect, err := db.DialectFor(cfg.Storage.Driver)
	if err != nil {
		log.Fatalf("driver %q has no SQL schema to migrate", cfg.Storage.Driver)
	}
	conn, err := sql.Open(dialect.DriverName(), cfg.Storage.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		log.Fatal("Failed to connect to DB:", err)
	}
	fmt.Printf("Migrating kv_entries on %s...\n", dialect)
	if err := db.Migrate(ctx, conn, dialect); err != nil {
		log.Fatal(err)
	}

	// 2. Seed offers
	if *seedPath != "" {
		data, err := os.ReadFile(*seedPath)
		if err != nil {
			log.Fatal(err)
		}
		var offers []model.Offer
		if err := json.Unmarshal(data, &offers); err != nil {
			log.Fatalf("failed to parse seed file: %v", err)
		}
		cache := dao.NewOfferCache(dao.NewSQLStore(conn, dialect))
		if err := cache.ReplaceAll(ctx, offers); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Seeded %d offers.\n", len(offers))
	}

	fmt.Println("Migration Done.")
}
