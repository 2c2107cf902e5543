package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn            string
	orgID          string
	locationPrefix string
	assetPrefix    string
	locationCount  int
	assetCount     int
	tagsPerAsset   int
	csvOut         string
	csvRows        int
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.orgID == "" {
		log.Fatal("org-id is required")
	}
	if cfg.locationCount <= 0 {
		log.Fatal("location-count must be > 0")
	}
	if cfg.assetCount < 0 {
		log.Fatal("asset-count must be >= 0")
	}
	if cfg.tagsPerAsset < 0 || cfg.tagsPerAsset > 2 {
		log.Fatal("tags-per-asset must be between 0 and 2")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	log.Printf("seeding locations: org=%s count=%d", cfg.orgID, cfg.locationCount)
	locationIDs, err := seedLocations(ctx, db, cfg.orgID, cfg.locationPrefix, cfg.locationCount)
	if err != nil {
		log.Fatalf("seed locations: %v", err)
	}

	if cfg.assetCount > 0 {
		log.Printf("seeding assets: org=%s count=%d tags=%d", cfg.orgID, cfg.assetCount, cfg.tagsPerAsset)
		if err := seedAssets(ctx, db, cfg.orgID, cfg.assetPrefix, cfg.assetCount, cfg.tagsPerAsset, locationIDs); err != nil {
			log.Fatalf("seed assets: %v", err)
		}
	}

	if cfg.csvOut != "" {
		log.Printf("writing import csv: path=%s rows=%d", cfg.csvOut, cfg.csvRows)
		if err := writeImportCSV(cfg.csvOut, cfg.assetPrefix, cfg.locationPrefix, cfg.csvRows, cfg.locationCount); err != nil {
			log.Fatalf("write import csv: %v", err)
		}
	}

	log.Printf("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.orgID, "org-id", envOrDefault("ORG_ID", "org-demo"), "org id to seed into")
	flag.StringVar(&cfg.locationPrefix, "location-prefix", envOrDefault("LOCATION_PREFIX", "LOC-"), "location customer identifier prefix")
	flag.StringVar(&cfg.assetPrefix, "asset-prefix", envOrDefault("ASSET_PREFIX", "ASSET-"), "asset customer identifier prefix")
	flag.IntVar(&cfg.locationCount, "location-count", envOrInt("LOCATION_COUNT", 10), "number of locations to seed")
	flag.IntVar(&cfg.assetCount, "asset-count", envOrInt("ASSET_COUNT", 100), "number of assets to seed")
	flag.IntVar(&cfg.tagsPerAsset, "tags-per-asset", envOrInt("TAGS_PER_ASSET", 2), "tag identifiers per asset (0-2)")
	flag.StringVar(&cfg.csvOut, "csv-out", envOrDefault("CSV_OUT", ""), "write an asset import CSV to this path (optional)")
	flag.IntVar(&cfg.csvRows, "csv-rows", envOrInt("CSV_ROWS", 50), "number of rows in the import CSV")
	flag.Parse()
	return cfg
}

func seedLocations(ctx context.Context, db *sql.DB, orgID, prefix string, count int) ([]int64, error) {
	const insertSQL = `
INSERT INTO locations (
	org_id,
	customer_identifier,
	name,
	location_type,
	is_active,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,TRUE,$5,$5
)
ON CONFLICT (org_id, customer_identifier) WHERE deleted_at IS NULL
DO UPDATE SET
	name = EXCLUDED.name,
	updated_at = EXCLUDED.updated_at
RETURNING id`

	now := time.Now().UTC()
	ids := make([]int64, 0, count)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	for i := 1; i <= count; i++ {
		customerID := fmt.Sprintf("%s%04d", prefix, i)
		name := fmt.Sprintf("Location %04d", i)
		var id int64
		if err := stmt.QueryRowContext(ctx, orgID, customerID, name, "zone", now).Scan(&id); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedAssets(ctx context.Context, db *sql.DB, orgID, prefix string, count, tagsPerAsset int, locationIDs []int64) error {
	const insertAssetSQL = `
INSERT INTO assets (
	org_id,
	customer_identifier,
	name,
	asset_type,
	current_location_id,
	is_active,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,TRUE,$6,$6
)
ON CONFLICT (org_id, customer_identifier) WHERE deleted_at IS NULL
DO UPDATE SET
	name = EXCLUDED.name,
	current_location_id = EXCLUDED.current_location_id,
	updated_at = EXCLUDED.updated_at
RETURNING id`

	const insertTagSQL = `
INSERT INTO tag_identifiers (
	org_id,
	tag_type,
	tag_value,
	asset_id,
	is_active,
	created_at
) VALUES (
	$1,$2,$3,$4,TRUE,$5
)
ON CONFLICT (org_id, tag_type, tag_value) WHERE deleted_at IS NULL
DO NOTHING`

	now := time.Now().UTC()
	const batchSize = 500
	for offset := 0; offset < count; offset += batchSize {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		assetStmt, err := tx.PrepareContext(ctx, insertAssetSQL)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		tagStmt, err := tx.PrepareContext(ctx, insertTagSQL)
		if err != nil {
			_ = assetStmt.Close()
			_ = tx.Rollback()
			return err
		}

		end := offset + batchSize
		if end > count {
			end = count
		}
		for i := offset + 1; i <= end; i++ {
			customerID := fmt.Sprintf("%s%06d", prefix, i)
			name := fmt.Sprintf("Asset %06d", i)
			locationID := locationIDs[(i-1)%len(locationIDs)]
			var assetID int64
			if err := assetStmt.QueryRowContext(ctx, orgID, customerID, name, "equipment", locationID, now).Scan(&assetID); err != nil {
				_ = assetStmt.Close()
				_ = tagStmt.Close()
				_ = tx.Rollback()
				return err
			}
			if tagsPerAsset >= 1 {
				value := fmt.Sprintf("E200-%s-%06d", orgID, i)
				if _, err := tagStmt.ExecContext(ctx, orgID, "rfid", value, assetID, now); err != nil {
					_ = assetStmt.Close()
					_ = tagStmt.Close()
					_ = tx.Rollback()
					return err
				}
			}
			if tagsPerAsset >= 2 {
				value := fmt.Sprintf("%02X:%02X:%02X:%02X", (i>>24)&0xFF, (i>>16)&0xFF, (i>>8)&0xFF, i&0xFF)
				if _, err := tagStmt.ExecContext(ctx, orgID, "ble", value, assetID, now); err != nil {
					_ = assetStmt.Close()
					_ = tagStmt.Close()
					_ = tx.Rollback()
					return err
				}
			}
		}

		if err := assetStmt.Close(); err != nil {
			_ = tagStmt.Close()
			_ = tx.Rollback()
			return err
		}
		if err := tagStmt.Close(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("seeded assets %d/%d", end, count)
	}
	return nil
}

// writeImportCSV emits a file suitable for POST /api/v1/imports, with
// rows referencing the seeded locations by customer identifier.
func writeImportCSV(path, assetPrefix, locationPrefix string, rows, locationCount int) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"customer_identifier",
		"name",
		"type",
		"valid_from",
		"current_location",
		"tag_type",
		"tag_value",
	}); err != nil {
		return err
	}

	validFrom := time.Now().UTC().Format("2006-01-02")
	for i := 1; i <= rows; i++ {
		location := fmt.Sprintf("%s%04d", locationPrefix, ((i-1)%locationCount)+1)
		record := []string{
			fmt.Sprintf("%sCSV-%06d", assetPrefix, i),
			fmt.Sprintf("Imported Asset %06d", i),
			"equipment",
			validFrom,
			location,
			"rfid",
			fmt.Sprintf("E200-CSV-%06d", i),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
