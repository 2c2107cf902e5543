package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// registerDBMetrics exposes row-count gauges evaluated at scrape time.
func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	gauges := []struct {
		name  string
		help  string
		query string
	}{
		{"import_jobs_pending", "Import jobs waiting for a worker",
			"SELECT COUNT(*) FROM import_jobs WHERE status = 'pending'"},
		{"tag_identifiers_live", "Live tag identifier rows",
			"SELECT COUNT(*) FROM tag_identifiers WHERE deleted_at IS NULL"},
		{"assets_live", "Live asset rows",
			"SELECT COUNT(*) FROM assets WHERE deleted_at IS NULL"},
		{"locations_live", "Live location rows",
			"SELECT COUNT(*) FROM locations WHERE deleted_at IS NULL"},
	}
	for _, g := range gauges {
		query := g.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: metricPrefix + g.name, Help: g.help},
			func() float64 { return queryCount(db, logger, query) },
		))
	}
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
