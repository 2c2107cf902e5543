package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trakrf/platform/internal/auth"
)

// fake_reader emulates a fleet of RFID readers: it cycles through a
// set of tag values and locations and posts signed scan events to the
// ingest endpoint at a steady rate.

type config struct {
	baseURL   string
	secret    string
	orgID     string
	readerID  string
	tagPrefix string
	tagType   string
	tagCount  int
	locations []string
	interval  time.Duration
	count     int
}

type scanEvent struct {
	OrgID      string `json:"org_id"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Location   string `json:"location"`
	ReaderID   string `json:"reader_id"`
	ObservedAt int64  `json:"observed_at"`
}

func main() {
	cfg := parseConfig()
	if cfg.baseURL == "" {
		log.Fatal("base-url is required")
	}
	if cfg.secret == "" {
		log.Fatal("INGEST_HMAC_SECRET is required")
	}
	if cfg.tagCount <= 0 {
		log.Fatal("tag-count must be > 0")
	}
	if len(cfg.locations) == 0 {
		log.Fatal("locations is required")
	}

	rand.Seed(time.Now().UnixNano())
	client := &http.Client{Timeout: 10 * time.Second}
	endpoint := strings.TrimRight(cfg.baseURL, "/") + "/ingest/scan"

	log.Printf("fake reader posting to %s: org=%s tags=%d locations=%d interval=%s",
		endpoint, cfg.orgID, cfg.tagCount, len(cfg.locations), cfg.interval)

	statuses := map[int]int{}
	sent := 0
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for range ticker.C {
		event := scanEvent{
			OrgID:      cfg.orgID,
			Type:       cfg.tagType,
			Value:      fmt.Sprintf("%s%06d", cfg.tagPrefix, rand.Intn(cfg.tagCount)+1),
			Location:   cfg.locations[rand.Intn(len(cfg.locations))],
			ReaderID:   cfg.readerID,
			ObservedAt: time.Now().UnixMilli(),
		}
		status, err := postEvent(client, endpoint, []byte(cfg.secret), event)
		if err != nil {
			log.Printf("post error: %v", err)
		} else {
			statuses[status]++
			if status >= 300 && status != http.StatusNotFound {
				log.Printf("unexpected status %d for tag %s", status, event.Value)
			}
		}
		sent++
		if cfg.count > 0 && sent >= cfg.count {
			break
		}
	}

	log.Printf("fake reader done: sent=%d statuses=%v", sent, statuses)
}

func postEvent(client *http.Client, endpoint string, secret []byte, event scanEvent) (int, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", auth.ComputeIngestSignature(secret, timestamp, body))

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func parseConfig() config {
	cfg := config{}
	var locations string
	flag.StringVar(&cfg.baseURL, "base-url", getenvDefault("BASE_URL", "http://localhost:8080"), "platform base URL")
	flag.StringVar(&cfg.secret, "secret", getenvDefault("INGEST_HMAC_SECRET", ""), "ingest HMAC secret")
	flag.StringVar(&cfg.orgID, "org-id", getenvDefault("ORG_ID", "org-demo"), "org id stamped on events")
	flag.StringVar(&cfg.readerID, "reader-id", getenvDefault("READER_ID", "reader-fake-1"), "reader id stamped on events")
	flag.StringVar(&cfg.tagPrefix, "tag-prefix", getenvDefault("TAG_PREFIX", "E200-org-demo-"), "tag value prefix")
	flag.StringVar(&cfg.tagType, "tag-type", getenvDefault("TAG_TYPE", "rfid"), "tag identifier type")
	flag.IntVar(&cfg.tagCount, "tag-count", getenvIntDefault("TAG_COUNT", 100), "number of distinct tag values to cycle")
	flag.StringVar(&locations, "locations", getenvDefault("LOCATIONS", "LOC-0001,LOC-0002,LOC-0003"), "comma-separated location customer identifiers")
	flag.DurationVar(&cfg.interval, "interval", getenvDurationDefault("INTERVAL", time.Second), "delay between events")
	flag.IntVar(&cfg.count, "count", getenvIntDefault("COUNT", 0), "events to send before exiting (0 = forever)")
	flag.Parse()

	for _, location := range strings.Split(locations, ",") {
		location = strings.TrimSpace(location)
		if location != "" {
			cfg.locations = append(cfg.locations, location)
		}
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
