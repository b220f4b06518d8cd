package repository

import (
	"strings"
	"testing"
	"time"

	"FloodCast/internal/domain/models"
	domrepo "FloodCast/internal/domain/repository"
)

func sampleReading() *models.Reading {
	return &models.Reading{
		Station:     "thu-bon-01",
		Timestamp:   time.Date(2024, 10, 2, 6, 0, 0, 0, time.UTC),
		RainfallMM:  12.5,
		RiverLevelM: 3.4,
		Source:      "gauge",
	}
}

func TestBucketedQueriesUseInjectedTable(t *testing.T) {
	const table = "hydrology.sensor_rows"

	for name, q := range map[string]string{
		"range":  bucketedReadingsQuery(table, "1 HOUR"),
		"latest": latestBucketsQuery(table, "1 HOUR"),
	} {
		if !strings.Contains(q, "FROM "+table) {
			t.Fatalf("%s query missing injected table %q:\n%s", name, table, q)
		}
		if strings.Contains(q, "floodcast.") {
			t.Fatalf("%s query still references a hardcoded database:\n%s", name, q)
		}
	}
}

func TestBucketedQueryShape(t *testing.T) {
	q := bucketedReadingsQuery("db.t", "15 MINUTE")
	for _, want := range []string{
		"toStartOfInterval(ts, INTERVAL 15 MINUTE)",
		"sum(rainfall_mm)",
		"argMax(river_level_m, ts)",
		"ORDER BY bucket ASC",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("query missing %q:\n%s", want, q)
		}
	}

	latest := latestBucketsQuery("db.t", "1 DAY")
	if !strings.Contains(latest, "ORDER BY bucket DESC") || !strings.Contains(latest, "LIMIT ?") {
		t.Fatalf("latest query should take newest buckets first:\n%s", latest)
	}
	if !strings.HasSuffix(strings.TrimSpace(latest), "ORDER BY bucket ASC") {
		t.Fatalf("latest query should re-sort chronologically:\n%s", latest)
	}
}

func TestIntervalForRes(t *testing.T) {
	cases := map[domrepo.Resolution]string{
		domrepo.Res15m: "15 MINUTE",
		domrepo.Res1h:  "1 HOUR",
		domrepo.Res1d:  "1 DAY",
	}
	for res, want := range cases {
		got, err := intervalForRes(res)
		if err != nil {
			t.Fatalf("intervalForRes(%s): %v", res, err)
		}
		if got != want {
			t.Fatalf("intervalForRes(%s) = %q, want %q", res, got, want)
		}
	}
	if _, err := intervalForRes(domrepo.Resolution("5m")); err == nil {
		t.Fatal("expected error for unsupported resolution")
	}
}

func TestReadingRowOrdering(t *testing.T) {
	r := sampleReading()
	row := readingRow(r)
	if len(row) != len(readingCols) {
		t.Fatalf("row has %d values for %d columns", len(row), len(readingCols))
	}
	if row[1] != r.Station {
		t.Fatalf("station column = %v", row[1])
	}
	eventID, ok := row[5].(string)
	if !ok || !strings.HasPrefix(eventID, r.Station+"-") {
		t.Fatalf("event id = %v, want station-prefixed key", row[5])
	}
}
