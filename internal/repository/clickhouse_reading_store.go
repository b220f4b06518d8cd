package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FloodCast/internal/domain/models"
	domrepo "FloodCast/internal/domain/repository"
	pkgch "FloodCast/pkg/clickhouse"
	applogger "FloodCast/pkg/logger"
	"FloodCast/pkg/util"
)

// CHReadingStore implements ReadingStore backed by ClickHouse. Raw gauge
// rows are bucketed to the requested resolution at query time: rainfall is
// summed over the bucket, the river level is the last observation in it.
type CHReadingStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHReadingStore creates the read-side store over the given qualified
// table (database.table).
func NewCHReadingStore(ch *pkgch.Client, table string) *CHReadingStore {
	return &CHReadingStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHReadingStore) SetLogger(l *applogger.Logger) { s.l = l }

// bucketedReadingsQuery selects aggregated buckets for a station over a
// closed time range, oldest first.
func bucketedReadingsQuery(table, interval string) string {
	return fmt.Sprintf(`
        SELECT toStartOfInterval(ts, INTERVAL %s) AS bucket,
               sum(rainfall_mm) AS rainfall,
               argMax(river_level_m, ts) AS level,
               station
        FROM %s
        WHERE station = ? AND ts >= ? AND ts <= ?
        GROUP BY bucket, station
        ORDER BY bucket ASC
    `, interval, table)
}

// latestBucketsQuery selects the newest n aggregated buckets for a station,
// re-sorted into chronological order for windowing.
func latestBucketsQuery(table, interval string) string {
	return fmt.Sprintf(`
        SELECT bucket, rainfall, level, station FROM (
            SELECT toStartOfInterval(ts, INTERVAL %s) AS bucket,
                   sum(rainfall_mm) AS rainfall,
                   argMax(river_level_m, ts) AS level,
                   station
            FROM %s
            WHERE station = ?
            GROUP BY bucket, station
            ORDER BY bucket DESC
            LIMIT ?
        )
        ORDER BY bucket ASC
    `, interval, table)
}

func (s *CHReadingStore) GetReadings(ctx context.Context, station string, from, to time.Time, res domrepo.Resolution) ([]models.Reading, error) {
	start := time.Now()
	interval, err := intervalForRes(res)
	if err != nil {
		return nil, err
	}
	from, to = util.AlignFromTo(from, to, string(res))

	rows, err := s.db.QueryContext(ctx, bucketedReadingsQuery(s.table, interval), station, from, to)
	if err != nil {
		s.logQueryError("get_readings", station, res, err)
		return nil, fmt.Errorf("get readings: %w", err)
	}
	defer rows.Close()

	out, err := scanReadings(rows, 1024)
	if err != nil {
		s.logQueryError("get_readings", station, res, err)
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse get_readings ok",
			applogger.String("station", station),
			applogger.String("res", string(res)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHReadingStore) GetLatestNReadings(ctx context.Context, station string, n int, res domrepo.Resolution) ([]models.Reading, error) {
	start := time.Now()
	interval, err := intervalForRes(res)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, latestBucketsQuery(s.table, interval), station, n)
	if err != nil {
		s.logQueryError("latest_readings", station, res, err)
		return nil, fmt.Errorf("get latest readings: %w", err)
	}
	defer rows.Close()

	out, err := scanReadings(rows, n)
	if err != nil {
		s.logQueryError("latest_readings", station, res, err)
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_readings ok",
			applogger.String("station", station),
			applogger.String("res", string(res)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func scanReadings(rows *sql.Rows, sizeHint int) ([]models.Reading, error) {
	out := make([]models.Reading, 0, sizeHint)
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.Timestamp, &r.RainfallMM, &r.RiverLevelM, &r.Station); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHReadingStore) logQueryError(op, station string, res domrepo.Resolution, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+op+" error",
		applogger.String("station", station),
		applogger.String("res", string(res)),
		applogger.Error(err),
	)
}

func intervalForRes(res domrepo.Resolution) (string, error) {
	switch res {
	case domrepo.Res15m:
		return "15 MINUTE", nil
	case domrepo.Res1h:
		return "1 HOUR", nil
	case domrepo.Res1d:
		return "1 DAY", nil
	default:
		return "", fmt.Errorf("unsupported resolution: %s", res)
	}
}
