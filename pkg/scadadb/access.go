package scadadb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
)

// InsertNormalizedBatches persists every batch in one transaction so the
// wide and tall representations become visible together or not at all.
func InsertNormalizedBatches(batches []types.NormalizedBatch) error {
	if len(batches) == 0 {
		return nil
	}
	db := GetDB()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	wideStmt, err := tx.Prepare(
		"INSERT INTO wide_readings " +
			"(batch_id, station_group, timestamp, par_sensor, solar_radiation, wind_speed, " +
			"wind_direction, temperature, humidity, pressure, rainfall) " +
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer wideStmt.Close()

	tallStmt, err := tx.Prepare(
		"INSERT INTO tall_readings (batch_id, station_group, tag, timestamp, value) " +
			"VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer tallStmt.Close()

	for _, batch := range batches {
		w := batch.Wide
		if w != nil {
			_, err = wideStmt.Exec(
				w.BatchID,
				w.Group,
				w.Timestamp.UnixMilli(),
				w.ParSensor,
				w.SolarRadiation,
				w.WindSpeed,
				w.WindDirection,
				w.Temperature,
				w.Humidity,
				w.Pressure,
				w.Rainfall,
			)
			if err != nil {
				return fmt.Errorf("insert wide reading %s: %w", w.BatchID, err)
			}
		}
		for _, t := range batch.Talls {
			_, err = tallStmt.Exec(
				t.BatchID,
				t.Group,
				t.Tag,
				t.Timestamp.UnixMilli(),
				t.Value,
			)
			if err != nil {
				return fmt.Errorf("insert tall reading %s/%s: %w", t.BatchID, t.Tag, err)
			}
		}
	}

	return tx.Commit()
}

// GetLatestWideReading returns the most recent record for a station group,
// or nil when none exists.
func GetLatestWideReading(group string) (*types.WideReading, error) {
	db := GetDB()

	row := db.QueryRow(
		"SELECT batch_id, station_group, timestamp, par_sensor, solar_radiation, wind_speed, "+
			"wind_direction, temperature, humidity, pressure, rainfall "+
			"FROM wide_readings WHERE station_group = ? "+
			"ORDER BY timestamp DESC, id DESC LIMIT 1",
		group,
	)

	w, err := scanWideReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// QueryTagRange returns the ordered raw points for one tag in [start, end].
func QueryTagRange(tag string, start, end time.Time) (types.Series, error) {
	db := GetDB()

	rows, err := db.Query(
		"SELECT timestamp, value FROM tall_readings "+
			"WHERE tag = ? AND timestamp >= ? AND timestamp <= ? "+
			"ORDER BY timestamp ASC, id ASC",
		tag, start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series types.Series
	for rows.Next() {
		var ms int64
		var value float64
		if err := rows.Scan(&ms, &value); err != nil {
			return nil, err
		}
		v := value
		series = append(series, types.SeriesPoint{
			Timestamp: time.UnixMilli(ms).UTC(),
			Value:     &v,
		})
	}
	return series, rows.Err()
}

// QueryTagMetrics computes count/min/max/avg per tag over every persisted
// tall reading, plus the identity of the newest batch. An empty dataset
// yields an empty map and a nil batch info, not an error.
func QueryTagMetrics() (map[string]TagMetrics, *LastBatchInfo, error) {
	db := GetDB()

	rows, err := db.Query(
		"SELECT tag, COUNT(*), MIN(value), MAX(value), AVG(value) " +
			"FROM tall_readings GROUP BY tag")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	metrics := make(map[string]TagMetrics)
	for rows.Next() {
		var tag string
		var m TagMetrics
		if err := rows.Scan(&tag, &m.Count, &m.Min, &m.Max, &m.Avg); err != nil {
			return nil, nil, err
		}
		metrics[tag] = m
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var batchID, group string
	var ms int64
	err = db.QueryRow(
		"SELECT batch_id, station_group, timestamp FROM wide_readings " +
			"ORDER BY timestamp DESC, id DESC LIMIT 1").Scan(&batchID, &group, &ms)
	if err == sql.ErrNoRows {
		return metrics, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return metrics, &LastBatchInfo{
		BatchID:   batchID,
		Group:     group,
		Timestamp: time.UnixMilli(ms).UTC(),
	}, nil
}

// QueryWideHistory returns one page of wide readings plus the total row
// count for the filter.
func QueryWideHistory(filter HistoryFilter) ([]types.WideReading, int, error) {
	db := GetDB()

	where := "WHERE 1=1"
	args := []any{}
	if filter.Group != "" {
		where += " AND station_group = ?"
		args = append(args, filter.Group)
	}
	if !filter.Start.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.Start.UnixMilli())
	}
	if !filter.End.IsZero() {
		where += " AND timestamp <= ?"
		args = append(args, filter.End.UnixMilli())
	}
	if filter.Search != "" {
		where += " AND (station_group LIKE ? OR batch_id LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM wide_readings "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if filter.Sort == HistorySortAsc {
		order = "ASC"
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := db.Query(
		"SELECT batch_id, station_group, timestamp, par_sensor, solar_radiation, wind_speed, "+
			"wind_direction, temperature, humidity, pressure, rainfall "+
			"FROM wide_readings "+where+
			" ORDER BY timestamp "+order+", id "+order+" LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var readings []types.WideReading
	for rows.Next() {
		w, err := scanWideReading(rows)
		if err != nil {
			return nil, 0, err
		}
		readings = append(readings, *w)
	}
	return readings, total, rows.Err()
}

// CountTallByBatch returns how many tall rows exist for a batch id.
func CountTallByBatch(batchID string) (int, error) {
	db := GetDB()
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM tall_readings WHERE batch_id = ?", batchID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWideReading(row rowScanner) (*types.WideReading, error) {
	var w types.WideReading
	var ms int64
	err := row.Scan(
		&w.BatchID,
		&w.Group,
		&ms,
		&w.ParSensor,
		&w.SolarRadiation,
		&w.WindSpeed,
		&w.WindDirection,
		&w.Temperature,
		&w.Humidity,
		&w.Pressure,
		&w.Rainfall,
	)
	if err != nil {
		return nil, err
	}
	w.Timestamp = time.UnixMilli(ms).UTC()
	return &w, nil
}
