package repo

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ferux/tankhub/internal/model"
)

// Append stores one history sample.
func (s *SQLite) Append(ctx context.Context, sample model.HistorySample) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO readings (tank_id, level, timestamp) VALUES (?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{sample.DeviceID, sample.Level, sample.Timestamp},
		})
	})
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// PruneOlderThan deletes samples taken before cutoff and returns the
// number of removed rows.
func (s *SQLite) PruneOlderThan(ctx context.Context, cutoff time.Time) (deleted int, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM readings WHERE timestamp < ?`, &sqlitex.ExecOptions{
			Args: []any{cutoff.Unix()},
		})
		if err != nil {
			return err
		}

		deleted = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning readings: %w", err)
	}

	return deleted, nil
}

func scanSample(stmt *sqlite.Stmt) model.HistorySample {
	return model.HistorySample{
		DeviceID:  stmt.ColumnText(0),
		Level:     stmt.ColumnInt(1),
		Timestamp: stmt.ColumnInt64(2),
	}
}

// Samples returns newest first samples of one device taken after since.
func (s *SQLite) Samples(ctx context.Context, id string, since time.Time, limit int) (samples []model.HistorySample, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT tank_id, level, timestamp FROM readings
			WHERE tank_id = ? AND timestamp > ?
			ORDER BY timestamp DESC, id DESC LIMIT ?`, &sqlitex.ExecOptions{
			Args: []any{id, since.Unix(), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				samples = append(samples, scanSample(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("selecting readings of %s: %w", id, err)
	}

	return samples, nil
}

// FleetSamples returns newest first samples of all known tanks taken
// after since.
func (s *SQLite) FleetSamples(ctx context.Context, since time.Time, limit int) (samples []model.HistorySample, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT r.tank_id, r.level, r.timestamp FROM readings r
			JOIN tanks t ON t.id = r.tank_id
			WHERE r.timestamp > ?
			ORDER BY r.timestamp DESC, r.id DESC LIMIT ?`, &sqlitex.ExecOptions{
			Args: []any{since.Unix(), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				samples = append(samples, scanSample(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("selecting fleet readings: %w", err)
	}

	return samples, nil
}
