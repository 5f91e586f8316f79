package repo

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/ferux/tankhub/internal/model"
)

const tankColumns = `id, name, location, capacity, height, alert_threshold, secret, device_id, ip_address`

func scanTank(stmt *sqlite.Stmt) model.DeviceRecord {
	return model.DeviceRecord{
		ID:             stmt.ColumnText(0),
		Name:           stmt.ColumnText(1),
		Location:       stmt.ColumnText(2),
		Capacity:       stmt.ColumnInt(3),
		Height:         stmt.ColumnInt(4),
		AlertThreshold: stmt.ColumnInt(5),
		Secret:         stmt.ColumnText(6),
		HardwareID:     stmt.ColumnText(7),
		IP:             stmt.ColumnText(8),
	}
}

func (s *SQLite) findOne(ctx context.Context, where string, arg any) (rec model.DeviceRecord, err error) {
	var found bool

	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+tankColumns+` FROM tanks WHERE `+where+` LIMIT 1`, &sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec = scanTank(stmt)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return model.DeviceRecord{}, fmt.Errorf("selecting tank: %w", err)
	}

	if !found {
		return model.DeviceRecord{}, model.ErrNotFound
	}

	return rec, nil
}

// Find returns the record issued the secret.
func (s *SQLite) Find(ctx context.Context, secret string) (model.DeviceRecord, error) {
	if secret == "" {
		return model.DeviceRecord{}, model.ErrNotFound
	}

	return s.findOne(ctx, "secret = ?", secret)
}

// FindByHardwareID returns the record of the physical device.
func (s *SQLite) FindByHardwareID(ctx context.Context, hardwareID string) (model.DeviceRecord, error) {
	if hardwareID == "" {
		return model.DeviceRecord{}, model.ErrNotFound
	}

	return s.findOne(ctx, "device_id = ?", hardwareID)
}

// FindByID returns the record by public id.
func (s *SQLite) FindByID(ctx context.Context, id string) (model.DeviceRecord, error) {
	return s.findOne(ctx, "id = ?", id)
}

// List returns every record with a secret.
func (s *SQLite) List(ctx context.Context) (records []model.DeviceRecord, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+tankColumns+` FROM tanks WHERE secret IS NOT NULL ORDER BY id`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, scanTank(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing tanks: %w", err)
	}

	return records, nil
}

// Insert stores a new record. Duplicate id, secret or hardware id
// results in model.ErrConflict.
func (s *SQLite) Insert(ctx context.Context, rec model.DeviceRecord) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO tanks (`+tankColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				rec.ID, rec.Name, rec.Location, rec.Capacity, rec.Height, rec.AlertThreshold,
				nullable(rec.Secret), nullable(rec.HardwareID), nullable(rec.IP),
			},
		})
	})

	switch {
	case err == nil:
		return nil
	case isConstraint(err):
		return fmt.Errorf("inserting tank %s: %w", rec.ID, model.ErrConflict)
	default:
		return fmt.Errorf("inserting tank %s: %w", rec.ID, err)
	}
}

// UpdateConfig applies patch to the record with id and returns the result.
func (s *SQLite) UpdateConfig(ctx context.Context, id string, patch model.ConfigPatch) (rec model.DeviceRecord, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endFn, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endFn(&err)

		var found bool
		err = sqlitex.Execute(conn, `SELECT `+tankColumns+` FROM tanks WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec = scanTank(stmt)
				found = true
				return nil
			},
		})
		if err != nil {
			return err
		}

		if !found {
			return model.ErrNotFound
		}

		patch.ApplyTo(&rec)

		return sqlitex.Execute(conn, `UPDATE tanks SET name = ?, location = ?, capacity = ?, height = ?, alert_threshold = ? WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []any{rec.Name, rec.Location, rec.Capacity, rec.Height, rec.AlertThreshold, id},
		})
	})
	if err != nil {
		return model.DeviceRecord{}, fmt.Errorf("updating tank %s: %w", id, err)
	}

	return rec, nil
}

// UpdateIP remembers the last address the device connected from.
func (s *SQLite) UpdateIP(ctx context.Context, secret, ip string) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `UPDATE tanks SET ip_address = ? WHERE secret = ?`, &sqlitex.ExecOptions{
			Args: []any{nullable(ip), secret},
		})
	})
	if err != nil {
		return fmt.Errorf("updating ip: %w", err)
	}

	return nil
}

// Delete removes the record with id and returns it.
func (s *SQLite) Delete(ctx context.Context, id string) (rec model.DeviceRecord, err error) {
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM tanks WHERE id = ? RETURNING `+tankColumns, &sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec = scanTank(stmt)
				return nil
			},
		})
	})
	if err != nil {
		return model.DeviceRecord{}, fmt.Errorf("deleting tank %s: %w", id, err)
	}

	if rec.ID == "" {
		return model.DeviceRecord{}, model.ErrNotFound
	}

	return rec, nil
}
