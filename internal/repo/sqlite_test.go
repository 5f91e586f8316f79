package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/ferux/tankhub/internal/config"
	"github.com/ferux/tankhub/internal/model"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()

	db, err := Open(config.Store{
		Path:     filepath.Join(t.TempDir(), "tankhub.db"),
		PoolSize: 2,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testRecord(id, secret, hw string) model.DeviceRecord {
	return model.DeviceRecord{
		ID:             id,
		Name:           "Tank " + id,
		Location:       model.DefaultLocation,
		Capacity:       model.DefaultCapacity,
		Height:         model.DefaultHeight,
		AlertThreshold: model.DefaultAlertThreshold,
		Secret:         secret,
		HardwareID:     hw,
		IP:             "10.0.0.2",
	}
}

func TestTanks(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := openTest(t)

	is.NoErr(db.Insert(ctx, testRecord("tank_b", "s2", "")))
	is.NoErr(db.Insert(ctx, testRecord("tank_a", "s1", "hw-1")))

	got, err := db.Find(ctx, "s1")
	is.NoErr(err)
	is.Equal(got, testRecord("tank_a", "s1", "hw-1"))

	got, err = db.FindByHardwareID(ctx, "hw-1")
	is.NoErr(err)
	is.Equal(got.ID, "tank_a")

	got, err = db.FindByID(ctx, "tank_b")
	is.NoErr(err)
	is.Equal(got.HardwareID, "")

	_, err = db.Find(ctx, "missing")
	is.True(errors.Is(err, model.ErrNotFound))

	_, err = db.Find(ctx, "")
	is.True(errors.Is(err, model.ErrNotFound))

	list, err := db.List(ctx)
	is.NoErr(err)
	is.Equal(len(list), 2)
	is.Equal(list[0].ID, "tank_a")
	is.Equal(list[1].ID, "tank_b")
}

func TestInsertConflict(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := openTest(t)

	is.NoErr(db.Insert(ctx, testRecord("tank_a", "s1", "hw-1")))

	err := db.Insert(ctx, testRecord("tank_b", "s2", "hw-1"))
	is.True(errors.Is(err, model.ErrConflict)) // same hardware id

	err = db.Insert(ctx, testRecord("tank_c", "s1", "hw-3"))
	is.True(errors.Is(err, model.ErrConflict)) // same secret

	is.NoErr(db.Insert(ctx, testRecord("tank_d", "s4", "")))
	is.NoErr(db.Insert(ctx, testRecord("tank_e", "s5", ""))) // several without hardware id
}

func TestUpdateConfig(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := openTest(t)

	is.NoErr(db.Insert(ctx, testRecord("tank_a", "s1", "")))

	name, capacity := "Roof", 8000
	rec, err := db.UpdateConfig(ctx, "tank_a", model.ConfigPatch{Name: &name, Capacity: &capacity})
	is.NoErr(err)
	is.Equal(rec.Name, "Roof")
	is.Equal(rec.Capacity, 8000)
	is.Equal(rec.Height, model.DefaultHeight)
	is.Equal(rec.Secret, "s1")

	stored, err := db.Find(ctx, "s1")
	is.NoErr(err)
	is.Equal(stored, rec)

	_, err = db.UpdateConfig(ctx, "tank_x", model.ConfigPatch{Name: &name})
	is.True(errors.Is(err, model.ErrNotFound))

	is.NoErr(db.UpdateIP(ctx, "s1", "10.0.0.9"))
	stored, err = db.Find(ctx, "s1")
	is.NoErr(err)
	is.Equal(stored.IP, "10.0.0.9")
}

func TestDelete(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := openTest(t)

	is.NoErr(db.Insert(ctx, testRecord("tank_a", "s1", "hw-1")))

	rec, err := db.Delete(ctx, "tank_a")
	is.NoErr(err)
	is.Equal(rec.Secret, "s1")

	_, err = db.Find(ctx, "s1")
	is.True(errors.Is(err, model.ErrNotFound))

	_, err = db.Delete(ctx, "tank_a")
	is.True(errors.Is(err, model.ErrNotFound))

	// hardware id is free again
	is.NoErr(db.Insert(ctx, testRecord("tank_b", "s2", "hw-1")))
}

func TestReadings(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := openTest(t)
	now := time.Unix(1_700_000_000, 0)

	is.NoErr(db.Insert(ctx, testRecord("tank_a", "s1", "")))
	is.NoErr(db.Insert(ctx, testRecord("tank_b", "s2", "")))

	for i := 0; i < 5; i++ {
		ts := now.Add(time.Duration(i-4) * time.Hour).Unix()
		is.NoErr(db.Append(ctx, model.HistorySample{DeviceID: "tank_a", Level: 10 * i, Timestamp: ts}))
		is.NoErr(db.Append(ctx, model.HistorySample{DeviceID: "tank_b", Level: i, Timestamp: ts}))
	}
	is.NoErr(db.Append(ctx, model.HistorySample{DeviceID: "tank_gone", Level: 1, Timestamp: now.Unix()}))

	samples, err := db.Samples(ctx, "tank_a", now.Add(-150*time.Minute), 100)
	is.NoErr(err)
	is.Equal(len(samples), 3)
	is.Equal(samples[0].Level, 40) // newest first
	is.Equal(samples[2].Level, 20)

	samples, err = db.Samples(ctx, "tank_a", now.Add(-24*time.Hour), 2)
	is.NoErr(err)
	is.Equal(len(samples), 2)

	fleet, err := db.FleetSamples(ctx, now.Add(-24*time.Hour), 100)
	is.NoErr(err)
	is.Equal(len(fleet), 10) // readings of unknown tanks are skipped

	deleted, err := db.PruneOlderThan(ctx, now.Add(-2*time.Hour))
	is.NoErr(err)
	is.Equal(deleted, 4)

	fleet, err = db.FleetSamples(ctx, now.Add(-24*time.Hour), 100)
	is.NoErr(err)
	is.Equal(len(fleet), 6)
}
