package fleet

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ferux/tankhub/internal/model"
)

func record(n int) model.DeviceRecord {
	return model.DeviceRecord{
		ID:             fmt.Sprintf("tank_%02d", n),
		Name:           fmt.Sprintf("Tank %d", n),
		Location:       "North",
		Capacity:       1000,
		Height:         120,
		AlertThreshold: 10,
		Secret:         fmt.Sprintf("secret-%02d", n),
	}
}

func online(level int, at time.Time) func(*model.LiveState) bool {
	return func(s *model.LiveState) bool {
		s.Level = level
		s.Status = model.StatusOnline
		s.Online = true
		s.LastSeen = at
		return true
	}
}

func TestReplaceNewEntries(t *testing.T) {
	is := is.New(t)
	table := NewTable()

	table.Replace([]model.DeviceRecord{record(2), record(1), {ID: "tank_x", Name: "no secret"}})
	is.Equal(table.Len(), 2)

	state, ok := table.Get("secret-01")
	is.True(ok)
	is.Equal(state.Level, 0)
	is.Equal(state.Status, model.StatusOffline)
	is.True(!state.Online)
	is.Equal(state.Height, 120)

	views := table.SnapshotAll()
	is.Equal(len(views), 2)
	is.Equal(views[0].ID, "tank_01")
	is.Equal(views[1].ID, "tank_02")

	secret, ok := table.SecretByID("tank_02")
	is.True(ok)
	is.Equal(secret, "secret-02")
}

func TestReplacePreservesObservedFields(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	now := time.Now()

	table.Replace([]model.DeviceRecord{record(1)})
	_, _, ok := table.Update("secret-01", online(40, now))
	is.True(ok)

	rec := record(1)
	rec.Name = "Renamed"
	rec.Capacity = 2000
	rec.Location = ""
	rec.Height = 0
	table.Replace([]model.DeviceRecord{rec})

	state, ok := table.Get("secret-01")
	is.True(ok)
	is.Equal(state.Name, "Renamed")
	is.Equal(state.Location, model.UnknownLocation)
	is.Equal(state.Height, model.DefaultHeight)
	is.Equal(state.Level, 40)
	is.Equal(state.Volume, 800)
	is.True(state.Online)
	is.Equal(state.Status, model.StatusOnline)
	is.True(state.LastSeen.Equal(now))
}

func TestReplaceIdempotent(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	records := []model.DeviceRecord{record(1), record(2)}

	table.Replace(records)
	table.Update("secret-02", online(70, time.Now()))
	first := table.SnapshotAll()

	table.Replace(records)
	is.Equal(table.SnapshotAll(), first)
}

func TestReplaceDropsUnknown(t *testing.T) {
	is := is.New(t)
	table := NewTable()

	table.Replace([]model.DeviceRecord{record(1), record(2)})
	table.Replace([]model.DeviceRecord{record(2)})

	_, ok := table.Get("secret-01")
	is.True(!ok)
	_, ok = table.SecretByID("tank_01")
	is.True(!ok)
	is.Equal(table.Len(), 1)
}

func TestUpdate(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})

	before, after, ok := table.Update("secret-01", online(55, time.Now()))
	is.True(ok)
	is.Equal(before.Level, 0)
	is.Equal(after.Level, 55)
	is.Equal(after.Volume, 550)

	// rejected change leaves the entry as is
	_, _, ok = table.Update("secret-01", func(s *model.LiveState) bool {
		s.Level = 99
		return false
	})
	is.True(!ok)
	state, _ := table.Get("secret-01")
	is.Equal(state.Level, 55)

	_, _, ok = table.Update("unknown", online(1, time.Now()))
	is.True(!ok)
}

func TestGetReturnsCopy(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})

	rssi := -60
	table.Update("secret-01", func(s *model.LiveState) bool {
		s.RSSI = &rssi
		return true
	})

	state, _ := table.Get("secret-01")
	*state.RSSI = 0

	state, _ = table.Get("secret-01")
	is.Equal(*state.RSSI, -60)
}

func TestRemoveByPublicID(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})

	secret, removed := table.RemoveByPublicID("tank_01")
	is.True(removed)
	is.Equal(secret, "secret-01")

	_, removed = table.RemoveByPublicID("tank_01")
	is.True(!removed)

	// late telemetry can not resurrect the entry
	_, _, ok := table.Update("secret-01", online(10, time.Now()))
	is.True(!ok)
	is.Equal(len(table.SnapshotAll()), 0)
}

func TestUpsert(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	now := time.Now()

	state, ok := table.Upsert("secret-01", record(1), func(s *model.LiveState) {
		s.Status = model.StatusOnline
		s.Online = true
		s.LastSeen = now
	})
	is.True(ok)
	is.True(state.Online)
	is.Equal(state.Level, 0)

	table.Update("secret-01", online(30, now))

	rec := record(1)
	rec.Name = "Patched"
	state, ok = table.Upsert("secret-01", rec, nil)
	is.True(ok)
	is.Equal(state.Name, "Patched")
	is.Equal(state.Level, 30)
	is.Equal(table.Len(), 1)
}

func TestExpireStale(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	now := time.Now()
	timeout := 15 * time.Second

	table.Replace([]model.DeviceRecord{record(1), record(2), record(3)})
	table.Update("secret-01", online(50, now.Add(-16*time.Second)))
	table.Update("secret-02", online(50, now.Add(-15*time.Second)))

	expired := table.ExpireStale(now, timeout)
	is.Equal(len(expired), 1)
	is.Equal(expired[0].ID, "tank_01")
	is.Equal(expired[0].Status, model.StatusOffline)
	is.True(!expired[0].Online)
	is.Equal(expired[0].Level, 50) // level is kept

	// exactly at the timeout the device is still online
	state, _ := table.Get("secret-02")
	is.True(state.Online)

	is.Equal(len(table.ExpireStale(now, timeout)), 0)
}

func TestConcurrentUpdates(t *testing.T) {
	is := is.New(t)
	table := NewTable()

	var records []model.DeviceRecord
	for i := 0; i < 8; i++ {
		records = append(records, record(i))
	}
	table.Replace(records)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for j := 0; j < 50; j++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				table.Update(fmt.Sprintf("secret-%02d", i), func(s *model.LiveState) bool {
					s.Level++
					return true
				})
			}(i)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := 0; k < 20; k++ {
			table.SnapshotAll()
			table.Replace(records)
		}
	}()

	wg.Wait()

	for _, view := range table.SnapshotAll() {
		is.Equal(view.Level, 50)
		is.Equal(view.Volume, 500)
	}
}

func TestReplaceSinceSkipsLaterRemovals(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1), record(2)})

	gen := table.Generation()
	listed := []model.DeviceRecord{record(1), record(2)}

	table.RemoveByPublicID("tank_01")
	_, ok := table.Upsert("secret-03", record(3), nil)
	is.True(ok)

	is.True(table.ReplaceSince(gen, listed))

	_, ok = table.Get("secret-01")
	is.True(!ok) // removed after the records were listed
	_, ok = table.Get("secret-03")
	is.True(ok) // created after the records were listed
	_, ok = table.SecretByID("tank_03")
	is.True(ok)
	is.Equal(table.Len(), 2)
}

func TestReplaceSinceDiscardsOlderLoads(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})

	stale := table.Generation()
	table.RemoveByPublicID("tank_01")
	is.True(table.ReplaceSince(table.Generation(), nil))

	is.True(!table.ReplaceSince(stale, []model.DeviceRecord{record(1), record(2)}))
	is.Equal(table.Len(), 0)
}

func TestUpsertRefusesRemovedSecret(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})
	table.RemoveByPublicID("tank_01")

	_, ok := table.Upsert("secret-01", record(1), nil)
	is.True(!ok)
	is.Equal(table.Len(), 0)

	// a load listing the record again lifts the tombstone
	table.Replace([]model.DeviceRecord{record(1)})
	_, ok = table.Get("secret-01")
	is.True(ok)
	_, ok = table.Upsert("secret-01", record(1), nil)
	is.True(ok)
}

func TestExpireStaleClearsBand(t *testing.T) {
	is := is.New(t)
	table := NewTable()
	table.Replace([]model.DeviceRecord{record(1)})

	seen := time.Now()
	table.Update("secret-01", func(s *model.LiveState) bool {
		online(5, seen)(s)
		s.Band = s.Classify()
		return true
	})

	state, _ := table.Get("secret-01")
	is.Equal(state.Band, model.BandLow)

	expired := table.ExpireStale(seen.Add(time.Minute), 15*time.Second)
	is.Equal(len(expired), 1)
	is.Equal(expired[0].Band, model.BandNone)
	is.Equal(expired[0].Level, 5)
}
