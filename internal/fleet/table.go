// Package fleet holds the live state of every paired device.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/ferux/tankhub/internal/model"
)

type entry struct {
	id   string
	born uint64

	mu      sync.Mutex
	state   model.LiveState
	removed bool
}

// Table maps device secrets to live states. The map lock is held only
// for lookups and membership changes; every entry carries its own lock
// so devices never block each other.
//
// Membership changes advance a generation. Secrets removed by public id
// are tombstoned with the generation of the removal, so loads of the
// durable records that started earlier cannot bring them back.
type Table struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	byID       map[string]string
	tombstones map[string]uint64
	gen        uint64
	loaded     uint64
}

// NewTable makes an empty table.
func NewTable() *Table {
	return &Table{
		entries:    make(map[string]*entry),
		byID:       make(map[string]string),
		tombstones: make(map[string]uint64),
	}
}

// Generation returns the current membership generation. Loads read it
// before listing records and pass it to ReplaceSince.
func (t *Table) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.gen
}

func (t *Table) lookup(secret string) *entry {
	t.mu.RLock()
	e := t.entries[secret]
	t.mu.RUnlock()

	return e
}

// all returns entries without holding the map lock afterwards.
func (t *Table) all() []*entry {
	t.mu.RLock()
	list := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		list = append(list, e)
	}
	t.mu.RUnlock()

	return list
}

// Get returns a copy of the state of secret.
func (t *Table) Get(secret string) (model.LiveState, bool) {
	e := t.lookup(secret)
	if e == nil {
		return model.LiveState{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return model.LiveState{}, false
	}

	return copyState(e.state), true
}

// Upsert merges configuration of rec into the entry of secret creating
// it when missing. Observed fields of an existing entry are preserved.
// When fn is not nil it runs on the entry under the entry lock. Secrets
// removed by public id are refused.
func (t *Table) Upsert(secret string, rec model.DeviceRecord, fn func(*model.LiveState)) (model.LiveState, bool) {
	t.mu.Lock()
	if _, dead := t.tombstones[secret]; dead {
		t.mu.Unlock()
		return model.LiveState{}, false
	}

	e, ok := t.entries[secret]
	if !ok {
		t.gen++
		e = &entry{id: rec.ID, born: t.gen, state: model.NewLiveState(rec)}
		t.entries[secret] = e
	}
	t.byID[rec.ID] = secret
	t.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.ApplyRecord(rec)
	if fn != nil {
		fn(&e.state)
		e.state.Volume = model.VolumeOf(e.state.Level, e.state.Capacity)
	}

	return copyState(e.state), true
}

// Update mutates the existing entry of secret. The change is committed
// only when fn returns true. Removed entries are never brought back.
func (t *Table) Update(secret string, fn func(*model.LiveState) bool) (before, after model.LiveState, ok bool) {
	e := t.lookup(secret)
	if e == nil {
		return model.LiveState{}, model.LiveState{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return model.LiveState{}, model.LiveState{}, false
	}

	before = copyState(e.state)
	next := copyState(e.state)
	if !fn(&next) {
		return before, before, false
	}

	next.Volume = model.VolumeOf(next.Level, next.Capacity)
	e.state = next

	return before, copyState(next), true
}

// SecretByID resolves a public id into the device secret.
func (t *Table) SecretByID(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	secret, ok := t.byID[id]

	return secret, ok
}

// RemoveByPublicID drops the entry with public id and returns its secret.
// The secret stays tombstoned until a load started after the removal
// lists it again.
func (t *Table) RemoveByPublicID(id string) (secret string, removed bool) {
	t.mu.Lock()
	secret, ok := t.byID[id]
	var e *entry
	if ok {
		t.gen++
		t.tombstones[secret] = t.gen
		e = t.entries[secret]
		delete(t.entries, secret)
		delete(t.byID, id)
	}
	t.mu.Unlock()

	if e == nil {
		return secret, false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	return secret, true
}

// SnapshotAll returns public views of every entry ordered by id.
func (t *Table) SnapshotAll() []model.PublicView {
	entries := t.all()
	views := make([]model.PublicView, 0, len(entries))

	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			views = append(views, e.state.Public())
		}
		e.mu.Unlock()
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	return views
}

// ExpireStale marks offline every online entry last seen more than
// timeout before now and returns the transitioned states. The alert band
// is cleared so a device returning in the same band alerts again.
func (t *Table) ExpireStale(now time.Time, timeout time.Duration) []model.LiveState {
	var expired []model.LiveState

	for _, e := range t.all() {
		e.mu.Lock()
		if !e.removed && e.state.Online && now.Sub(e.state.LastSeen) > timeout {
			e.state.Online = false
			e.state.Status = model.StatusOffline
			e.state.Band = model.BandNone
			expired = append(expired, copyState(e.state))
		}
		e.mu.Unlock()
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	return expired
}

// Replace makes the table mirror records. Existing entries keep their
// observed fields, new ones start offline and entries missing from
// records are dropped.
func (t *Table) Replace(records []model.DeviceRecord) {
	t.ReplaceSince(t.Generation(), records)
}

// ReplaceSince is Replace for records listed at generation since. It
// returns false and changes nothing when a load started later has been
// applied already. Secrets removed after since are skipped and entries
// created after since are kept.
func (t *Table) ReplaceSince(since uint64, records []model.DeviceRecord) bool {
	type pending struct {
		e   *entry
		rec model.DeviceRecord
	}

	var (
		existing []pending
		dropped  []*entry
	)

	t.mu.Lock()
	if since < t.loaded {
		t.mu.Unlock()
		return false
	}

	t.gen++
	t.loaded = since

	entries := make(map[string]*entry, len(records))
	byID := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Secret == "" {
			continue
		}

		if removedAt, dead := t.tombstones[rec.Secret]; dead {
			if removedAt > since {
				continue
			}
			delete(t.tombstones, rec.Secret)
		}

		if e, ok := t.entries[rec.Secret]; ok {
			existing = append(existing, pending{e: e, rec: rec})
			entries[rec.Secret] = e
		} else {
			entries[rec.Secret] = &entry{id: rec.ID, born: t.gen, state: model.NewLiveState(rec)}
		}
		byID[rec.ID] = rec.Secret
	}

	for secret, e := range t.entries {
		if _, ok := entries[secret]; ok {
			continue
		}

		if e.born > since {
			entries[secret] = e
			byID[e.id] = secret
			continue
		}

		dropped = append(dropped, e)
	}

	t.entries = entries
	t.byID = byID
	t.mu.Unlock()

	for _, p := range existing {
		p.e.mu.Lock()
		p.e.state.ApplyRecord(p.rec)
		p.e.mu.Unlock()
	}

	for _, e := range dropped {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}

	return true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

func copyState(s model.LiveState) model.LiveState {
	if s.RSSI != nil {
		rssi := *s.RSSI
		s.RSSI = &rssi
	}

	return s
}
