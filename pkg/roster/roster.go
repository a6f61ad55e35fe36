// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package roster maintains the directory of known train devices: one sorted
// list of bonded devices, one sorted list of unbonded devices, and the
// currently selected device.
//
// The roster owns the canonical record for every address in a single map;
// the two ordered lists store address keys only. Callers pass and receive
// record values, never references into the roster, so there is exactly one
// source of truth per address and no aliasing between the lists and whatever
// a UI happens to be holding.
//
// All mutations are serialized behind one mutex. Subscribers are notified
// with a fresh snapshot after each mutation completes, never mid-mutation.
package roster

import (
	"sort"
	"sync"

	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

// Snapshot is an immutable copy of the roster state handed to observers.
type Snapshot struct {
	Unbonded []trenes.Record
	Bonded   []trenes.Record
	Selected *trenes.Record
}

// Roster is the device directory. The zero value is not usable; call New.
type Roster struct {
	mu       sync.Mutex
	records  map[string]*trenes.Record
	unbonded []string // address keys, sorted by ShortName
	bonded   []string // address keys, sorted by (DCCCode, LongName)
	selected string   // address key, empty when nothing is selected
	subs     []func(Snapshot)
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{
		records: make(map[string]*trenes.Record),
	}
}

// Subscribe registers fn to be called with a snapshot after every mutation.
// Callbacks run on the mutating goroutine, outside the roster lock. When
// mutations race on different goroutines their snapshots may be delivered
// out of order; each snapshot is complete in itself, so observers should
// treat every delivery as a full replacement rather than an increment.
func (r *Roster) Subscribe(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// UpsertUnbonded inserts or replaces an unbonded record and re-sorts the
// unbonded list. A device that has already bonded is left untouched: repeat
// advertisements must not move it back to the unbonded list.
func (r *Roster) UpsertUnbonded(rec trenes.Record) {
	r.mu.Lock()
	if existing, ok := r.records[rec.Address]; ok && existing.Bonded {
		r.mu.Unlock()
		return
	}
	rec.Bonded = false
	r.storeLocked(rec)
	r.unbonded = addKey(r.unbonded, rec.Address)
	r.sortUnbondedLocked()
	r.finishMutation()
}

// PromoteToBonded moves a device from the unbonded list to the bonded list.
// Called once per device, when a bonding cycle completes.
func (r *Roster) PromoteToBonded(rec trenes.Record) {
	r.mu.Lock()
	rec.Bonded = true
	r.storeLocked(rec)
	r.unbonded = removeKey(r.unbonded, rec.Address)
	r.bonded = addKey(r.bonded, rec.Address)
	r.sortBondedLocked()
	r.finishMutation()
}

// UpdateBonded replaces (or inserts) a bonded record and re-sorts the bonded
// list. Used for every telemetry or field update after bonding.
func (r *Roster) UpdateBonded(rec trenes.Record) {
	r.mu.Lock()
	rec.Bonded = true
	r.storeLocked(rec)
	r.unbonded = removeKey(r.unbonded, rec.Address)
	r.bonded = addKey(r.bonded, rec.Address)
	r.sortBondedLocked()
	r.finishMutation()
}

// ReplaceAll discards the current directory and rebuilds it from recs,
// partitioned by bonded state and sorted. Used for initial snapshot seeding.
// The selection is cleared unless the selected address survives the reload.
func (r *Roster) ReplaceAll(recs []trenes.Record) {
	r.mu.Lock()
	r.records = make(map[string]*trenes.Record, len(recs))
	r.unbonded = r.unbonded[:0]
	r.bonded = r.bonded[:0]
	for _, rec := range recs {
		r.storeLocked(rec)
		if rec.Bonded {
			r.bonded = addKey(r.bonded, rec.Address)
		} else {
			r.unbonded = addKey(r.unbonded, rec.Address)
		}
	}
	r.sortUnbondedLocked()
	r.sortBondedLocked()
	if _, ok := r.records[r.selected]; !ok {
		r.selected = ""
	}
	r.finishMutation()
}

// Select marks the device with the given address as selected. An empty
// address, or one the roster has never seen, clears the selection.
func (r *Roster) Select(address string) {
	r.mu.Lock()
	if _, ok := r.records[address]; ok {
		r.selected = address
	} else {
		r.selected = ""
	}
	r.finishMutation()
}

// Selected returns a copy of the selected device's record, if any.
func (r *Roster) Selected() (trenes.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[r.selected]
	if !ok {
		return trenes.Record{}, false
	}
	return *rec, true
}

// Get returns a copy of the record for address, if known.
func (r *Roster) Get(address string) (trenes.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[address]
	if !ok {
		return trenes.Record{}, false
	}
	return *rec, true
}

// Snapshot returns a copy of the current roster state.
func (r *Roster) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// finishMutation publishes the post-mutation snapshot to subscribers and
// releases the lock. Must be called with the lock held.
func (r *Roster) finishMutation() {
	snap := r.snapshotLocked()
	subs := make([]func(Snapshot), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (r *Roster) snapshotLocked() Snapshot {
	snap := Snapshot{
		Unbonded: make([]trenes.Record, 0, len(r.unbonded)),
		Bonded:   make([]trenes.Record, 0, len(r.bonded)),
	}
	for _, addr := range r.unbonded {
		snap.Unbonded = append(snap.Unbonded, *r.records[addr])
	}
	for _, addr := range r.bonded {
		snap.Bonded = append(snap.Bonded, *r.records[addr])
	}
	if rec, ok := r.records[r.selected]; ok {
		sel := *rec
		snap.Selected = &sel
	}
	return snap
}

func (r *Roster) storeLocked(rec trenes.Record) {
	stored := rec
	r.records[rec.Address] = &stored
}

func (r *Roster) sortUnbondedLocked() {
	sort.SliceStable(r.unbonded, func(i, j int) bool {
		return r.records[r.unbonded[i]].ShortName < r.records[r.unbonded[j]].ShortName
	})
}

func (r *Roster) sortBondedLocked() {
	sort.SliceStable(r.bonded, func(i, j int) bool {
		a, b := r.records[r.bonded[i]], r.records[r.bonded[j]]
		if a.DCCCode != b.DCCCode {
			return a.DCCCode < b.DCCCode
		}
		return a.LongName < b.LongName
	})
}

func addKey(keys []string, addr string) []string {
	for _, k := range keys {
		if k == addr {
			return keys
		}
	}
	return append(keys, addr)
}

func removeKey(keys []string, addr string) []string {
	for i, k := range keys {
		if k == addr {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
