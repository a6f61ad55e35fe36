// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package roster

import (
	"testing"

	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

func unbondedNames(s Snapshot) []string {
	names := make([]string, len(s.Unbonded))
	for i, rec := range s.Unbonded {
		names[i] = rec.ShortName
	}
	return names
}

func TestUpsertUnbonded_SortsByShortName(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("03", "Train03"))
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	got := unbondedNames(r.Snapshot())
	want := []string{"Train01", "Train03"}
	if len(got) != len(want) {
		t.Fatalf("unbonded = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unbonded[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUpsertUnbonded_Idempotent(t *testing.T) {
	r := New()
	rec := trenes.NewRecord("01", "Train01")
	r.UpsertUnbonded(rec)
	once := r.Snapshot()

	r.UpsertUnbonded(rec)
	twice := r.Snapshot()

	if len(twice.Unbonded) != len(once.Unbonded) {
		t.Fatalf("second upsert changed list length: %d -> %d", len(once.Unbonded), len(twice.Unbonded))
	}
	if twice.Unbonded[0] != once.Unbonded[0] {
		t.Errorf("second upsert changed record: %+v -> %+v", once.Unbonded[0], twice.Unbonded[0])
	}
}

func TestUpsertUnbonded_ReplacesInPlace(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	updated := trenes.NewRecord("01", "Train01")
	updated.Speed = 42
	r.UpsertUnbonded(updated)

	snap := r.Snapshot()
	if len(snap.Unbonded) != 1 {
		t.Fatalf("unbonded count = %d, want 1", len(snap.Unbonded))
	}
	if snap.Unbonded[0].Speed != 42 {
		t.Errorf("Speed = %d, want 42", snap.Unbonded[0].Speed)
	}
}

func TestPromoteToBonded(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))
	r.UpsertUnbonded(trenes.NewRecord("02", "Train02"))

	rec, _ := r.Get("01")
	rec.DCCCode = 500
	rec.LongName = "Loco"
	r.PromoteToBonded(rec)

	snap := r.Snapshot()
	if len(snap.Unbonded) != 1 || snap.Unbonded[0].Address != "02" {
		t.Errorf("unbonded after promote = %v", snap.Unbonded)
	}
	if len(snap.Bonded) != 1 || snap.Bonded[0].Address != "01" {
		t.Fatalf("bonded after promote = %v", snap.Bonded)
	}
	if !snap.Bonded[0].Bonded {
		t.Error("promoted record must carry the bonded flag")
	}
}

func TestBondedSortedByDCCThenLongName(t *testing.T) {
	r := New()

	a := trenes.NewRecord("01", "Train01")
	a.DCCCode = 500
	a.LongName = "Loco"
	r.PromoteToBonded(a)

	b := trenes.NewRecord("02", "Train02")
	b.DCCCode = 200
	b.LongName = "Alpha"
	r.PromoteToBonded(b)

	snap := r.Snapshot()
	if len(snap.Bonded) != 2 {
		t.Fatalf("bonded count = %d, want 2", len(snap.Bonded))
	}
	if snap.Bonded[0].DCCCode != 200 || snap.Bonded[0].LongName != "Alpha" {
		t.Errorf("bonded[0] = %+v, want 200/Alpha first", snap.Bonded[0])
	}
	if snap.Bonded[1].DCCCode != 500 || snap.Bonded[1].LongName != "Loco" {
		t.Errorf("bonded[1] = %+v, want 500/Loco second", snap.Bonded[1])
	}
}

func TestBondedSort_LongNameTieBreak(t *testing.T) {
	r := New()
	for _, rec := range []struct{ addr, long string }{
		{"01", "Zeta"},
		{"02", "Alpha"},
		{"03", "Mango"},
	} {
		d := trenes.NewRecord(rec.addr, "T"+rec.addr)
		d.DCCCode = 100
		d.LongName = rec.long
		r.PromoteToBonded(d)
	}

	snap := r.Snapshot()
	want := []string{"Alpha", "Mango", "Zeta"}
	for i, name := range want {
		if snap.Bonded[i].LongName != name {
			t.Errorf("bonded[%d].LongName = %q, want %q", i, snap.Bonded[i].LongName, name)
		}
	}
}

func TestBondedDeviceNeverReappearsUnbonded(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	rec, _ := r.Get("01")
	r.PromoteToBonded(rec)

	// A later discovery event re-advertises the same address.
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	snap := r.Snapshot()
	if len(snap.Unbonded) != 0 {
		t.Errorf("bonded device reappeared in unbonded list: %v", snap.Unbonded)
	}
	if len(snap.Bonded) != 1 || !snap.Bonded[0].Bonded {
		t.Errorf("bonded list disturbed: %v", snap.Bonded)
	}
}

func TestUpdateBonded_ReSorts(t *testing.T) {
	r := New()

	a := trenes.NewRecord("01", "Train01")
	a.DCCCode = 100
	r.PromoteToBonded(a)

	b := trenes.NewRecord("02", "Train02")
	b.DCCCode = 200
	r.PromoteToBonded(b)

	// Re-addressing device 01 past device 02 must reorder the list.
	a.DCCCode = 300
	r.UpdateBonded(a)

	snap := r.Snapshot()
	if snap.Bonded[0].Address != "02" || snap.Bonded[1].Address != "01" {
		t.Errorf("bonded order after update = [%s %s], want [02 01]",
			snap.Bonded[0].Address, snap.Bonded[1].Address)
	}
}

func TestReplaceAll_Partitions(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("stale", "Old"))

	recs := []trenes.Record{
		{Address: "01", ShortName: "Train01", Bonded: false},
		{Address: "02", ShortName: "Train02", DCCCode: 7, Bonded: true},
		{Address: "03", ShortName: "Train03", Bonded: false},
		{Address: "04", ShortName: "Train04", DCCCode: 3, Bonded: true},
	}
	r.ReplaceAll(recs)

	snap := r.Snapshot()
	if len(snap.Unbonded) != 2 || len(snap.Bonded) != 2 {
		t.Fatalf("partition = %d unbonded / %d bonded, want 2/2", len(snap.Unbonded), len(snap.Bonded))
	}
	if snap.Unbonded[0].Address != "01" || snap.Unbonded[1].Address != "03" {
		t.Errorf("unbonded order = %v", unbondedNames(snap))
	}
	if snap.Bonded[0].Address != "04" || snap.Bonded[1].Address != "02" {
		t.Errorf("bonded not sorted by DCC code: %v", snap.Bonded)
	}
	if _, ok := r.Get("stale"); ok {
		t.Error("ReplaceAll kept a record that was not in the input")
	}
}

func TestSelect(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	r.Select("01")
	if sel, ok := r.Selected(); !ok || sel.Address != "01" {
		t.Errorf("Selected = %v, %v", sel, ok)
	}

	r.Select("")
	if _, ok := r.Selected(); ok {
		t.Error("selection should be cleared")
	}

	r.Select("unknown")
	if _, ok := r.Selected(); ok {
		t.Error("selecting an unknown address must clear the selection")
	}
}

func TestSelected_IsACopy(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))
	r.Select("01")

	sel, _ := r.Selected()
	sel.Speed = 99

	stored, _ := r.Get("01")
	if stored.Speed == 99 {
		t.Error("mutating the returned record leaked into the roster")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	r := New()
	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))

	snap := r.Snapshot()
	snap.Unbonded[0].Speed = 99

	stored, _ := r.Get("01")
	if stored.Speed == 99 {
		t.Error("mutating a snapshot leaked into the roster")
	}
}

func TestSubscribe_FiresAfterEachMutation(t *testing.T) {
	r := New()

	var got []Snapshot
	r.Subscribe(func(s Snapshot) {
		got = append(got, s)
	})

	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))
	r.Select("01")

	if len(got) != 2 {
		t.Fatalf("callback count = %d, want 2", len(got))
	}
	if len(got[0].Unbonded) != 1 {
		t.Errorf("first snapshot missing the upserted record")
	}
	if got[1].Selected == nil || got[1].Selected.Address != "01" {
		t.Errorf("second snapshot missing the selection")
	}
}

func TestSubscribe_SnapshotConsistentDuringCallback(t *testing.T) {
	r := New()

	// Re-entering the roster's read side from a callback must not deadlock
	// and must observe the completed mutation.
	r.Subscribe(func(s Snapshot) {
		if _, ok := r.Get("01"); !ok {
			t.Error("callback fired before the mutation was visible")
		}
	})

	r.UpsertUnbonded(trenes.NewRecord("01", "Train01"))
}
