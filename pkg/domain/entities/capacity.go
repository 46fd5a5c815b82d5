package entities

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// CapacityLedgerEntry tracks headroom of one destination bucket
type CapacityLedgerEntry struct {
	Bucket    BucketKey `json:"bucket"`
	Max       Quantity  `json:"max"`
	Current   Quantity  `json:"current"`
	Remaining Quantity  `json:"remaining"`
	Workday   bool      `json:"workday"`
}

// UsageRate returns current/max as a fraction
func (e CapacityLedgerEntry) UsageRate() decimal.Decimal {
	return Ratio(e.Current, e.Max)
}

// CapacityLedger is the per-run record of remaining headroom per bucket.
// It is the only mutable state of a run and is never shared between runs.
type CapacityLedger struct {
	entries map[BucketKey]*CapacityLedgerEntry
	order   []BucketKey
}

// NewCapacityLedger creates an empty ledger
func NewCapacityLedger() *CapacityLedger {
	return &CapacityLedger{
		entries: make(map[BucketKey]*CapacityLedgerEntry),
	}
}

// Add registers a bucket. Adding an existing bucket replaces its entry in place.
func (l *CapacityLedger) Add(entry CapacityLedgerEntry) {
	if _, exists := l.entries[entry.Bucket]; !exists {
		l.order = append(l.order, entry.Bucket)
	}
	e := entry
	l.entries[entry.Bucket] = &e
}

// Get returns a copy of the entry for a bucket
func (l *CapacityLedger) Get(bucket BucketKey) (CapacityLedgerEntry, bool) {
	entry, ok := l.entries[bucket]
	if !ok {
		return CapacityLedgerEntry{}, false
	}
	return *entry, true
}

// Remaining returns the headroom of a bucket, or false when the bucket is unknown
func (l *CapacityLedger) Remaining(bucket BucketKey) (Quantity, bool) {
	entry, ok := l.entries[bucket]
	if !ok {
		return 0, false
	}
	return entry.Remaining, true
}

// Reserve subtracts qty from the bucket's headroom
func (l *CapacityLedger) Reserve(bucket BucketKey, qty Quantity) error {
	entry, ok := l.entries[bucket]
	if !ok {
		return fmt.Errorf("no capacity entry for bucket %s", bucket)
	}
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}
	if qty > entry.Remaining {
		return fmt.Errorf("bucket %s has %d remaining, cannot reserve %d", bucket, entry.Remaining, qty)
	}
	entry.Remaining -= qty
	return nil
}

// Buckets returns the ledger buckets in insertion order
func (l *CapacityLedger) Buckets() []BucketKey {
	buckets := make([]BucketKey, len(l.order))
	copy(buckets, l.order)
	return buckets
}

// Entries returns copies of all entries in insertion order
func (l *CapacityLedger) Entries() []CapacityLedgerEntry {
	entries := make([]CapacityLedgerEntry, 0, len(l.order))
	for _, bucket := range l.order {
		entries = append(entries, *l.entries[bucket])
	}
	return entries
}

// Len returns the number of buckets
func (l *CapacityLedger) Len() int {
	return len(l.order)
}

// Clone returns an independent copy of the ledger
func (l *CapacityLedger) Clone() *CapacityLedger {
	clone := &CapacityLedger{
		entries: make(map[BucketKey]*CapacityLedgerEntry, len(l.entries)),
		order:   make([]BucketKey, len(l.order)),
	}
	copy(clone.order, l.order)
	for bucket, entry := range l.entries {
		e := *entry
		clone.entries[bucket] = &e
	}
	return clone
}

// ByHeadroom returns the given buckets that exist with remaining > 0, most headroom first.
// Ties are broken by date, then line.
func (l *CapacityLedger) ByHeadroom(buckets []BucketKey) []BucketKey {
	var ranked []BucketKey
	for _, bucket := range buckets {
		if entry, ok := l.entries[bucket]; ok && entry.Remaining > 0 {
			ranked = append(ranked, bucket)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := l.entries[ranked[i]].Remaining, l.entries[ranked[j]].Remaining
		if ri != rj {
			return ri > rj
		}
		if ranked[i].Date != ranked[j].Date {
			return ranked[i].Date < ranked[j].Date
		}
		return ranked[i].Line < ranked[j].Line
	})
	return ranked
}

// Ratio returns numerator/denominator as a decimal, zero when the denominator is zero
func Ratio(numerator, denominator Quantity) decimal.Decimal {
	if denominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(numerator)).Div(decimal.NewFromInt(int64(denominator)))
}
