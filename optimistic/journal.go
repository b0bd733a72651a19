package optimistic

import (
	"github.com/google/uuid"

	"github.com/unkn0wn-root/normcache/record"
)

type change struct {
	id  uuid.UUID
	rec *record.Record
}

// journal holds the speculative history of one record key. snapshot is
// always the in-order merge of every history entry.
type journal struct {
	snapshot *record.Record
	history  []change
}

func newJournal(id uuid.UUID, rec *record.Record) *journal {
	return &journal{
		snapshot: rec.Clone(),
		history:  []change{{id: id, rec: rec.Clone()}},
	}
}

// add appends rec and returns the snapshot fields it changed.
func (j *journal) add(id uuid.UUID, rec *record.Record) record.KeySet {
	j.history = append(j.history, change{id: id, rec: rec.Clone()})
	return j.snapshot.MergeWith(rec)
}

// revert drops every entry of id and rebuilds the snapshot from what is
// left. It returns the snapshot fields whose value changed and whether the
// history is now empty. Merges are not invertible, so there is no
// incremental undo.
func (j *journal) revert(id uuid.UUID) (record.KeySet, bool) {
	kept := j.history[:0]
	for _, c := range j.history {
		if c.id != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(j.history) {
		return record.KeySet{}, false
	}
	// clear the tail so dropped records can be collected
	for i := len(kept); i < len(j.history); i++ {
		j.history[i] = change{}
	}
	j.history = kept

	prev := j.snapshot
	next := record.New(prev.Key)
	for _, c := range j.history {
		next.MergeWith(c.rec)
	}
	j.snapshot = next
	return diff(prev, next), len(j.history) == 0
}

func (j *journal) has(id uuid.UUID) bool {
	for _, c := range j.history {
		if c.id == id {
			return true
		}
	}
	return false
}

// diff lists the "key.fieldKey" entries that differ between two versions.
func diff(a, b *record.Record) record.KeySet {
	out := record.KeySet{}
	for fk, av := range a.Fields {
		if bv, ok := b.Fields[fk]; !ok || !record.Equal(av, bv) {
			out.Add(a.Key + "." + fk)
		}
	}
	for fk := range b.Fields {
		if _, ok := a.Fields[fk]; !ok {
			out.Add(b.Key + "." + fk)
		}
	}
	return out
}
