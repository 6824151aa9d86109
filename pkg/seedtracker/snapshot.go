package seedtracker

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/rtalign/pkg/persist"
	"github.com/Sumatoshi-tech/rtalign/pkg/safeconv"
)

// ErrSnapshotCorrupt is returned when a snapshot's chains are inconsistent.
var ErrSnapshotCorrupt = errors.New("tracker snapshot is corrupt")

// snapshotBasename is the file stem snapshots are saved under.
const snapshotBasename = "seedtracker"

// Snapshot is a self-contained copy of tracker state.
type Snapshot struct {
	Policy MergePolicy `json:"policy"`
	Chains []Chain     `json:"chains"`
	NextID uint64      `json:"next_id"`
	Stats  Stats       `json:"stats"`
}

// Snapshot captures the tracker state. Chains are in reference order.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Policy: t.policy,
		Chains: t.Chains(),
		NextID: t.nextID,
		Stats:  t.stats,
	}
}

// Restore replaces the tracker state with snap. Chains that could still merge
// under the snapshot policy make it corrupt. On error the tracker is unchanged.
func (t *Tracker) Restore(snap Snapshot) error {
	err := snap.validate()
	if err != nil {
		return err
	}

	restored, err := NewTracker(snap.Policy)
	if err != nil {
		return err
	}

	for _, chain := range snap.Chains {
		restored.place(chain)
	}

	for i := range restored.chains {
		slot := safeconv.MustUint32(i)

		other, ok := restored.bestCandidate(restored.chains[slot].Span(), slot)
		if ok {
			return fmt.Errorf("%w: chains %d and %d are mergeable",
				ErrSnapshotCorrupt, restored.chains[slot].ID, restored.chains[other].ID)
		}
	}

	restored.nextID = snap.NextID
	restored.stats = snap.Stats
	*t = *restored

	return nil
}

// FromSnapshot builds a new tracker from snap.
func FromSnapshot(snap Snapshot) (*Tracker, error) {
	t, err := NewTracker(snap.Policy)
	if err != nil {
		return nil, err
	}

	err = t.Restore(snap)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (s Snapshot) validate() error {
	err := s.Policy.Validate()
	if err != nil {
		return err
	}

	if s.NextID == 0 {
		return fmt.Errorf("%w: next id is zero", ErrSnapshotCorrupt)
	}

	seen := make(map[uint64]struct{}, len(s.Chains))

	for i, c := range s.Chains {
		switch {
		case c.ID == 0 || c.ID >= s.NextID:
			return fmt.Errorf("%w: chain %d has id %d with next id %d", ErrSnapshotCorrupt, i, c.ID, s.NextID)
		case c.RefEnd < c.RefStart || c.EvtEnd < c.EvtStart:
			return fmt.Errorf("%w: chain %d has reversed interval", ErrSnapshotCorrupt, c.ID)
		case c.Seeds < 1:
			return fmt.Errorf("%w: chain %d has no seeds", ErrSnapshotCorrupt, c.ID)
		}

		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chain id %d", ErrSnapshotCorrupt, c.ID)
		}

		seen[c.ID] = struct{}{}
	}

	return nil
}

// snapshotPersister stores snapshots as LZ4-compressed gob.
func snapshotPersister() *persist.Persister[Snapshot] {
	return persist.NewPersister[Snapshot](snapshotBasename, persist.NewLZ4Codec(persist.NewGobCodec()))
}

// SnapshotPath returns the file SaveSnapshot writes in dir.
func SnapshotPath(dir string) string {
	return snapshotPersister().Path(dir)
}

// SaveSnapshot writes the tracker state to dir.
func (t *Tracker) SaveSnapshot(dir string) error {
	snap := t.Snapshot()

	err := snapshotPersister().Save(dir, &snap)
	if err != nil {
		return fmt.Errorf("save tracker snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a tracker previously saved in dir.
func LoadSnapshot(dir string) (*Tracker, error) {
	snap, err := snapshotPersister().Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load tracker snapshot: %w", err)
	}

	return FromSnapshot(*snap)
}
