package recovery

import "github.com/cuemby/recoverd/pkg/types"

// Merge folds incoming into base using the §3 ordering relation
// (types.Record.NewerThan): for each key, the surviving record is
// whichever of the two candidates is newer, where "newer" is decided
// from localPNN's point of view (a tie at equal RSN resolves in favor
// of the record whose DMaster is the local node). base is mutated in
// place and returned.
//
// Called once per remote node pulled from during phase 5's pull step,
// so that repeated calls fold every node's contribution into a single
// working-store snapshot.
func Merge(base map[string]types.Record, incoming []types.Record, localPNN types.PNN) map[string]types.Record {
	if base == nil {
		base = make(map[string]types.Record, len(incoming))
	}
	for _, rec := range incoming {
		key := string(rec.Key)
		existing, ok := base[key]
		if !ok || rec.NewerThan(existing, localPNN) {
			base[key] = rec
		}
	}
	return base
}

// PreparePush transforms a pulled, merged working store into the
// exact set of records that phase 5's push step broadcasts, applying
// the persistent/non-persistent exception from §3 and §4.6 phase 5:
//
//   - Non-persistent database: empty (tombstone) records are dropped
//     entirely, and every surviving record has its DMaster rewritten to
//     masterPNN and gains the MIGRATED_WITH_DATA flag.
//   - Persistent database: every record survives unchanged — empty
//     records are not dropped, and the header is not rewritten — since
//     an empty record at a high RSN is a committed deletion that must
//     outlive recovery.
func PreparePush(db types.Database, records map[string]types.Record, masterPNN types.PNN) []types.Record {
	out := make([]types.Record, 0, len(records))

	if db.Persistent() {
		for _, rec := range records {
			out = append(out, rec)
		}
		return out
	}

	for _, rec := range records {
		if rec.Empty() {
			continue
		}
		rec.Header.DMaster = masterPNN
		rec.Header.Flags |= types.RecordMigratedWithData
		out = append(out, rec)
	}
	return out
}
