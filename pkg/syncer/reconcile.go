// Package syncer keeps the local message store converged with a poll-only
// backend. The reconciler merges each freshly fetched window with the
// previously held state; the poller and mutation coordinator decide when
// fetches happen and how user actions are applied.
package syncer

import (
	"sort"

	"taskchat/pkg/models"
)

// Reconcile merges a freshly fetched server window with the previously held
// local state for the same project and returns the next store contents plus
// the number of deletions inferred from disappearance. It is pure: no I/O,
// no mutation of its inputs.
//
// Rules, in order:
//   - a fetched message whose id is tombstoned locally stays tombstoned;
//     the server copy may lag behind the delete and must not resurrect it
//   - a previously known, non-tombstoned message absent from the fetch is
//     treated as deleted on the server (disappearance is the only deletion
//     signal a poll-only transport provides)
//   - tombstones are retained even after the server stops returning the id
//   - the union is de-duplicated by id with the fetched copy winning for
//     non-tombstone fields, then ordered by (ts, id) ascending
func Reconcile(previous, fetched []models.Message) ([]models.Message, int) {
	tombstoned := make(map[string]struct{})
	for _, m := range previous {
		if m.Deleted {
			tombstoned[m.ID] = struct{}{}
		}
	}

	out := make([]models.Message, 0, len(fetched)+len(previous))
	fetchedIDs := make(map[string]struct{}, len(fetched))
	for _, m := range fetched {
		if _, dup := fetchedIDs[m.ID]; dup {
			continue
		}
		fetchedIDs[m.ID] = struct{}{}
		if _, dead := tombstoned[m.ID]; dead || m.Deleted {
			m = m.Tombstone()
		}
		out = append(out, m)
	}

	inferred := 0
	for _, m := range previous {
		if _, ok := fetchedIDs[m.ID]; ok {
			continue
		}
		if !m.Deleted {
			m = m.Tombstone()
			inferred++
		}
		out = append(out, m)
	}

	sortMessages(out)
	return out, inferred
}

// sortMessages orders msgs by (ts, id) ascending, the canonical store order.
func sortMessages(msgs []models.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].TS != msgs[j].TS {
			return msgs[i].TS < msgs[j].TS
		}
		return msgs[i].ID < msgs[j].ID
	})
}
