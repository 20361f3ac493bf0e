package upload

import (
	"sort"
	"time"

	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
)

// MergeIndex combines two run indexes keyed by run id. Entries of local
// replace remote entries with the same id. The result is newest first.
func MergeIndex(remote, local *reporter.Index) *reporter.Index {
	byID := make(map[string]*reporter.IndexEntry, len(remote.Entries)+len(local.Entries))

	for _, e := range remote.Entries {
		byID[e.RunID] = e
	}

	for _, e := range local.Entries {
		byID[e.RunID] = e
	}

	entries := make([]*reporter.IndexEntry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}

		return entries[i].RunID < entries[j].RunID
	})

	return &reporter.Index{
		Generated: time.Now().Unix(),
		Entries:   entries,
	}
}
