package engine

import (
	"sort"

	"github.com/stellarlinkco/levelbot/internal/store"
)

// TopN ranks all known profiles by total XP, descending, computed fresh on
// every call. Ties keep the table's insertion order (stable sort), never
// user-ID order.
func (e *Engine) TopN(n int) []store.UserProfile {
	profiles := e.store.Snapshot()
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].TotalXP > profiles[j].TotalXP
	})
	if n > 0 && n < len(profiles) {
		profiles = profiles[:n]
	}
	return profiles
}
