package sync

import "github.com/avilar/dealersync/internal/store"

// Unseen returns the subsequence of candidates whose external id is not
// in existing, preserving the original order, plus the count of skipped
// duplicates. Pure set difference; the existing set is re-read from the
// store on every pass, so overlapping runs converge instead of
// double-writing.
func Unseen(candidates []*store.Message, existing map[string]struct{}) ([]*store.Message, int) {
	var fresh []*store.Message
	skipped := 0
	for _, m := range candidates {
		if _, ok := existing[m.MessageID]; ok {
			skipped++
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh, skipped
}
