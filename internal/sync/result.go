package sync

// Result summarizes one conversation's sync pass. Ephemeral, never persisted.
type Result struct {
	ConversationID string `json:"conversation_id"`
	Examined       int    `json:"examined"`
	Saved          int    `json:"saved"`
	Skipped        int    `json:"skipped"`
	Invalid        int    `json:"invalid"`
	Failed         int    `json:"failed"`
}

// BulkResult accumulates per-conversation results plus a grand total.
// Conversations whose sync failed outright appear in Errors and do not
// contribute to the totals.
type BulkResult struct {
	Results []*Result         `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
	Totals  Result            `json:"totals"`
}

func (b *BulkResult) add(r *Result) {
	b.Results = append(b.Results, r)
	b.Totals.Examined += r.Examined
	b.Totals.Saved += r.Saved
	b.Totals.Skipped += r.Skipped
	b.Totals.Invalid += r.Invalid
	b.Totals.Failed += r.Failed
}
