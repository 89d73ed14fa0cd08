package llm

import "chatinvoice/storage"

// MaxContextChars is the character budget for a chat log handed to the
// extraction model. Logs exceeding this are pruned from the front,
// dropping the oldest turns first, since later turns carry the
// order-confirming details the model needs.
const MaxContextChars = 12000

// PruneMessages drops the oldest messages from msgs until the remaining
// messages' combined text fits within MaxContextChars, always keeping at
// least the most recent message even if it alone exceeds the budget.
func PruneMessages(msgs []storage.RawMessage) []storage.RawMessage {
	total := 0
	for _, m := range msgs {
		total += len(m.Text)
	}
	if total <= MaxContextChars || len(msgs) == 0 {
		return msgs
	}

	start := 0
	for start < len(msgs)-1 && total > MaxContextChars {
		total -= len(msgs[start].Text)
		start++
	}
	return msgs[start:]
}
