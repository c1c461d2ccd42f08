package orchestrator

import (
	"github.com/tiktoken-go/tokenizer"

	"propline/pkg/persistence"
)

// historyTokenBudget bounds the total token weight of the history slice a
// worker receives. Keeps long-running conversations from crowding the
// system prompt out of the backend's context window.
const historyTokenBudget = 2000

var historyCodec tokenizer.Codec

func init() {
	// GPT-4 encoding approximates the other backends closely enough for a
	// budget check.
	historyCodec, _ = tokenizer.ForModel(tokenizer.GPT4)
}

func countTokens(text string) int {
	if historyCodec == nil {
		return len(text) / 4
	}
	count, err := historyCodec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// clipHistoryToBudget drops the oldest messages until the remainder fits
// the token budget. History arrives oldest first and stays that way.
func clipHistoryToBudget(history []persistence.Message) []persistence.Message {
	total := 0
	for i := range history {
		total += countTokens(history[i].Body)
	}
	for len(history) > 0 && total > historyTokenBudget {
		total -= countTokens(history[0].Body)
		history = history[1:]
	}
	return history
}
