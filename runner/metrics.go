package runner

import (
	"time"

	"github.com/hupe1980/chatloop/model"
)

// Metrics accumulates observations across all rounds of one run: token usage
// running totals, one response time per model round and one execution time
// per function call, keyed by function name. Values are never reset mid-run;
// inspect them through Conversation.Metrics after the run completes.
//
// Times are recorded in seconds, matching the per-message metric entries.
type Metrics struct {
	PromptTokens      int                  `json:"prompt_tokens"`
	CompletionTokens  int                  `json:"completion_tokens"`
	TotalTokens       int                  `json:"total_tokens"`
	ResponseTimes     []float64            `json:"response_times"`
	FunctionCallTimes map[string][]float64 `json:"function_call_times"`
}

// NewMetrics constructs an empty accumulator.
func NewMetrics() *Metrics {
	return &Metrics{FunctionCallTimes: map[string][]float64{}}
}

// Rounds reports the number of completed model rounds.
func (m *Metrics) Rounds() int { return len(m.ResponseTimes) }

// FunctionCalls reports the total number of executed function calls across
// all function names.
func (m *Metrics) FunctionCalls() int {
	n := 0
	for _, times := range m.FunctionCallTimes {
		n += len(times)
	}
	return n
}

func (m *Metrics) addResponseTime(d time.Duration) {
	m.ResponseTimes = append(m.ResponseTimes, d.Seconds())
}

func (m *Metrics) addFunctionCallTime(name string, d time.Duration) {
	m.FunctionCallTimes[name] = append(m.FunctionCallTimes[name], d.Seconds())
}

func (m *Metrics) addUsage(u *model.Usage) {
	if u == nil {
		return
	}
	m.PromptTokens += u.PromptTokens
	m.CompletionTokens += u.CompletionTokens
	m.TotalTokens += u.TotalTokens
}
