package quiz

import "math/rand"

// resolveQuestions applies the quiz's shuffle flags and returns the order to
// freeze into an attempt. Questions and their option slices are copied, so
// the snapshot is isolated from later quiz edits even when nothing shuffles.
// A nil rng draws a fresh seed from the global source; tests pass their own.
func resolveQuestions(q Quiz, rng *rand.Rand) []Question {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	out := make([]Question, len(q.Questions))
	copy(out, q.Questions)
	if q.ShuffleQuestions {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	for i := range out {
		if len(out[i].Options) == 0 {
			continue
		}
		opts := make([]Option, len(out[i].Options))
		copy(opts, out[i].Options)
		if q.ShuffleAnswers {
			rng.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		}
		out[i].Options = opts
	}
	return out
}
