package playback

import (
	"strings"
	"time"
)

const (
	defaultWordsPerMinute = 150
	minEstimate           = 600 * time.Millisecond
)

// EstimateDuration guesses how long on-device speech takes from the word
// count, the engine's words per minute and the speaking rate multiplier.
func EstimateDuration(text string, wordsPerMinute int, rate float64) time.Duration {
	if wordsPerMinute <= 0 {
		wordsPerMinute = defaultWordsPerMinute
	}
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / (float64(wordsPerMinute) * rate) * float64(time.Minute))
	return max(d, minEstimate)
}
