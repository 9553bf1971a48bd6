package manifest

import "math/rand"

// Shuffle reorders entries in place with a Fisher-Yates pass.
func Shuffle(entries []Entry) {
	ShuffleWith(entries, rand.Intn)
}

// ShuffleWith is Shuffle with an explicit source; intn(n) must return a value in [0, n).
func ShuffleWith(entries []Entry, intn func(int) int) {
	for i := len(entries) - 1; i > 0; i-- {
		j := intn(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}
