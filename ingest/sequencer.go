package ingest

import pocketrag "github.com/shunichi0402/pocket-rag"

// Sequence assigns contiguous sequence numbers 0..n-1 to units in their
// document order. The sequence is the stable per-document address of a unit;
// search results reference units by it.
func Sequence(units []pocketrag.TextUnit) []pocketrag.TextUnit {
	for i := range units {
		units[i].Sequence = i
	}
	return units
}
