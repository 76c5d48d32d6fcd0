package crdt

// rankBetween generates a string that sorts strictly between lo and hi
// (lexicographically), for assigning a fractional position to a sequence
// element inserted between two neighbors without renumbering the rest of
// the sequence. lo == "" means "start of sequence"; hi == "" means "end of
// sequence". This is the same fractional-indexing technique used by
// collaborative list editors (e.g. Figma's layer ordering); it stands in
// for the position identifiers a real sequence CRDT (Yjs' Y.Array) assigns
// internally, per DESIGN.md's note on the hand-rolled CRDT core.
const rankAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func rankBetween(lo, hi string) string {
	if lo == "" && hi == "" {
		return string(rankAlphabet[len(rankAlphabet)/2])
	}

	digit := func(s string, i int) int {
		if i >= len(s) {
			return 0
		}
		return indexOfRank(s[i])
	}

	var out []byte
	i := 0
	for {
		lo0 := digit(lo, i)
		hi0 := len(rankAlphabet) - 1
		switch {
		case hi == "":
			hi0 = len(rankAlphabet) - 1
		case i < len(hi):
			hi0 = digit(hi, i)
		default:
			hi0 = 0
		}

		if hi0-lo0 > 1 {
			mid := lo0 + (hi0-lo0)/2
			out = append(out, rankAlphabet[mid])
			return string(out)
		}

		out = append(out, rankAlphabet[lo0])
		i++
		if i > 64 {
			// Degenerate case (ranks collided many times); append a
			// unique tail so this never loops forever.
			out = append(out, rankAlphabet[1])
			return string(out)
		}
	}
}

func indexOfRank(b byte) int {
	for i := 0; i < len(rankAlphabet); i++ {
		if rankAlphabet[i] == b {
			return i
		}
	}
	return 0
}
