package engine

// GenerateBag returns one shuffled permutation of the seven kinds.
func GenerateBag(rng Rand) []Kind {
	rng = orGlobal(rng)
	bag := make([]Kind, len(Kinds))
	copy(bag, Kinds[:])
	for i := len(bag) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		bag[i], bag[j] = bag[j], bag[i]
	}
	return bag
}

// GenerateSequence concatenates bags until n pieces are available.
func GenerateSequence(n int, rng Rand) []Kind {
	if n <= 0 {
		return []Kind{}
	}
	seq := make([]Kind, 0, n+len(Kinds))
	for len(seq) < n {
		seq = append(seq, GenerateBag(rng)...)
	}
	return seq[:n]
}
