package engine

type kick struct{ dx, dy int }

// Clockwise kick offsets keyed by the rotation being left, in board coordinates
// (positive dy is down). The first entry is always the unkicked rotation.
var standardKicks = [4][]kick{
	0: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	1: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
	2: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	3: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
}

var wideKicks = [4][]kick{
	0: {{0, 0}, {-2, 0}, {1, 0}, {-2, 1}, {1, -2}},
	1: {{0, 0}, {-1, 0}, {2, 0}, {-1, -2}, {2, 1}},
	2: {{0, 0}, {2, 0}, {-1, 0}, {2, -1}, {-1, 2}},
	3: {{0, 0}, {1, 0}, {-2, 0}, {1, 2}, {-2, -1}},
}

func kicksFor(kind Kind, from int) []kick {
	from = ((from % 4) + 4) % 4
	if kind == KindI {
		return wideKicks[from]
	}
	return standardKicks[from]
}
