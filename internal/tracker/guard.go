package tracker

// SkipGuard classifies forward jumps past the furthest watched position.
type SkipGuard struct {
	Tolerance float64 // seconds of slack for sampling jitter
}

// Allow reports whether current is a legitimate position given the furthest
// position reached so far.
func (g SkipGuard) Allow(current, maxWatched float64) bool {
	return current <= maxWatched+g.Tolerance
}
