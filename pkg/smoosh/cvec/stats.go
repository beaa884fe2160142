package cvec

// Stats counts descriptor hand-overs since process start.
type Stats struct {
	Live     int    // blocks currently owned by a descriptor
	Acquired uint64 // FromOwned calls that took a non-empty block
	Released uint64 // IntoOwned calls that gave a non-empty block back
}

// Sub returns the difference s - prev, for measuring a window of activity.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Live:     s.Live - prev.Live,
		Acquired: s.Acquired - prev.Acquired,
		Released: s.Released - prev.Released,
	}
}
