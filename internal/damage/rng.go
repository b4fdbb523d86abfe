package damage

// Stream is the deterministic random stream shared by both peers. It is a
// 64-bit linear congruential generator:
//
//	state' = state*6364136223846793005 + 1442695040888963407
//	draw   = float64(state' >> 11) / 2^53
//
// Both peers seed it with the session seed at battle setup and draw from it
// exactly once per turn, in turn order. Nothing else may touch the stream.
type Stream struct {
	state uint64
}

// NewStream seeds a stream. Seed 0 is valid; the first multiply-add moves
// the state off zero.
func NewStream(seed uint32) *Stream {
	return &Stream{state: uint64(seed)}
}

// Next advances the stream and returns a uniform draw in [0, 1).
func (s *Stream) Next() float64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	return float64(s.state>>11) / (1 << 53)
}

// Reseed resets the stream to a fresh seed.
func (s *Stream) Reseed(seed uint32) {
	s.state = uint64(seed)
}
