package lz

// MatchFinder tracks previously seen 3 byte sequences of one input buffer.
// It is owned by a single Compress call and never shared.
//
// Each bucket holds the positions that produced its hash, oldest first, and
// the eviction queue records the bucket of every registered position in the
// order they were added. Once more than maxTracked positions are registered
// the oldest one is dropped from both, so every stored position stays within
// MaxDistance of the cursor.
type MatchFinder struct {
	src []byte

	// pos is the position being encoded. It starts MinMatch bytes before
	// the buffer so the rolling hash can be primed.
	pos  int
	hash uint32

	buckets map[uint32][]int

	queue     []uint32
	queueHead int
	queueLen  int
}

func newMatchFinder(src []byte) *MatchFinder {
	m := &MatchFinder{
		src:     src,
		pos:     -MinMatch,
		buckets: make(map[uint32][]int),
		queue:   make([]uint32, maxTracked+1),
	}
	for i := 0; i < MinMatch; i++ {
		m.advance()
	}
	return m
}

// Pos returns the position of the next byte to encode.
func (m *MatchFinder) Pos() int { return m.pos }

// Tracked returns how many positions are currently registered.
func (m *MatchFinder) Tracked() int { return m.queueLen }

// advance moves the cursor forward by one byte, folding the byte that
// completes the 3 byte sequence at the new position into the hash and
// registering that position.
func (m *MatchFinder) advance() {
	m.pos++

	next := m.pos + MinMatch - 1
	if next < 0 || next >= len(m.src) {
		return
	}

	m.hash = ((m.hash << hashShift) ^ uint32(m.src[next])) & hashMask

	if m.pos >= 0 {
		m.register(m.hash, m.pos)
	}
}

// skip advances the cursor n times so that every passed position is hashed.
func (m *MatchFinder) skip(n int) {
	for i := 0; i < n; i++ {
		m.advance()
	}
}

func (m *MatchFinder) register(h uint32, pos int) {
	m.buckets[h] = append(m.buckets[h], pos)

	tail := (m.queueHead + m.queueLen) % len(m.queue)
	m.queue[tail] = h
	m.queueLen++

	if m.queueLen > maxTracked {
		m.evict()
	}
}

func (m *MatchFinder) evict() {
	h := m.queue[m.queueHead]
	m.queueHead = (m.queueHead + 1) % len(m.queue)
	m.queueLen--

	b := m.buckets[h]
	if len(b) <= 1 {
		delete(m.buckets, h)
		return
	}
	m.buckets[h] = b[1:]
}

// longest returns the best match for the current position. Candidates are
// scanned newest first and only a strictly longer match replaces the current
// best, so ties resolve to the nearest candidate.
func (m *MatchFinder) longest() (candidate, length int) {
	candidate = -1
	if m.pos+MinMatch < 0 || m.pos+MinMatch >= len(m.src) {
		return candidate, 0
	}

	limit := m.pos + MaxMatch
	if limit > len(m.src) {
		limit = len(m.src)
	}

	b := m.buckets[m.hash]
	for i := len(b) - 1; i >= 0; i-- {
		tgt := b[i]
		if m.pos-MinMatch-tgt > MaxDistance || tgt > m.pos-MinMatch {
			continue
		}
		if n := m.matchLen(tgt, length, limit); n > length {
			candidate, length = tgt, n
		}
		if m.pos+length == limit {
			// Nothing further back can be strictly longer.
			break
		}
	}
	return candidate, length
}

// matchLen returns the length of the match between tgt and the current
// position, or -1 if it cannot beat best.
func (m *MatchFinder) matchLen(tgt, best, limit int) int {
	src := m.src

	// The first best bytes must already match for this candidate to win.
	for i := best - 1; i >= 0; i-- {
		if src[tgt+i] != src[m.pos+i] {
			return -1
		}
	}

	n := best
	for m.pos+n < limit && src[tgt+n] == src[m.pos+n] {
		n++
	}
	return n
}
