package logic

// FusionBuffer keeps the last W raw samples per channel and averages them.
//
// All channels share one write cursor: a Samples value is recorded as a
// unit, so the rings never disagree about how many readings they hold.
// The rings start zero-filled, which biases fused values toward zero until
// W samples have arrived. Filled reports how far the warm-up has got.
type FusionBuffer struct {
	rings  [NumChannels][]uint32
	window int
	cursor int // next slot to overwrite
	filled int
}

// NewFusionBuffer creates a zero-filled buffer averaging over window samples.
// window must be at least 1; internal/config enforces that.
func NewFusionBuffer(window int) *FusionBuffer {
	b := &FusionBuffer{window: window}
	for i := range b.rings {
		b.rings[i] = make([]uint32, window)
	}
	return b
}

// Record overwrites the slot at the cursor for every channel and advances
// the cursor modulo the window size.
func (b *FusionBuffer) Record(s Samples) {
	for i := range b.rings {
		b.rings[i][b.cursor] = s[i]
	}
	b.cursor = (b.cursor + 1) % b.window
	if b.filled < b.window {
		b.filled++
	}
}

// Fused returns the mean of the ring for ch, zero-filled slots included.
func (b *FusionBuffer) Fused(ch Channel) float64 {
	var sum uint64
	for _, v := range b.rings[ch] {
		sum += uint64(v)
	}
	return float64(sum) / float64(b.window)
}

// FusedAll returns the fused distance for every channel.
func (b *FusionBuffer) FusedAll() Ranges {
	var r Ranges
	for _, ch := range Channels {
		r[ch] = b.Fused(ch)
	}
	return r
}

// Window returns the ring size.
func (b *FusionBuffer) Window() int {
	return b.window
}

// Filled returns how many slots have been written, capped at the window size.
func (b *FusionBuffer) Filled() int {
	return b.filled
}
