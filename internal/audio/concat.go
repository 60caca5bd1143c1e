package audio

// Concat splices buffers end to end, preserving order.
//
// No buffers yields Silence. A single buffer is returned as is. Otherwise
// every buffer is assumed to share the first buffer's sample rate and
// channel count; callers that cannot guarantee this should check Compatible
// first. Nil entries are ignored.
func Concat(buffers ...*Buffer) *Buffer {
	parts := make([]*Buffer, 0, len(buffers))
	for _, b := range buffers {
		if b != nil {
			parts = append(parts, b)
		}
	}

	switch len(parts) {
	case 0:
		return Silence()
	case 1:
		return parts[0]
	}

	first := parts[0]
	total := 0
	for _, b := range parts {
		total += b.Frames()
	}

	out := &Buffer{
		SampleRate: first.SampleRate,
		Channels:   make([][]float32, first.NumChannels()),
	}
	for ch := range out.Channels {
		out.Channels[ch] = make([]float32, total)
	}

	offset := 0
	for _, b := range parts {
		for ch := range out.Channels {
			if ch < b.NumChannels() {
				copy(out.Channels[ch][offset:], b.Channels[ch])
			}
		}
		offset += b.Frames()
	}
	return out
}

// Compatible reports whether all non-nil buffers share sample rate and
// channel count.
func Compatible(buffers ...*Buffer) bool {
	var ref *Buffer
	for _, b := range buffers {
		if b == nil {
			continue
		}
		if ref == nil {
			ref = b
			continue
		}
		if b.SampleRate != ref.SampleRate || b.NumChannels() != ref.NumChannels() {
			return false
		}
	}
	return true
}
