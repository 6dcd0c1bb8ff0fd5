package audio

// ----- Voice Pool ----- //

// voicePool is a fixed arena of voices. Slots are never allocated after
// construction.
type voicePool struct {
	voices []voice
	seq    uint64
}

func newVoicePool(size int, sampleRate float64) *voicePool {
	voices := make([]voice, size)
	for i := range voices {
		voices[i].id = i
		voices[i].sampleRate = sampleRate
		voices[i].filter = newFilter(sampleRate)
	}
	return &voicePool{voices: voices}
}

func (p *voicePool) nextSeq() uint64 {
	p.seq++
	return p.seq
}

// find returns the sounding (not released) voice of channel and note.
func (p *voicePool) find(channel uint8, note uint8) *voice {
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && !v.released && v.channel == channel && v.note == note {
			return v
		}
	}
	return nil
}

// allocate returns the lowest free slot, or steals one.
//
// Victim order: the released voice that was released first, then the
// sounding voice that started first. Sequence numbers are unique, so the
// choice is deterministic.
func (p *voicePool) allocate() (*voice, bool) {
	var released, oldest *voice
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			return v, false
		}
		if v.released {
			if released == nil || v.releaseSeq < released.releaseSeq {
				released = v
			}
		} else if oldest == nil || v.startSeq < oldest.startSeq {
			oldest = v
		}
	}
	if released != nil {
		return released, true
	}
	return oldest, true
}

func (p *voicePool) activeCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}
