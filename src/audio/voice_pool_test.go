package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func occupy(p *voicePool, channel uint8, note uint8) *voice {
	v, _ := p.allocate()
	v.active = true
	v.released = false
	v.channel = channel
	v.note = note
	v.startSeq = p.nextSeq()
	return v
}

func TestVoicePoolAllocatesLowestFreeSlot(t *testing.T) {
	p := newVoicePool(3, 48000)
	require.Equal(t, 0, occupy(p, 0, 60).id)
	require.Equal(t, 1, occupy(p, 0, 61).id)
	p.voices[0].active = false
	v, stolen := p.allocate()
	require.False(t, stolen)
	require.Equal(t, 0, v.id)
	require.Equal(t, 1, p.activeCount())
}

func TestVoicePoolStealing(t *testing.T) {
	p := newVoicePool(3, 48000)
	occupy(p, 0, 60)
	occupy(p, 0, 61)
	occupy(p, 1, 60)

	v, stolen := p.allocate()
	require.True(t, stolen)
	require.Equal(t, 0, v.id)

	p.voices[2].released = true
	p.voices[2].releaseSeq = p.nextSeq()
	p.voices[1].released = true
	p.voices[1].releaseSeq = p.nextSeq()
	v, stolen = p.allocate()
	require.True(t, stolen)
	require.Equal(t, 2, v.id)
}

func TestVoicePoolFind(t *testing.T) {
	p := newVoicePool(4, 48000)
	occupy(p, 0, 60)
	v := occupy(p, 1, 60)
	require.Same(t, v, p.find(1, 60))
	require.Nil(t, p.find(2, 60))
	v.released = true
	require.Nil(t, p.find(1, 60))
}
