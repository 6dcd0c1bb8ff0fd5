package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandQueueWraparound(t *testing.T) {
	q := newCommandQueue(3)
	require.Len(t, q.buf, 4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			require.True(t, q.push(NoteOn(0, uint8(round*3+i), 1)))
		}
		require.Equal(t, 3, q.len())
		for i := 0; i < 3; i++ {
			c, ok := q.pop()
			require.True(t, ok)
			require.Equal(t, uint8(round*3+i), c.Data1)
		}
		_, ok := q.pop()
		require.False(t, ok)
	}
	require.Equal(t, uint64(0), q.dropped.Load())
}

func TestCommandQueueConcurrent(t *testing.T) {
	const n = 10000
	q := newCommandQueue(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if q.push(Command{Kind: CmdSetParam, Value: float64(i)}) {
				i++
			}
		}
	}()
	next := 0
	for next < n {
		c, ok := q.pop()
		if !ok {
			continue
		}
		require.Equal(t, float64(next), c.Value)
		next++
	}
	wg.Wait()
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "note-on ch=1 note=60 vel=100", NoteOn(1, 60, 100).String())
	require.Equal(t, "stop hard", Stop(StopHard).String())
	require.Equal(t, "stop soft", Stop(StopSoft).String())
}
