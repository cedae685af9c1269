package hal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPin_String(t *testing.T) {
	tests := []struct {
		pin  Pin
		want string
	}{
		{PA(0), "PA0"},
		{PA(1), "PA1"},
		{PB(3), "PB3"},
		{PC(13), "PC13"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pin.String())
			assert.Equal(t, tt.pin.Offset, tt.pin.Line())
		})
	}
}

func TestTrigger(t *testing.T) {
	assert.True(t, Both.Rising())
	assert.True(t, Both.Falling())
	assert.True(t, Rising.Rising())
	assert.False(t, Rising.Falling())
	assert.False(t, Falling.Rising())
	assert.Equal(t, Trigger(3), Both)
}

func TestCritical_Exclusive(t *testing.T) {
	// A non-atomic read-modify-write is safe inside Critical.
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				Critical(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, counter)
}
