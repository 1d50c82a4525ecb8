package audio

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Player plays mono 16-bit PCM through the default output device. It owns its
// own miniaudio context so playback never contends with capture internals.
type Player struct {
	actx *malgo.AllocatedContext
}

// NewPlayer initializes the playback backend.
func NewPlayer() (*Player, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init playback", Err: err}
	}
	return &Player{actx: actx}, nil
}

// Play blocks until the samples finish or ctx is cancelled.
func (p *Player) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}

	data := samplesToBytes(samples)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	var mu sync.Mutex
	pos := 0
	done := make(chan struct{})
	var once sync.Once

	onSend := func(out, _ []byte, _ uint32) {
		mu.Lock()
		n := copy(out, data[pos:])
		pos += n
		finished := pos >= len(data)
		mu.Unlock()
		// Remaining output bytes stay zeroed (silence).
		if finished {
			once.Do(func() { close(done) })
		}
	}

	dev, err := malgo.InitDevice(p.actx.Context, cfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		return &DeviceError{Op: "open playback", Err: err}
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return &DeviceError{Op: "start playback", Err: err}
	}

	select {
	case <-done:
		// Let the device drain its internal buffer before teardown.
		time.Sleep(100 * time.Millisecond)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the playback backend.
func (p *Player) Close() {
	_ = p.actx.Uninit()
	p.actx.Free()
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
