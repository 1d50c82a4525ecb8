package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrInputClosed reports that the interactive input stream (stdin) reached
// EOF, so no further end-of-utterance signals can arrive.
var ErrInputClosed = errors.New("input stream closed")

// DeviceError wraps failures to open or drive an audio device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio device %s: %v", e.Op, e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Recording is one turn's worth of captured PCM.
type Recording struct {
	Samples    []int16 // interleaved when Channels > 1
	SampleRate int
	Channels   int
}

// Duration reports the captured audio length.
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	frames := len(r.Samples) / r.Channels
	return time.Duration(frames) * time.Second / time.Duration(r.SampleRate)
}

// MicRecorder records from the default capture device until the user presses
// Enter or a hard per-turn timeout elapses. One recorder owns the miniaudio
// context for the process lifetime; devices are opened per turn.
type MicRecorder struct {
	actx        *malgo.AllocatedContext
	sampleRate  int
	channels    int
	maxDuration time.Duration
	status      func(string)

	enter    chan struct{}
	inputEOF chan struct{}
}

// NewMicRecorder initializes the audio backend and starts watching input for
// end-of-utterance signals. An initialization failure means no capture device
// is usable at all, which callers treat as a startup failure.
func NewMicRecorder(sampleRate, channels int, maxDuration time.Duration, input io.Reader, status func(string)) (*MicRecorder, error) {
	if status == nil {
		status = func(string) {}
	}
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init", Err: err}
	}

	m := &MicRecorder{
		actx:        actx,
		sampleRate:  sampleRate,
		channels:    channels,
		maxDuration: maxDuration,
		status:      status,
		enter:       make(chan struct{}, 1),
		inputEOF:    make(chan struct{}),
	}
	go m.watchInput(input)
	return m, nil
}

// watchInput forwards one signal per input line. It runs for the recorder's
// lifetime so a stray Enter between turns cannot race a fresh reader.
func (m *MicRecorder) watchInput(input io.Reader) {
	r := bufio.NewReader(input)
	for {
		_, err := r.ReadString('\n')
		select {
		case m.enter <- struct{}{}:
		default:
		}
		if err != nil {
			close(m.inputEOF)
			return
		}
	}
}

// Record captures one turn of audio. The returned recording may be partial
// when the hard timeout or a context cancellation cut it short; partial audio
// is still transcribable.
func (m *MicRecorder) Record(ctx context.Context) (Recording, error) {
	// Drain any Enter press that arrived between turns.
	select {
	case <-m.enter:
	default:
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.channels)
	cfg.SampleRate = uint32(m.sampleRate)
	cfg.Alsa.NoMMap = 1

	var mu sync.Mutex
	var samples []int16

	onRecv := func(_, in []byte, _ uint32) {
		mu.Lock()
		samples = append(samples, bytesToSamples(in)...)
		mu.Unlock()
	}

	dev, err := malgo.InitDevice(m.actx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return Recording{}, &DeviceError{Op: "open capture", Err: err}
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return Recording{}, &DeviceError{Op: "start capture", Err: err}
	}

	m.status("Recording... press Enter to stop this turn.")

	timeout := time.NewTimer(m.maxDuration)
	defer timeout.Stop()

	var stopErr error
	select {
	case <-m.enter:
	case <-m.inputEOF:
		stopErr = ErrInputClosed
	case <-timeout.C:
		m.status(fmt.Sprintf("Maximum turn duration (%s) reached.", m.maxDuration))
	case <-ctx.Done():
		stopErr = ctx.Err()
	}

	dev.Uninit()

	if stopErr != nil {
		return Recording{}, stopErr
	}

	mu.Lock()
	defer mu.Unlock()
	return Recording{Samples: samples, SampleRate: m.sampleRate, Channels: m.channels}, nil
}

// Close releases the audio backend.
func (m *MicRecorder) Close() {
	_ = m.actx.Uninit()
	m.actx.Free()
}

func bytesToSamples(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
