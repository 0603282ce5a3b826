package audio

import (
	"errors"
	"sync"
)

// Stream is one source playing on a backend.
type Stream interface {
	Play()
	Pause()
	Close() error
}

// Backend is an open platform audio context.
type Backend interface {
	NewStream(src SampleSource) (Stream, error)
	Close() error
}

// Opener opens a backend at the given sample rate.
type Opener func(sampleRate int) (Backend, error)

var ErrNotAcquired = errors.New("audio device released more times than acquired")

// Device shares one backend between playback sessions. The backend is opened
// by the first Acquire and closed when the last holder releases it.
type Device struct {
	mu         sync.Mutex
	sampleRate int
	open       Opener
	backend    Backend
	refs       int
}

// NewDevice returns a device that opens backends with open, or with the
// ebiten backend when open is nil.
func NewDevice(sampleRate int, open Opener) *Device {
	if open == nil {
		open = OpenEbiten
	}
	return &Device{sampleRate: sampleRate, open: open}
}

func (d *Device) Acquire() (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		b, err := d.open(d.sampleRate)
		if err != nil {
			return nil, err
		}
		d.backend = b
	}
	d.refs++
	return d.backend, nil
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.refs == 0 {
		return ErrNotAcquired
	}
	d.refs--
	if d.refs > 0 {
		return nil
	}
	b := d.backend
	d.backend = nil
	return b.Close()
}

// Refs reports how many sessions hold the device.
func (d *Device) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}

func (d *Device) SampleRate() int { return d.sampleRate }
