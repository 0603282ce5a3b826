package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten permits a single audio context per process, so the context outlives
// every backend built on it. Closing a backend closes its streams.
var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// OpenEbiten is the default Opener.
func OpenEbiten(sampleRate int) (Backend, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	return &ebitenBackend{ctx: ctx, streams: map[*ebitenStream]struct{}{}}, nil
}

type ebitenBackend struct {
	mu      sync.Mutex
	ctx     *ebitaudio.Context
	streams map[*ebitenStream]struct{}
}

func (b *ebitenBackend) NewStream(src SampleSource) (Stream, error) {
	reader := NewStreamReader(src)
	pl, err := b.ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	st := &ebitenStream{player: pl, reader: reader, owner: b}
	b.mu.Lock()
	b.streams[st] = struct{}{}
	b.mu.Unlock()
	return st, nil
}

func (b *ebitenBackend) Close() error {
	b.mu.Lock()
	streams := make([]*ebitenStream, 0, len(b.streams))
	for st := range b.streams {
		streams = append(streams, st)
	}
	b.mu.Unlock()
	var firstErr error
	for _, st := range streams {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type ebitenStream struct {
	player *ebitaudio.Player
	reader *StreamReader
	owner  *ebitenBackend
	once   sync.Once
}

func (s *ebitenStream) Play()  { s.player.Play() }
func (s *ebitenStream) Pause() { s.player.Pause() }

func (s *ebitenStream) Close() error {
	var err error
	s.once.Do(func() {
		s.player.Pause()
		if cerr := s.player.Close(); cerr != nil {
			err = cerr
		}
		if cerr := s.reader.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.owner.mu.Lock()
		delete(s.owner.streams, s)
		s.owner.mu.Unlock()
	})
	return err
}
