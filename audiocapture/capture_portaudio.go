package audiocapture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// portaudioImpl captures the default input device through PortAudio.
type portaudioImpl struct {
	stream *portaudio.Stream
}

func newCaptureImpl() (captureImpl, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	return &portaudioImpl{}, nil
}

func (p *portaudioImpl) start(sampleRate int, callback func(samples []float32)) error {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer,
		func(in []float32) {
			// PortAudio reuses the callback buffer; hand out a copy.
			samples := make([]float32, len(in))
			copy(samples, in)
			callback(samples)
		})
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	p.stream = stream
	return nil
}

func (p *portaudioImpl) stop() error {
	if p.stream == nil {
		return nil
	}
	err := p.stream.Stop()
	if cerr := p.stream.Close(); err == nil {
		err = cerr
	}
	p.stream = nil
	return err
}
