package playback

import (
	"io"

	"github.com/kadraman/beatbax/effects"
	"github.com/kadraman/beatbax/internal/wavwriter"
	"github.com/kadraman/beatbax/resolve"
	"github.com/kadraman/beatbax/scheduler"
)

// RenderOffline renders ism to completion at sampleRate, pulling audio
// blockFrames at a time and writing it as a WAVE file to ws, the offline
// counterpart to cmd/modwav's `for playing { GenerateAudio(); WriteFrame() }`
// loop: no portaudio device, no realtime clock, a synthetic one advanced
// one block per iteration instead. A song's own `play repeat` is ignored
// here — an offline render always renders exactly one pass.
func RenderOffline(ism *resolve.ISM, sampleRate, blockFrames int, ws io.WriteSeeker) (int64, error) {
	ism = disableRepeat(ism)

	t := 0.0
	clock := func() float64 { return t }
	sched := scheduler.New(clock)
	reg := effects.NewRegistry()
	cap := effects.Capability{Oscillator: true, Gain: true, BufferSource: true, StereoPanner: true}
	o := New(sched, reg, cap, clock, sampleRate, 60)

	done := false
	o.SetObservers(Observers{OnComplete: func() { done = true }})

	if err := o.Play(ism); err != nil {
		return 0, err
	}

	w, err := wavwriter.New(ws, sampleRate)
	if err != nil {
		return 0, err
	}

	blockSec := float64(blockFrames) / float64(sampleRate)
	for !done {
		sched.Tick()
		pcm := o.RenderBlock(blockFrames)
		if err := w.WriteFrame(pcm); err != nil {
			return 0, err
		}
		t += blockSec
	}
	o.Stop()

	return w.Finish()
}

func disableRepeat(ism *resolve.ISM) *resolve.ISM {
	if ism.Play == nil || !ism.Play.Repeat {
		return ism
	}
	cp := *ism
	play := *ism.Play
	play.Repeat = false
	cp.Play = &play
	return &cp
}
