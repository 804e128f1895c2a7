package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"

	"github.com/kadraman/beatbax/effects"
	"github.com/kadraman/beatbax/playback"
	"github.com/kadraman/beatbax/resolve"
	"github.com/kadraman/beatbax/scheduler"
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

var (
	white  = color.New(color.FgWhite).SprintfFunc()
	cyan   = color.New(color.FgCyan).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
)

func runPlay(args []string) error {
	fs := commonFlagSet("play")
	hz := fs.Int("hz", 48000, "output sample rate")
	noUI := fs.Bool("no-ui", false, "disable the live position view")
	fs.Parse(args)
	// Flags may also follow the file argument, as usage shows.
	var pos []string
	for fs.NArg() > 0 {
		pos = append(pos, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}
	if len(pos) != 1 {
		return fmt.Errorf("play requires exactly one file argument")
	}

	res, err := loadSong(pos[0])
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w.Message)
	}

	ap := newAudioPlayer(res.ISM, *hz, *noUI)
	return ap.Run()
}

// channelState is the live display state for one channel, updated by
// the Orchestrator's observer callbacks.
type channelState struct {
	inst, token     string
	eventIdx, total int
	muted, soloed   bool
}

// audioPlayer drives an Orchestrator through a portaudio stream with a
// live cursor-repositioned position view, mirroring the teacher's
// AudioPlayer (cmd/modplay/play.go) generalized from a fixed MOD
// order/row pair to the ISM's per-channel event index.
type audioPlayer struct {
	orch  *playback.Orchestrator
	sched *scheduler.Scheduler

	hz     int
	noUI   bool
	stream *portaudio.Stream

	uiWriter        io.Writer
	channelIDs      []int
	selectedChannel int

	mu    sync.Mutex
	state map[int]*channelState

	ctx        context.Context
	cancelFn   context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	terminated bool
	kbDoneCh   chan struct{}
}

func newAudioPlayer(ism *resolve.ISM, hz int, noUI bool) *audioPlayer {
	now := func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	sched := scheduler.New(now)
	reg := effects.NewRegistry()
	cap := effects.Capability{Oscillator: true, Gain: true, BufferSource: true, StereoPanner: true}
	orch := playback.New(sched, reg, cap, now, hz, 60)
	orch.SetLogger(appLogger)

	var uiw io.Writer = os.Stdout
	if noUI {
		uiw = io.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())

	ap := &audioPlayer{
		orch:       orch,
		sched:      sched,
		hz:         hz,
		noUI:       noUI,
		uiWriter:   uiw,
		ctx:        ctx,
		cancelFn:   cancel,
		kbDoneCh:   make(chan struct{}),
		state:      map[int]*channelState{},
	}
	for _, ch := range ism.Channels {
		ap.channelIDs = append(ap.channelIDs, ch.ID)
		ap.state[ch.ID] = &channelState{}
	}

	orch.SetObservers(playback.Observers{
		OnSchedule: func(channelID int, inst, token string, startSec, durSec float64) {
			ap.mu.Lock()
			if s := ap.state[channelID]; s != nil {
				s.inst, s.token = inst, token
			}
			ap.mu.Unlock()
		},
		OnPositionChange: func(channelID, eventIndex, total int) {
			ap.mu.Lock()
			if s := ap.state[channelID]; s != nil {
				s.eventIdx, s.total = eventIndex, total
			}
			ap.mu.Unlock()
		},
		OnComplete: func() {
			if ism.Play == nil || !ism.Play.Repeat {
				ap.Stop()
			}
		},
	})

	_ = ap.orch.Play(ism) // Play only ever returns nil today; kept checked at the call site for when that changes
	return ap
}

func (ap *audioPlayer) Run() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}

	ap.sched.Start(newTickerDriver(25 * time.Millisecond))

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(ap.hz), 1024, ap.streamCallback)
	if err != nil {
		return err
	}
	ap.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	ap.setupSignalHandlers()
	ap.setupKeyboardHandlers()

	fmt.Fprint(ap.uiWriter, hideCursor)
	defer fmt.Fprint(ap.uiWriter, showCursor)

	lines := 0
loop:
	for {
		select {
		case <-ap.ctx.Done():
			break loop
		default:
		}
		if !ap.noUI {
			lines = ap.renderUI(lines)
		}
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-ap.kbDoneCh:
	case <-time.After(500 * time.Millisecond):
	}
	ap.wg.Wait()
	return nil
}

func (ap *audioPlayer) streamCallback(out []int16) {
	frames := len(out) / 2
	pcm := ap.orch.RenderBlock(frames)
	copy(out, pcm)
}

func (ap *audioPlayer) setupSignalHandlers() {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		select {
		case <-ap.ctx.Done():
		case <-sigch:
			ap.Stop()
		}
	}()
}

func (ap *audioPlayer) setupKeyboardHandlers() {
	if ap.noUI {
		close(ap.kbDoneCh)
		return
	}
	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			if key.Code == keys.CtrlC || key.Code == keys.Escape {
				ap.Stop()
				return true, nil
			}
			ap.handleKeyPress(key)
			return false, nil
		})
		close(ap.kbDoneCh)
	}()
}

func (ap *audioPlayer) handleKeyPress(key keys.Key) {
	n := len(ap.channelIDs)
	if n == 0 {
		return
	}
	switch key.Code {
	case keys.Left:
		ap.selectedChannel = max(ap.selectedChannel-1, 0)
	case keys.Right:
		ap.selectedChannel = min(ap.selectedChannel+1, n-1)
	case keys.Space:
		if ap.orch.Paused() {
			ap.orch.Resume()
		} else {
			ap.orch.Pause()
		}
	case keys.RuneKey:
		if len(key.Runes) == 0 {
			return
		}
		id := ap.channelIDs[ap.selectedChannel]
		switch key.Runes[0] {
		case 'q':
			ap.toggleMute(id)
		case 's':
			ap.toggleSolo(id)
		}
	}
}

func (ap *audioPlayer) toggleMute(id int) {
	ap.mu.Lock()
	s := ap.state[id]
	s.muted = !s.muted
	muted := s.muted
	ap.mu.Unlock()
	ap.orch.Mute(id, muted)
}

func (ap *audioPlayer) toggleSolo(id int) {
	ap.mu.Lock()
	s := ap.state[id]
	s.soloed = !s.soloed
	soloed := s.soloed
	for otherID, other := range ap.state {
		if otherID != id {
			other.soloed = false
		}
	}
	ap.mu.Unlock()
	if soloed {
		ap.orch.Solo(id)
	} else {
		ap.orch.Unsolo()
	}
}

func (ap *audioPlayer) Stop() {
	ap.stopOnce.Do(func() {
		ap.orch.Stop()
		ap.cancelFn()

		if ap.stream != nil {
			ap.stream.Stop()
			ap.stream.Close()
		}
		if !ap.terminated {
			portaudio.Terminate()
			ap.terminated = true
		}
		fmt.Fprint(ap.uiWriter, showCursor)
	})
}

// renderUI repaints the channel status line, returning cursor to the
// top of what it printed (teacher's ANSI-cursor-reposition trick).
func (ap *audioPlayer) renderUI(prevLines int) int {
	if prevLines > 0 {
		fmt.Fprintf(ap.uiWriter, escape+"%dF", prevLines)
	}
	ap.mu.Lock()
	defer ap.mu.Unlock()

	n := 0
	for i, id := range ap.channelIDs {
		s := ap.state[id]
		marker := " "
		if s.muted {
			marker = "M"
		} else if s.soloed {
			marker = "S"
		}
		label := fmt.Sprintf("%2d%s", id, marker)
		if i == ap.selectedChannel {
			label = green(label)
		} else {
			label = white(label)
		}
		fmt.Fprintf(ap.uiWriter, "%s %s %s %d/%d\n", label, cyan(s.inst), yellow(s.token), s.eventIdx+1, max(s.total, 1))
		n++
	}
	return n
}

