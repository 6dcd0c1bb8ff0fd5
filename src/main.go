package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/jinjor/desktop-synth/src/control"
	"github.com/jinjor/desktop-synth/src/output"
	"github.com/jinjor/desktop-synth/src/sequencer"
	"github.com/jinjor/desktop-synth/src/smf"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	configPath    = flag.String("config", "", "signal chain configuration (.json, .yaml)")
	playPath      = flag.String("play", "", "Standard MIDI File to play")
	outPath       = flag.String("out", "", "render -play to this WAV file instead of the audio device")
	sockFile      = flag.String("socket", control.DefaultSocketFile, "unix socket for text commands (empty to disable)")
	wsAddr        = flag.String("ws", "", "address of the websocket control server, e.g. :8080 (empty to disable)")
	midiIn        = flag.Bool("midi", false, "listen to MIDI IN")
	midiInName    = flag.String("midi-in", "", "MIDI IN port name (default: first port)")
	statsInterval = flag.Duration("stats", 5*time.Second, "interval of stats reports")
	maxTail       = flag.Duration("tail", sequencer.DefaultMaxTail, "maximum release tail after playback or stop")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := audio.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = audio.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
	}
	engine, err := audio.NewEngine(cfg)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}

	var player *sequencer.Player
	if *playPath != "" {
		player, err = loadPlayer(engine, *playPath)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
	}
	d := control.NewDispatcher(engine, &cfg)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		select {
		case <-ctx.Done():
			return
		case sig := <-signalCh:
			log.Printf("Caught signal %s: releasing voices...\n", sig)
		}
		if player != nil {
			player.Stop()
		}
		d.Send(audio.Stop(audio.StopSoft))
		select {
		case <-ctx.Done():
		case sig := <-signalCh:
			log.Printf("Caught signal %s: shutting down...\n", sig)
		case <-waitIdle(ctx, engine):
		case <-time.After(*maxTail):
			hardStop(ctx, d, engine)
		}
		cancel()
	}()

	if *outPath != "" {
		err = renderToFile(ctx, engine, player, *outPath)
	} else {
		err = run(ctx, cancel, engine, player, d)
	}
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func loadPlayer(engine *audio.Engine, path string) (*sequencer.Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	file, err := smf.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	schedule, err := sequencer.NewSchedule(file, engine.SampleRate())
	if err != nil {
		return nil, err
	}
	log.Printf("%s: format %d, %d tracks, %v, %v\n", path, file.Format, len(file.Tracks), file.Division, schedule.Duration())
	for i := range file.Tracks {
		if name := file.Tracks[i].Name(); name != "" {
			log.Printf("track %d: %s\n", i, name)
		}
	}
	return sequencer.NewPlayer(engine, schedule, *maxTail)
}

func pumpOptions(engine *audio.Engine) output.PumpOptions {
	return output.PumpOptions{
		BlockFrames: engine.BlockSize(),
		Channels:    engine.Channels(),
		SampleRate:  engine.SampleRate(),
	}
}

// realtimePumpOptions leaves OnUnderrun unset: OtoSink already counts the
// gap a slow block leaves in the device buffer.
func realtimePumpOptions(engine *audio.Engine) output.PumpOptions {
	opts := pumpOptions(engine)
	opts.Realtime = true
	return opts
}

// renderToFile renders the whole file as fast as possible.
func renderToFile(ctx context.Context, engine *audio.Engine, player *sequencer.Player, path string) error {
	if player == nil {
		return errors.New("-out requires -play")
	}
	sink, err := output.NewWavSink(path, engine.SampleRate(), engine.Channels())
	if err != nil {
		return err
	}
	opts := pumpOptions(engine)
	opts.Done = player.Done
	start := time.Now()
	if err := output.Pump(ctx, player, sink, opts); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	stats := engine.Stats()
	log.Printf("wrote %s: %d frames in %v (%d voices stolen, %d samples clipped)\n",
		path, stats.Frames, time.Since(start), stats.Steals, stats.ClippedSamples)
	return nil
}

// run plays on the audio device and serves the live control surfaces.
func run(ctx context.Context, cancel context.CancelFunc, engine *audio.Engine, player *sequencer.Player, d *control.Dispatcher) error {
	sink, err := output.NewOtoSink(engine.SampleRate(), engine.Channels(), engine.BlockSize(), engine.ReportUnderrun)
	if err != nil {
		return err
	}
	defer sink.Close()

	var renderer output.Renderer = engine
	opts := realtimePumpOptions(engine)
	if player != nil {
		renderer = player
		opts.Done = player.Done
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the process ends with the playback
		defer cancel()
		return output.Pump(ctx, renderer, sink, opts)
	})
	g.Go(func() error {
		return audio.ReportStats(ctx, engine, *statsInterval)
	})
	if *sockFile != "" {
		g.Go(func() error {
			return control.ServeIPC(ctx, *sockFile, d, engine.Stats, time.Second/10)
		})
	}
	if *wsAddr != "" {
		g.Go(func() error {
			return control.ListenAndServe(ctx, *wsAddr, control.NewServer(d, engine.Stats))
		})
	}
	if *midiIn {
		g.Go(func() error {
			return control.ForwardMIDI(ctx, control.ListenToMidiIn(ctx, *midiInName), d)
		})
	}
	return g.Wait()
}

// hardStop silences every voice and returns once a block has rendered the
// stop, or after a timeout.
func hardStop(ctx context.Context, d *control.Dispatcher, engine *audio.Engine) {
	d.Send(audio.Stop(audio.StopHard))
	timeout := 4 * time.Duration(engine.BlockSize()) * time.Second / time.Duration(engine.SampleRate())
	if timeout < 100*time.Millisecond {
		timeout = 100 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-waitIdle(ctx, engine):
	case <-time.After(timeout):
	}
}

// waitIdle closes the returned channel once no voice is sounding.
func waitIdle(ctx context.Context, engine *audio.Engine) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if engine.ActiveVoices() == 0 {
					close(ch)
					return
				}
			}
		}
	}()
	return ch
}
