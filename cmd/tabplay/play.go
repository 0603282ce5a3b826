package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go"
	"github.com/cbegin/tabplay-go/internal/audio"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

var (
	playInput     tabInput
	playLoop      bool
	playLoops     int
	playMetronome bool
	playVolume    float64
	playWatch     bool
)

func init() {
	playInput.register(playCmd)
	f := playCmd.Flags()
	f.BoolVar(&playLoop, "loop", false, "loop playback; use with --loops to count then stop")
	f.IntVar(&playLoops, "loops", 3, "when --loop, stop after N loops (0 = loop forever)")
	f.BoolVar(&playMetronome, "metronome", false, "click on every step, accented every fourth")
	f.Float64Var(&playVolume, "volume", 1.0, "master volume scalar")
	f.BoolVar(&playWatch, "watch", false, "reload and restart when --file changes")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a tab through the audio device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if playWatch && playInput.file == "" {
			return errors.New("--watch needs --file")
		}
		text, name, err := playInput.read()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		device := audio.NewDevice(cfg.Audio.SampleRate, nil)
		pl, err := tabplay.NewPlayer(cfg.Audio.SampleRate,
			tabplay.WithDevice(device),
			tabplay.WithLogger(logger),
			tabplay.WithTuning(cfg.Tuning),
			tabplay.WithTempo(cfg.TempoBPM),
			tabplay.WithNoteValue(cfg.NoteValue),
			tabplay.WithSpacing(cfg.Timing().Spacing, cfg.ColumnsPerStep),
			tabplay.WithLoopPlayback(playLoop || cfg.Loop),
			tabplay.WithMetronome(playMetronome || cfg.Metronome),
			tabplay.WithMultiDigitFrets(cfg.MultiDigitFrets),
		)
		if err != nil {
			return err
		}
		defer pl.Close()
		pl.SetMasterVolume(playVolume * cfg.Audio.Volume)
		if err := pl.Load(text); err != nil {
			return err
		}

		var reload <-chan string
		if playWatch {
			ch, err := watchFile(ctx, playInput.file)
			if err != nil {
				return err
			}
			reload = ch
		}

		events := pl.Watch()
		if err := pl.Play(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "playing %s (%s, %.0f bpm)\n", name, cfg.Tuning, cfg.TempoBPM)
		return runPlayback(ctx, cmd, pl, events, reload)
	},
}

func runPlayback(ctx context.Context, cmd *cobra.Command, pl *tabplay.Player, events <-chan tabplay.PlaybackEvent, reload <-chan string) error {
	out := cmd.OutOrStdout()
	loopCount := 0
	for {
		select {
		case <-ctx.Done():
			return pl.Stop()
		case text := <-reload:
			if err := pl.Load(text); err != nil {
				logger.Warn("reload failed", zap.Error(err))
				fmt.Fprintf(out, "reload failed: %v\n", err)
				continue
			}
			loopCount = 0
			events = pl.Watch()
			if err := pl.Play(); err != nil {
				return err
			}
			fmt.Fprintln(out, "reloaded")
		case event := <-events:
			switch event.Kind {
			case tabplay.EventPlaybackEnded:
				fmt.Fprintln(out, "playback completed")
				if reload == nil {
					return nil
				}
			case tabplay.EventLoopCompleted:
				loopCount++
				fmt.Fprintf(out, "loop %d completed\n", loopCount)
				if playLoops > 0 && loopCount >= playLoops {
					if err := pl.Stop(); err != nil {
						return err
					}
				}
			case tabplay.EventTrigger:
				names := make([]string, len(event.Pitches))
				for i, p := range event.Pitches {
					names[i] = tuning.NoteName(p)
				}
				fmt.Fprintf(out, "step %d col %d: %s\n", event.Index, event.Position, strings.Join(names, " "))
			}
		}
	}
}

// watchFile sends the file's contents each time it is written. Editors that
// replace the file on save are handled by watching its directory.
func watchFile(ctx context.Context, path string) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	out := make(chan string)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				data, err := os.ReadFile(abs)
				if err != nil {
					logger.Warn("read watched file", zap.String("path", abs), zap.Error(err))
					continue
				}
				logger.Debug("tab file changed", zap.String("path", abs), zap.String("op", event.Op.String()))
				select {
				case out <- string(data):
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", zap.Error(err))
			}
		}
	}()
	return out, nil
}
