package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go"
	"github.com/cbegin/tabplay-go/internal/config"
	"github.com/cbegin/tabplay-go/internal/logging"
	"github.com/cbegin/tabplay-go/internal/particles"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 980
	minWindowH = 600

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
	rowPitch  = lineH + 12

	particleCount = 70
	linkDistance  = 110
)

var (
	tempoSlider  = slider{label: "Tempo", min: 40, max: 240, format: bpm}
	volumeSlider = slider{label: "Vol", min: 0, max: 1, format: percent}
)

const (
	dragNone = iota
	dragTempo
	dragVolume
)

type game struct {
	player *tabplay.Player
	events <-chan tabplay.PlaybackEvent
	log    *zap.Logger

	// applyTempo defers SetTempo until the slider settles so a drag does not
	// retime every pending step.
	applyTempo func(func())

	tempo     float64
	volume    float64
	looping   bool
	metronome bool
	playing   bool
	current   int // highlighted grid column, -1 for none
	loops     int
	dragging  int

	tunings     []string
	tuningIdx   int
	exercises   []string
	exerciseIdx int // -1 while a file is loaded
	sourceName  string

	field   *particles.Field
	viewImg *ebiten.Image
	scroll  int

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(cfg *config.Config, logger *zap.Logger, initialText, initialName string) (*game, error) {
	pl, err := tabplay.NewPlayer(cfg.Audio.SampleRate,
		tabplay.WithLogger(logger),
		tabplay.WithTuning(cfg.Tuning),
		tabplay.WithTempo(cfg.TempoBPM),
		tabplay.WithNoteValue(cfg.NoteValue),
		tabplay.WithSpacing(cfg.Timing().Spacing, cfg.ColumnsPerStep),
		tabplay.WithLoopPlayback(cfg.Loop),
		tabplay.WithMetronome(cfg.Metronome),
		tabplay.WithMultiDigitFrets(cfg.MultiDigitFrets),
	)
	if err != nil {
		return nil, err
	}
	pl.SetMasterVolume(cfg.Audio.Volume)

	g := &game{
		player:      pl,
		events:      pl.Watch(),
		log:         logger,
		applyTempo:  debounce.New(150 * time.Millisecond),
		tempo:       cfg.TempoBPM,
		volume:      cfg.Audio.Volume,
		looping:     cfg.Loop,
		metronome:   cfg.Metronome,
		current:     -1,
		tunings:     tuning.Names(),
		exercises:   tab.ExerciseNames(),
		exerciseIdx: -1,
		field:       particles.NewField(particleCount, windowW, windowH, rand.New(rand.NewSource(time.Now().UnixNano()))),
		status:      "Ready",
		textCache:   make(map[string]*ebiten.Image, 1024),
		viewW:       windowW,
		viewH:       windowH,
	}
	for i, name := range g.tunings {
		if name == pl.Tuning() {
			g.tuningIdx = i
		}
	}

	if initialText != "" {
		if err := pl.Load(initialText); err != nil {
			return nil, err
		}
		g.sourceName = initialName
		return g, nil
	}
	g.loadExercise(0)
	return g, nil
}

func (g *game) Update() error {
	g.pollEvents()
	g.handleInput()
	g.field.Tick(1 / float64(ebiten.TPS()))
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawTabView(screen, l.view)
	g.drawButton(screen, l.play, g.playButtonLabel(), g.playing)
	g.drawButton(screen, l.reset, "Reset", false)
	g.drawButton(screen, l.loop, "Loop", g.looping)
	g.drawButton(screen, l.click, "Click", g.metronome)
	g.drawButton(screen, l.tuning, g.tunings[g.tuningIdx], false)
	g.drawButton(screen, l.source, shortenEnd(g.sourceLabel(), (l.source.Dx()-16)/charW), false)
	g.drawSlider(screen, l.tempo, tempoSlider, g.tempo)
	g.drawSlider(screen, l.volume, volumeSlider, g.volume)
	g.drawSunkenPanel(screen, l.status)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	if outsideW != g.viewW || outsideH != g.viewH {
		g.field.Resize(float64(outsideW), float64(outsideH))
	}
	g.viewW = outsideW
	g.viewH = outsideH
	return outsideW, outsideH
}

func (g *game) Close() { _ = g.player.Close() }

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case tabplay.EventTrigger:
				g.current = ev.Position
			case tabplay.EventLoopCompleted:
				g.loops++
				g.setStatus(fmt.Sprintf("Loop %d completed", g.loops))
			case tabplay.EventPlaybackEnded:
				g.playing = false
				g.current = -1
				if !g.statusErr {
					g.status = "Playback ended"
				}
			}
		default:
			return
		}
	}
}

func (g *game) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlay()
	}

	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlay()
		case pointInRect(mx, my, l.reset):
			g.player.Reset()
			g.current = -1
			g.scroll = 0
			g.setStatus("Back to the start")
		case pointInRect(mx, my, l.loop):
			g.looping = !g.looping
			g.player.SetLooping(g.looping)
			g.setStatus(fmt.Sprintf("Loop %s", onOff(g.looping)))
		case pointInRect(mx, my, l.click):
			g.metronome = !g.metronome
			g.player.SetMetronome(g.metronome)
			g.setStatus(fmt.Sprintf("Metronome %s", onOff(g.metronome)))
		case pointInRect(mx, my, l.tuning):
			g.cycleTuning()
		case pointInRect(mx, my, l.source):
			g.loadExercise(g.exerciseIdx + 1)
		case pointInRect(mx, my, l.tempo):
			g.dragging = dragTempo
		case pointInRect(mx, my, l.volume):
			g.dragging = dragVolume
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = dragNone
	}
	switch g.dragging {
	case dragTempo:
		g.updateTempoFromMouse(mx, l.tempo)
	case dragVolume:
		if v, ok := volumeSlider.valueAt(mx, l.volume); ok {
			g.volume = v
			g.player.SetMasterVolume(v)
			g.setStatus("Volume: " + percent(v))
		}
	}

	if _, wy := ebiten.Wheel(); wy != 0 && pointInRect(mx, my, l.view) {
		g.scroll = max(0, g.scroll-int(wy*2))
	}
}

func (g *game) updateTempoFromMouse(mx int, rect image.Rectangle) {
	v, ok := tempoSlider.valueAt(mx, rect)
	if !ok {
		return
	}
	v = float64(int(v + 0.5))
	if v == g.tempo {
		return
	}
	g.tempo = v
	g.setStatus("Tempo: " + bpm(v))
	g.applyTempo(func() {
		if err := g.player.SetTempo(v); err != nil {
			g.log.Warn("set tempo", zap.Float64("bpm", v), zap.Error(err))
		}
	})
}

func (g *game) togglePlay() {
	if g.playing {
		if err := g.player.Stop(); err != nil {
			g.setError(err.Error())
			return
		}
		g.playing = false
		g.setStatus("Stopped")
		return
	}
	g.loops = 0
	if err := g.player.Play(); err != nil {
		g.setError(err.Error())
		return
	}
	g.playing = true
	g.setStatus("Playing")
}

func (g *game) cycleTuning() {
	next := (g.tuningIdx + 1) % len(g.tunings)
	if err := g.player.SetTuning(g.tunings[next]); err != nil {
		g.setError(err.Error())
		return
	}
	g.tuningIdx = next
	table, _ := tuning.Lookup(g.tunings[next])
	g.setStatus(fmt.Sprintf("Tuning: %s (%s)", g.tunings[next], table))
}

func (g *game) loadExercise(idx int) {
	if idx < 0 || idx >= len(g.exercises) {
		idx = 0
	}
	name := g.exercises[idx]
	text, err := tab.ExerciseText(name)
	if err == nil {
		err = g.player.Load(text)
	}
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.exerciseIdx = idx
	g.sourceName = name
	g.playing = false
	g.current = -1
	g.scroll = 0
	g.setStatus("Loaded " + name)
}

func (g *game) sourceLabel() string {
	if g.exerciseIdx < 0 {
		return "File: " + g.sourceName
	}
	return "Tab: " + g.sourceName
}

func (g *game) playButtonLabel() string {
	if g.playing {
		return "Stop"
	}
	return "Play"
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
	g.log.Warn("ui error", zap.String("msg", msg))
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

type uiLayout struct {
	view                                     image.Rectangle
	play, reset, loop, click, tuning, source image.Rectangle
	tempo, volume, status                    image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w := max(g.viewW, minWindowW)
	h := max(g.viewH, minWindowH)

	pad := 20
	rowH := 44
	statusH := 40

	statusTop := h - pad - statusH
	slidersTop := statusTop - 8 - rowH
	buttonsTop := slidersTop - 8 - rowH

	row := func(x, width int) image.Rectangle {
		return image.Rect(x, buttonsTop, x+width, buttonsTop+rowH)
	}
	half := (w - 2*pad - 12) / 2
	return uiLayout{
		view:   image.Rect(pad, pad, w-pad, buttonsTop-12),
		play:   row(pad, 110),
		reset:  row(pad+122, 110),
		loop:   row(pad+244, 100),
		click:  row(pad+356, 100),
		tuning: row(pad+468, 230),
		source: row(pad+710, w-2*pad-710),
		tempo:  image.Rect(pad, slidersTop, pad+half, slidersTop+rowH),
		volume: image.Rect(pad+half+12, slidersTop, w-pad, slidersTop+rowH),
		status: image.Rect(pad, statusTop, w-pad, statusTop+statusH),
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// drawTabView paints the particle background and the six tab rows with the
// sounding column highlighted.
func (g *game) drawTabView(screen *ebiten.Image, rect image.Rectangle) {
	g.drawSunkenPanel(screen, rect)
	inner := image.Rect(rect.Min.X+4, rect.Min.Y+4, rect.Max.X-4, rect.Max.Y-4)
	if inner.Dx() <= 0 || inner.Dy() <= 0 {
		return
	}
	if g.viewImg == nil || g.viewImg.Bounds().Size() != inner.Size() {
		g.viewImg = ebiten.NewImage(inner.Dx(), inner.Dy())
	}
	dst := g.viewImg
	dst.Fill(sunkenBgColor)
	g.drawParticles(dst, inner.Min)

	t := g.player.Tab()
	if t != nil {
		g.drawGrid(dst, t)
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(dst, op)
}

func (g *game) drawParticles(dst *ebiten.Image, origin image.Point) {
	ps := g.field.Particles()
	ox, oy := float64(origin.X), float64(origin.Y)
	for _, link := range g.field.Links(linkDistance) {
		a, b := ps[link.A], ps[link.B]
		c := color.RGBA{80, 120, 200, uint8(90 * link.Alpha)}
		ebitenutil.DrawLine(dst, a.X-ox, a.Y-oy, b.X-ox, b.Y-oy, c)
	}
	for _, p := range ps {
		ebitenutil.DrawRect(dst, p.X-ox-p.Size/2, p.Y-oy-p.Size/2, p.Size, p.Size, color.RGBA{140, 170, 230, 160})
	}
}

func (g *game) drawGrid(dst *ebiten.Image, t *tab.Tab) {
	width := dst.Bounds().Dx()
	cols := max(1, (width-24)/charW-tab.LabelWidth)
	// Keep the sounding column on screen.
	if g.current >= 0 && (g.current < g.scroll || g.current >= g.scroll+cols) {
		g.scroll = max(0, g.current-cols/4)
	}
	g.scroll = min(g.scroll, max(0, t.Width-cols))

	gridH := tab.Strings * rowPitch
	top := max(12, (dst.Bounds().Dy()-gridH)/2)
	left := 12

	if g.current >= g.scroll && g.current < g.scroll+cols {
		x := left + (tab.LabelWidth+g.current-g.scroll)*charW
		ebitenutil.DrawRect(dst, float64(x-2), float64(top-6), charW+4, float64(gridH), highlightColor)
	}
	end := min(t.Width, g.scroll+cols)
	for i := 0; i < tab.Strings; i++ {
		row := []rune(t.Rows[i])[g.scroll:end]
		g.drawText(dst, t.Labels[i]+string(row), left, top+i*rowPitch)
	}
	if g.scroll > 0 || end < t.Width {
		info := fmt.Sprintf("cols %d-%d of %d", g.scroll+1, end, t.Width)
		g.drawText(dst, info, left, top+gridH+4)
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("TABPLAY_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	var initialText, initialName string
	if len(os.Args) > 1 {
		p, err := filepath.Abs(os.Args[1])
		if err != nil {
			log.Fatalf("resolve %q: %v", os.Args[1], err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			log.Fatalf("read %q: %v", p, err)
		}
		initialText = string(data)
		initialName = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}

	g, err := newGame(cfg, logger, initialText, initialName)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("tabplay")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
