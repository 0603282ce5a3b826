package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go/internal/config"
	"github.com/cbegin/tabplay-go/internal/midifile"
	"github.com/cbegin/tabplay-go/internal/schedule"
	"github.com/cbegin/tabplay-go/internal/tab"
	"github.com/cbegin/tabplay-go/internal/tabimage"
	"github.com/cbegin/tabplay-go/internal/theory"
	"github.com/cbegin/tabplay-go/internal/tuning"
)

// maxBody bounds request bodies; a tab is a few kilobytes at most.
const maxBody = 1 << 20

// Server exposes parsing, planning and export over HTTP.
type Server struct {
	cfg    *config.Config
	log    *zap.Logger
	router *mux.Router
}

func New(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: logger, router: mux.NewRouter().StrictSlash(true)}
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tunings", s.handleTunings).Methods(http.MethodGet)
	api.HandleFunc("/exercises", s.handleExerciseNames).Methods(http.MethodGet)
	api.HandleFunc("/exercises/{name}", s.handleExercise).Methods(http.MethodGet)
	api.HandleFunc("/parse", s.handleParse).Methods(http.MethodPost)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodPost)
	api.HandleFunc("/midi", s.handleMIDI).Methods(http.MethodPost)
	api.HandleFunc("/image", s.handleImage).Methods(http.MethodPost)
	api.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	s.router.Use(s.logRequests)
	return s
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type tuningInfo struct {
	Name    string `json:"name"`
	Pitches []int  `json:"pitches"`
	Notes   string `json:"notes"`
}

func (s *Server) handleTunings(w http.ResponseWriter, r *http.Request) {
	names := tuning.Names()
	out := make([]tuningInfo, 0, len(names))
	for _, name := range names {
		table, _ := tuning.Lookup(name)
		out = append(out, tuningInfo{Name: name, Pitches: table[:], Notes: table.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExerciseNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tab.ExerciseNames())
}

type exerciseResponse struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *Server) handleExercise(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	text, err := tab.ExerciseText(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exerciseResponse{Name: name, Text: text})
}

// tabRequest is the body shared by the POST endpoints. Zero fields fall back
// to the server config.
type tabRequest struct {
	Tab       string  `json:"tab"`
	Tuning    string  `json:"tuning,omitempty"`
	Tempo     float64 `json:"tempo,omitempty"`
	NoteValue int     `json:"note_value,omitempty"`
	Spacing   string  `json:"spacing,omitempty"`
	Highlight *int    `json:"highlight,omitempty"`
	// MultiDigit overrides the configured fret reading mode.
	MultiDigit *bool `json:"multi_digit,omitempty"`
}

type noteJSON struct {
	String int    `json:"string"`
	Fret   int    `json:"fret"`
	Pitch  int    `json:"pitch"`
	Name   string `json:"name"`
}

type eventJSON struct {
	Position int        `json:"position"`
	Notes    []noteJSON `json:"notes"`
}

type parseResponse struct {
	Tuning string      `json:"tuning"`
	Width  int         `json:"width"`
	Events []eventJSON `json:"events"`
}

type tripleJSON struct {
	Index      int     `json:"index"`
	Pitch      int     `json:"pitch"`
	StartMs    float64 `json:"start_ms"`
	DurationMs float64 `json:"duration_ms"`
}

type planResponse struct {
	Tempo    float64      `json:"tempo"`
	LengthMs float64      `json:"length_ms"`
	Notes    []tripleJSON `json:"notes"`
}

// compiled is a request resolved against its tuning.
type compiled struct {
	tuning string
	tab    *tab.Tab
	steps  []schedule.Step
	tempo  float64
	timing schedule.Timing
	// highlight is the column to mark in images, -1 for none.
	highlight int
}

func (s *Server) compile(w http.ResponseWriter, r *http.Request) (*compiled, error) {
	var req tabRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		return nil, &requestError{err: err}
	}
	c := &compiled{
		tuning:    s.cfg.Tuning,
		tempo:     s.cfg.TempoBPM,
		timing:    s.cfg.Timing(),
		highlight: -1,
	}
	if req.Highlight != nil {
		c.highlight = *req.Highlight
	}
	if req.Tuning != "" {
		c.tuning = req.Tuning
	}
	if req.Tempo != 0 {
		c.tempo = req.Tempo
	}
	if req.NoteValue != 0 {
		if err := schedule.CheckNoteValue(req.NoteValue); err != nil {
			return nil, &requestError{err: err}
		}
		c.timing.NoteValue = req.NoteValue
	}
	if req.Spacing != "" {
		sp, err := schedule.ParseSpacing(req.Spacing)
		if err != nil {
			return nil, &requestError{err: err}
		}
		c.timing.Spacing = sp
	}
	if !(c.tempo > 0) {
		return nil, schedule.ErrTempo
	}
	table, err := tuning.Lookup(c.tuning)
	if err != nil {
		return nil, err
	}
	opts := s.cfg.ParseOptions()
	if req.MultiDigit != nil {
		opts.MultiDigit = *req.MultiDigit
	}
	t, err := tab.ParseWith(req.Tab, opts)
	if err != nil {
		return nil, err
	}
	steps, err := schedule.Resolve(t, table)
	if err != nil {
		return nil, err
	}
	c.tab = t
	c.steps = steps
	return c, nil
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	c, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parseResponse{Tuning: c.tuning, Width: c.tab.Width, Events: eventsOf(c.steps)})
}

func eventsOf(steps []schedule.Step) []eventJSON {
	out := make([]eventJSON, 0, len(steps))
	for _, st := range steps {
		ev := eventJSON{Position: st.Position}
		for i, n := range st.Notes {
			ev.Notes = append(ev.Notes, noteJSON{
				String: n.String,
				Fret:   n.Fret,
				Pitch:  st.Pitches[i],
				Name:   tuning.NoteName(st.Pitches[i]),
			})
		}
		out = append(out, ev)
	}
	return out
}

// generateRequest selects a practice tab. Empty fields take the generator
// defaults, except Tuning which falls back to the server config.
type generateRequest struct {
	Root        string `json:"root,omitempty"`
	Scale       string `json:"scale,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Bars        int    `json:"bars,omitempty"`
	Position    int    `json:"position,omitempty"`
	Tuning      string `json:"tuning,omitempty"`
	Progression string `json:"progression,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
}

type generateResponse struct {
	Text   string           `json:"text"`
	Scale  theory.ScaleInfo `json:"scale"`
	Tuning string           `json:"tuning"`
	Width  int              `json:"width"`
	Events []eventJSON      `json:"events"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, &requestError{err: err})
		return
	}
	opts := theory.Options{
		Root:        req.Root,
		Scale:       req.Scale,
		Pattern:     req.Pattern,
		Bars:        req.Bars,
		Position:    req.Position,
		Tuning:      req.Tuning,
		Progression: req.Progression,
	}
	if opts.Tuning == "" {
		opts.Tuning = s.cfg.Tuning
	}
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	opts.Rand = rand.New(rand.NewSource(seed))

	text, err := theory.Generate(opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts = opts.WithDefaults()
	root, _ := theory.ParseRoot(opts.Root)
	info, _ := theory.DescribeScale(root, opts.Scale)
	table, _ := tuning.Lookup(opts.Tuning)
	t, err := tab.ParseWith(text, theory.ParseOptions())
	if err != nil {
		s.writeError(w, err)
		return
	}
	steps, err := schedule.Resolve(t, table)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Text:   text,
		Scale:  info,
		Tuning: opts.Tuning,
		Width:  t.Width,
		Events: eventsOf(steps),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	c, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	plan := schedule.BuildPlan(c.steps, c.tempo, c.timing)
	resp := planResponse{Tempo: plan.TempoBPM, LengthMs: msOf(plan.Length), Notes: make([]tripleJSON, 0, len(plan.Triples))}
	for _, tr := range plan.Triples {
		resp.Notes = append(resp.Notes, tripleJSON{
			Index:      tr.Index,
			Pitch:      tr.Pitch,
			StartMs:    tr.StartMs(),
			DurationMs: tr.DurationMs(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	c, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := midifile.Write(&buf, schedule.BuildPlan(c.steps, c.tempo, c.timing)); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="tab.mid"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	c, err := s.compile(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	img, err := tabimage.Render(c.tab, c.highlight)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
