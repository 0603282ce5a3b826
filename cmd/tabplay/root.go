package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cbegin/tabplay-go/internal/config"
	"github.com/cbegin/tabplay-go/internal/logging"
)

var (
	cfgFile    string
	logLevel   string
	flagTuning string
	flagTempo  float64
	flagMulti  bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tabplay",
	Short: "Play, inspect and export guitar tablature",
	Long: `tabplay reads six-line guitar tablature, resolves every fret to a pitch
under a tuning, and plays it through a plucked-string synth. Tabs can also be
rendered to WAV, MIDI or PNG, or served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("tuning") {
			cfg.Tuning = flagTuning
		}
		if flags.Changed("tempo") {
			cfg.TempoBPM = flagTempo
		}
		if flags.Changed("multi-digit") {
			cfg.MultiDigitFrets = flagMulti
		}
		if flags.Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "tabplay.yaml", "config file (YAML)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&flagTuning, "tuning", "standard", "tuning name (see 'tabplay tunings')")
	pf.Float64Var(&flagTempo, "tempo", 120, "tempo in beats per minute")
	pf.BoolVar(&flagMulti, "multi-digit", false, "read a run of digits as one fret (12 = fret 12)")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
