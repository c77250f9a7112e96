package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"localchat/internal/config"
	"localchat/internal/ollama"
	"localchat/internal/settings"
)

// app carries the resolved configuration and shared outputs for every
// subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	flags      config.Config
	temp       float64

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:           "localchatd",
		Short:         "Streaming chat sessions against a local Ollama server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "Log format: console|json (default console)")
	pf.StringVar(&a.flags.OllamaURL, "ollama-url", "", "Ollama base URL (default "+config.Defaults().OllamaURL+")")
	pf.StringVar(&a.flags.OllamaOrigin, "ollama-origin", "", "Origin header sent to Ollama")
	pf.StringVar(&a.flags.SettingsPath, "settings", "", "Settings file (default "+config.Defaults().SettingsPath+")")
	pf.StringVar(&a.flags.DefaultModel, "default-model", "", "Model used when neither request nor settings name one")
	pf.Float64Var(&a.temp, "default-temperature", 0, "Sampling temperature when a request omits one")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("default-temperature") {
			t := a.temp
			a.flags.Temperature = &t
		}
		cfg, err := resolveConfig(a.configPath, a.flags)
		if err != nil {
			return err
		}
		a.cfg = cfg
		a.log = newLogger(errOut, cfg.LogLevel, cfg.LogFormat)
		return nil
	}

	root.AddCommand(newServeCmd(a), newModelsCmd(a), newAskCmd(a), newSettingsCmd(a))
	return root
}

// resolveConfig layers defaults, the config file, LOCALCHAT_* variables and
// flags, in that order.
func resolveConfig(path string, flags config.Config) (config.Config, error) {
	cfg := config.Defaults()
	if path != "" {
		fc, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.Merge(fc)
	}
	env, err := config.FromEnv(nil)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Merge(env).Merge(flags)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func (a *app) settingsStore() (*settings.FileStore, error) {
	return settings.NewFileStore(a.cfg.SettingsPath)
}

func (a *app) ollamaClient(store ollama.SettingsSource) *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:        a.cfg.OllamaURL,
		Origin:         a.cfg.OllamaOrigin,
		DefaultModel:   a.cfg.DefaultModel,
		SystemPrompt:   a.cfg.SystemPrompt,
		Temperature:    a.cfg.Temperature,
		StreamTimeout:  a.cfg.StreamTimeout.D(),
		ConnectTimeout: a.cfg.ConnectTimeout.D(),
		Settings:       store,
		Logger:         &a.log,
	})
}
