package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"

	"localchat/internal/catalog"
	"localchat/internal/ollama"
	"localchat/internal/session"
	"localchat/pkg/types"
)

func newModelsCmd(a *app) *cobra.Command {
	var debug, asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Short:   "List the models Ollama offers",
		Example: "  localchatd models\n  localchatd models --debug --json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.New(a.ollamaClient(nil),
				catalog.WithTTL(a.cfg.TagsTTL.D()),
				catalog.WithLogger(a.log),
			)
			snap, err := cat.Lookup(cmd.Context(), debug)
			if err != nil {
				return err
			}
			if asJSON {
				b, err := json.Marshal(types.ModelsResponse{
					Models:      snap.Models,
					TTLMs:       cat.TTL().Milliseconds(),
					FetchedAtMs: snap.FetchedAt.UnixMilli(),
				})
				if err != nil {
					return err
				}
				_, err = a.out.Write(pretty.Pretty(b))
				return err
			}
			for _, m := range snap.Models {
				fmt.Fprintln(a.out, m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Bypass the cache and log the raw payload")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the /models response body")
	return cmd
}

func newAskCmd(a *app) *cobra.Command {
	var (
		req               types.StreamRequest
		temperature, topP float64
		maxTokens         int
	)
	cmd := &cobra.Command{
		Use:     "ask <prompt>",
		Short:   "Stream one answer to stdout",
		Example: "  localchatd ask \"Why is the sky blue?\" --model mistral:7b",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = strings.Join(args, " ")
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			if cmd.Flags().Changed("top-p") {
				req.TopP = &topP
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}
			store, err := a.settingsStore()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.ask(ctx, a.ollamaClient(store), req)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Model, "model", "m", "", "Model id (defaults to the persisted setting)")
	f.StringVarP(&req.System, "system", "s", "", "System instruction")
	f.Float64VarP(&temperature, "temperature", "t", types.DefaultTemperature, "Sampling temperature")
	f.Float64Var(&topP, "top-p", 0, "Nucleus sampling probability")
	f.IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	return cmd
}

var errStreamFailed = errors.New("stream failed")

func (a *app) ask(ctx context.Context, st session.Streamer, req types.StreamRequest) error {
	var failed bool
	out, err := session.Run(ctx, st, req, func(ev types.StreamEvent) {
		switch ev.Type {
		case types.EventChunk:
			fmt.Fprint(a.out, ev.Data)
		case types.EventError:
			failed = true
			fmt.Fprintln(a.errOut, "error:", ev.Error)
		case types.EventDone:
			fmt.Fprintln(a.out)
		}
	})
	a.log.Debug().Err(err).Str("outcome", string(out)).Msg("stream finished")
	if failed || err != nil || out == ollama.OutcomeError {
		return errStreamFailed
	}
	return nil
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("settings requires a subcommand: get|set-model|set-debug")
		},
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print the persisted settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.settingsStore()
			if err != nil {
				return err
			}
			s, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSettings(s)
		},
	}
	setModel := &cobra.Command{
		Use:     "set-model <id>",
		Short:   "Persist the default model (empty id clears it)",
		Example: "  localchatd settings set-model mistral:7b\n  localchatd settings set-model \"\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateSettings(cmd.Context(), types.SettingsPatch{Model: &args[0]})
		},
	}
	setDebug := &cobra.Command{
		Use:   "set-debug <true|false>",
		Short: "Toggle verbose stream logging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("set-debug: %w", err)
			}
			return a.updateSettings(cmd.Context(), types.SettingsPatch{Debug: &v})
		},
	}
	cmd.AddCommand(get, setModel, setDebug)
	return cmd
}

func (a *app) updateSettings(ctx context.Context, patch types.SettingsPatch) error {
	store, err := a.settingsStore()
	if err != nil {
		return err
	}
	s, err := store.Update(ctx, patch)
	if err != nil {
		return err
	}
	return a.printSettings(s)
}

func (a *app) printSettings(s types.Settings) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	_, err = a.out.Write(b)
	return err
}
