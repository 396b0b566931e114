package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-speechbot/core"
	"github.com/koscakluka/ema-speechbot/core/audio"
	"github.com/koscakluka/ema-speechbot/core/bots/directline"
	"github.com/koscakluka/ema-speechbot/core/speechtotext"
	"github.com/koscakluka/ema-speechbot/core/speechtotext/bingspeech"
	"github.com/spf13/cobra"
)

const languageEnv = "SPEECH_LANGUAGE"

type runConfig struct {
	speechKey        string
	directLineSecret string
	language         string
	wavPath          string
	logFile          string
	target           string
	inactivity       time.Duration
	chunkInterval    time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "speechbot",
		Short:        "Talk to a Direct Line bot through live speech recognition",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(newRunCommand())
	return rootCmd
}

func newRunCommand() *cobra.Command {
	cfg := runConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the speech and bot sessions behind a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("language") {
				if value, ok := os.LookupEnv(languageEnv); ok && value != "" {
					cfg.language = value
				}
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.speechKey, "speech-key", "", "Speech subscription key (default $BING_SPEECH_KEY)")
	cmd.Flags().StringVar(&cfg.directLineSecret, "directline-secret", "", "Direct Line secret (default $DIRECTLINE_SECRET)")
	cmd.Flags().StringVar(&cfg.language, "language", string(bingspeech.DefaultLanguage), "Recognition language, e.g. en-US (default $"+languageEnv+")")
	cmd.Flags().StringVar(&cfg.wavPath, "wav", "", "WAV file streamed as microphone input once both sessions are ready")
	cmd.Flags().StringVar(&cfg.logFile, "log-file", "speechbot.log", "File the JSON logs are written to")
	cmd.Flags().StringVar(&cfg.target, "target", "bot", "Name of the focus target")
	cmd.Flags().DurationVar(&cfg.inactivity, "inactivity", orchestration.DefaultInactivityTimeout, "How long focus may be lost before the sessions stop")
	cmd.Flags().DurationVar(&cfg.chunkInterval, "chunk-interval", defaultChunkInterval, "Interval between streamed WAV chunks")

	return cmd
}

func run(ctx context.Context, cfg runConfig) error {
	language, err := bingspeech.ParseLanguage(cfg.language)
	if err != nil {
		return fmt.Errorf("invalid language: %w", err)
	}

	logger, logFile := newLogger(cfg.logFile)
	defer logFile.Close()

	feed := speechtotext.NewRecordingFeed(audio.GetDefaultEncodingInfo())
	speech := bingspeech.New(
		bingspeech.WithAPIKey(cfg.speechKey),
		bingspeech.WithLanguage(language),
		bingspeech.WithMicrophone(feed),
		bingspeech.WithLogger(logger.With("session", "speech")),
	)
	bot := directline.New(
		directline.WithSecret(cfg.directLineSecret),
		directline.WithLogger(logger.With("session", "bot")),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := &programSink{}
	opts := []orchestration.OrchestratorOption{
		orchestration.WithCaptionSink(sink),
		orchestration.WithInactivityTimeout(cfg.inactivity),
		orchestration.WithTargetName(cfg.target),
		orchestration.WithLogger(logger),
		orchestration.WithBaseContext(ctx),
	}
	if cfg.wavPath != "" {
		recorder, err := newWAVRecorder(cfg.wavPath, feed, cfg.chunkInterval, logger)
		if err != nil {
			return err
		}
		opts = append(opts, orchestration.WithRecorder(recorder))
	}

	o := orchestration.NewOrchestrator(speech, bot, opts...)
	defer o.Close()

	go func() {
		if err := o.Run(ctx, orchestration.DefaultTickInterval); err != nil && ctx.Err() == nil {
			logger.Error("Orchestrator stopped", "error", err)
		}
	}()

	program := tea.NewProgram(newModel(o, cfg.target), tea.WithAltScreen())
	sink.attach(program)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}
	return nil
}
