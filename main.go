package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"hearing-go/internal/audio"
	"hearing-go/internal/config"
	logger "hearing-go/internal/logging"
	"hearing-go/internal/models"
	"hearing-go/internal/procedure"
	"hearing-go/internal/router"
	"hearing-go/internal/services"
	"hearing-go/internal/terminal"
)

func main() {
	root := flag.String("root", ".", "project root holding config/config.yaml")
	tui := flag.Bool("tui", false, "run one test in the terminal instead of serving the browser interface")
	modeName := flag.String("mode", string(models.ModePureTone), "test mode for -tui: puretone, speech, both or gamemode")
	language := flag.String("language", "", "speech language for -tui; empty uses the configured one")
	flag.Parse()

	v, cfg, err := config.Load(*root)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.Init(cfg.Logging)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	config.Watch(v, log)

	scenarios, err := models.LoadScenarios(cfg.Assets.Scenarios)
	if err != nil {
		log.Fatal("Failed to load scenarios", zap.Error(err))
	}
	wordLists, err := models.LoadWordLists(cfg.Assets.Words)
	if err != nil {
		log.Fatal("Failed to load word lists", zap.Error(err))
	}

	// Nothing can be tested without sound.
	out, err := audio.NewOutput(log, cfg.Audio.SampleRate, cfg.Audio.Fade())
	if err != nil {
		log.Fatal("Failed to open audio output", zap.Error(err))
	}
	defer out.Close()
	speaker := audio.NewEspeakSpeaker(log, out, cfg.Audio.EspeakBinary, cfg.Audio.SampleRate)

	orch := services.NewOrchestrator(log, services.Dependencies{
		Device:    out,
		Speaker:   speaker,
		Scenarios: scenarios,
		WordLists: wordLists,
		Language:  cfg.Test.Language,
		Timing:    func() procedure.Timing { return config.Get().Test.Timing() },
		OnComplete: func(b models.ResultsBundle) {
			log.Info("Session complete", zap.String("mode", string(b.Mode)))
		},
	})
	defer orch.Stop()

	if *tui {
		mode, err := models.ParseMode(*modeName)
		if err != nil {
			log.Fatal("Invalid mode", zap.String("mode", *modeName), zap.Error(err))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		console := terminal.NewConsole(log, orch, os.Stdin, os.Stdout)
		err = console.Run(ctx, mode, services.StartOptions{Language: *language}, ".")
		switch {
		case err == nil, errors.Is(err, terminal.ErrQuit), errors.Is(err, context.Canceled):
		default:
			log.Error("Test failed", zap.Error(err))
		}
		return
	}

	r := router.Setup(log, orch, wordLists, func() string { return config.Get().Test.Language })
	addr := cfg.Server.Addr()
	log.Info("Server listening on http://" + addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
