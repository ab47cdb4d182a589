package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/Urabewe/OllamaVisionGUI"
	"github.com/lmittmann/tint"
)

var (
	settingsPath = flag.String("settings", "ollamavision.yaml", "Path to settings file")
	dbPath       = flag.String("db", "./ollamavision.db", "Path to caption history database")

	backendName   = flag.String("backend", "", "Backend to use: ollama, openai, openrouter, textgen")
	modelName     = flag.String("model", "", "Model identifier")
	ollamaServer  = flag.String("ollama", "", "Address of running Ollama server, typically http://localhost:11434")
	textgenServer = flag.String("textgen", "", "Address of running TextGen WebUI server, typically http://localhost:5000")
	openaiKey     = flag.String("openai-key", "", "OpenAI API key (defaults to OPENAI_API_KEY)")
	openrouterKey = flag.String("openrouter-key", "", "OpenRouter API key (defaults to OPENROUTER_API_KEY)")

	folderPath  = flag.String("folder", "", "Folder of images to batch caption")
	imagePath   = flag.String("image", "", "Single image to caption")
	enhanceText = flag.String("enhance", "", "Text prompt to enhance")
	enhanceKind = flag.String("enhance-type", "qwen", "Enhancement preset, qwen or wan")

	promptText    = flag.String("prompt", "", "Prompt sent with each image")
	styleName     = flag.String("style", "", "Caption style preset (see -styles)")
	listStyles    = flag.Bool("styles", false, "List caption style presets")
	triggerWord   = flag.String("trigger", "", "Trigger word added to every batch caption")
	triggerSuffix = flag.Bool("trigger-suffix", false, "Append the trigger word instead of prepending")

	workers     = flag.Int("workers", 0, "Concurrent caption requests")
	timeoutSecs = flag.Int("timeout", 0, "Per-request timeout in seconds")
	rpm         = flag.Int("rpm", 0, "Request rate cap per minute, 0 disables")

	listModels   = flag.Bool("models", false, "List models available on the backend")
	showHistory  = flag.Int("history", 0, "Show the N most recent batch runs")
	saveSettings = flag.Bool("save-settings", false, "Write the effective settings back to the settings file")

	lameduck bool
)

// applyFlags folds command line overrides into the persisted settings.
func applyFlags(s *ollamavision.Settings) {
	if *backendName != "" {
		s.Backend = ollamavision.Backend(*backendName)
	}
	if *ollamaServer != "" {
		s.Ollama.URL = *ollamaServer
	}
	if *textgenServer != "" {
		s.TextGen.URL = *textgenServer
	}
	if key := keyOr(*openaiKey, "OPENAI_API_KEY"); key != "" {
		s.OpenAI.APIKey = key
	}
	if key := keyOr(*openrouterKey, "OPENROUTER_API_KEY"); key != "" {
		s.OpenRouter.APIKey = key
	}
	if *modelName != "" {
		switch s.Backend {
		case ollamavision.BackendOllama:
			s.Ollama.Model = *modelName
		case ollamavision.BackendOpenAI:
			s.OpenAI.Model = *modelName
		case ollamavision.BackendOpenRouter:
			s.OpenRouter.Model = *modelName
		case ollamavision.BackendTextGen:
			s.TextGen.Model = *modelName
		}
	}
	if *styleName != "" {
		s.CaptionStyle = *styleName
	}
	if *triggerWord != "" {
		s.TriggerWord = *triggerWord
	}
	if *triggerSuffix {
		s.TriggerSuffix = true
	}
	if *workers > 0 {
		s.Workers = *workers
	}
	if *timeoutSecs > 0 {
		s.TimeoutSeconds = *timeoutSecs
	}
	if *rpm > 0 {
		s.RequestsPerMinute = *rpm
	}
}

func keyOr(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}

func run(ctx context.Context, logger *slog.Logger) error {
	settings, err := ollamavision.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}
	applyFlags(settings)

	if *saveSettings {
		if err := settings.Save(*settingsPath); err != nil {
			return err
		}
		logger.Info("settings saved", "path", *settingsPath)
	}

	if *listStyles {
		for _, style := range ollamavision.CaptionStyles() {
			fmt.Println(style)
		}
		return nil
	}

	if *showHistory > 0 {
		return printHistory(ctx, *showHistory)
	}

	v, err := ollamavision.Init(settings.Options(&http.Client{}))
	if err != nil {
		return err
	}

	switch {
	case *listModels:
		models, err := v.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil

	case *enhanceText != "":
		enhanced, err := v.Enhance(ctx, *enhanceText, ollamavision.EnhancePrompt(*enhanceKind), settings.Params, settings.Timeout())
		if err != nil {
			return err
		}
		fmt.Println(enhanced)
		return nil

	case *imagePath != "":
		caption, err := v.CaptionImage(ctx, *imagePath, *promptText, stylePrompt(settings), settings.Params, settings.Timeout())
		if err != nil {
			return err
		}
		fmt.Println(caption)
		return nil

	case *folderPath != "":
		return runBatch(ctx, v, settings, logger)
	}

	flag.Usage()
	return nil
}

func stylePrompt(settings *ollamavision.Settings) string {
	prompt, _ := ollamavision.CaptionStylePrompt(settings.CaptionStyle)
	return prompt
}

func runBatch(ctx context.Context, v *ollamavision.Vision, settings *ollamavision.Settings, logger *slog.Logger) error {
	if !v.IsHealthy() {
		return fmt.Errorf("server is not responding")
	}

	db, err := ollamavision.NewDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("starting batch", "folder", *folderPath, "backend", v.Name(), "model", v.Model())

	opts := ollamavision.BatchOptions{
		Folder:            *folderPath,
		Prompt:            *promptText,
		System:            stylePrompt(settings),
		TriggerWord:       settings.TriggerWord,
		TriggerSuffix:     settings.TriggerSuffix,
		Params:            settings.Params,
		Workers:           settings.Workers,
		Timeout:           settings.Timeout(),
		RequestsPerMinute: settings.RequestsPerMinute,
	}

	run, err := v.RunBatch(ctx, opts, newProgressReporter(logger))
	if err != nil {
		return err
	}

	// Cancellation still leaves a partial run worth recording.
	if err := db.RecordRun(context.WithoutCancel(ctx), v.Name(), v.Model(), run); err != nil {
		logger.Error("recording batch history", "err", err)
	}

	return nil
}

func printHistory(ctx context.Context, limit int) error {
	db, err := ollamavision.NewDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	batches, err := db.RecentBatches(ctx, limit)
	if err != nil {
		return err
	}
	for _, b := range batches {
		status := "finished"
		if b.Cancelled {
			status = "cancelled"
		}
		fmt.Printf("%d  %s  %s/%s  ok=%d failed=%d  %s  %s\n",
			b.Id, b.StartedAt.Format(time.DateTime), b.Backend, b.Model,
			b.Succeeded, b.Failed, status, b.Folder)
	}
	return nil
}

func sighandler(ch chan os.Signal, cancel context.CancelFunc) {
	for {
		<-ch
		if lameduck {
			// Already in lame duck, hard stop
			fmt.Println("Exiting")
			os.Exit(1)
		} else {
			fmt.Println("SIGINT received, stopping after in-flight items...")
			lameduck = true
			cancel()
		}
	}
}

func main() {
	flag.Parse()

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			TimeFormat: "15:04:05",
		}),
	)

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go sighandler(sigch, cancel)

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}
