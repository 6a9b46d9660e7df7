package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/cleanup"
	"github.com/codebuildervaibhav/conversate/internal/config"
	"github.com/codebuildervaibhav/conversate/internal/conversation"
	"github.com/codebuildervaibhav/conversate/internal/events"
	"github.com/codebuildervaibhav/conversate/internal/handlers"
	"github.com/codebuildervaibhav/conversate/internal/hardware"
	"github.com/codebuildervaibhav/conversate/internal/logging"
	"github.com/codebuildervaibhav/conversate/internal/pipeline"
	"github.com/codebuildervaibhav/conversate/internal/queue"
	"github.com/codebuildervaibhav/conversate/internal/speakers"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/summary"
	"github.com/codebuildervaibhav/conversate/internal/tokens"
	"github.com/codebuildervaibhav/conversate/internal/transcription"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	logBuffer := logging.NewLogBuffer(0)
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format, logBuffer)

	for _, dir := range []string{cfg.Storage.ConversationsDir, cfg.Storage.AvatarsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp directory")
	}

	ctx := context.Background()
	log.Info().Str("backend", cfg.Storage.Backend).Msg("Initializing components")

	convStore, speakerStore, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	files := storage.NewLocalStorage(cfg.Storage.ConversationsDir)
	convs := conversation.NewService(convStore, files, log)
	if legacy := cfg.Storage.LegacyConversationsFile; legacy != "" {
		n, err := convs.ImportLegacy(ctx, legacy)
		if err != nil {
			log.Fatal().Err(err).Str("file", legacy).Msg("Failed to import legacy conversations")
		}
		if n > 0 {
			log.Info().Int("count", n).Str("file", legacy).Msg("Imported legacy conversations")
		}
	}
	speakerSvc := speakers.NewService(speakerStore, files, cfg.Storage.AvatarsDir, log)

	tokenStore, err := tokens.NewStore(cfg.Tokens.EnvFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load API tokens")
	}
	probe := hardware.NewProbe()
	summarizer := summary.NewOpenAIClient(
		cfg.Summarization.BaseURL,
		cfg.Summarization.Model,
		cfg.SummarizationTimeout(),
		func() string { return tokenStore.Get(tokens.OpenAI) },
	)

	diarizer := transcription.NewPyannoteDiarizer(cfg.Diarization.URL, cfg.DiarizationTimeout())
	probeCtx, cancelProbe := context.WithTimeout(ctx, 3*time.Second)
	available := diarizer.IsAvailable(probeCtx)
	cancelProbe()
	if !available {
		log.Warn().Str("url", cfg.Diarization.URL).Msg("Diarization service not reachable; diarization runs will fail until it is up")
	}

	hub := events.NewHub(log)
	deps := pipeline.Deps{
		Conversations: convs,
		Diarizer:      diarizer,
		Transcriber:   transcription.NewWhisperTranscriber(cfg.Whisper.Command, cfg.Whisper.Language, cfg.Storage.TempDir, log),
		Audio:         transcription.NewAudioTools(cfg.Storage.TempDir),
		Summarizer:    summarizer,
		Devices:       probe,
		Tokens:        tokenStore,
		Events:        hub,
		Videos:        transcription.NewYouTubeImporter(cfg.Storage.TempDir, log),
	}

	// Google Drive export is optional
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Google Drive not available; export disabled")
		} else {
			deps.Exporter = driveClient
			log.Info().Str("folder", cfg.GoogleDrive.FolderName).Msg("Google Drive export enabled")
		}
	} else {
		log.Info().Msg("Google Drive credentials not found; export disabled")
	}

	runner := pipeline.NewRunner(deps, filepath.Join(cfg.Storage.TempDir, "jobs"), cfg.Server.PublicURL, log)

	workerPool := queue.NewWorkerPool(cfg.Workers.Count, log)
	workerPool.Start()

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		log,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "conversate " + version,
		BodyLimit:             cfg.Limits.MaxFileSizeMB * 1024 * 1024,
		ErrorHandler:          handlers.ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logging.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + logging.RequestIDHeader,
	}))

	handlers.Register(app, handlers.Deps{
		Conversations:    convs,
		Runner:           runner,
		Speakers:         speakerSvc,
		Pool:             workerPool,
		Hub:              hub,
		Tokens:           tokenStore,
		Hardware:         probe,
		Summarizer:       summarizer,
		Logs:             logBuffer,
		Log:              log,
		ConversationsDir: cfg.Storage.ConversationsDir,
		AvatarsDir:       cfg.Storage.AvatarsDir,
		MaxFileSizeMB:    cfg.Limits.MaxFileSizeMB,
		DefaultModel:     cfg.Whisper.Model,
		Version:          version,
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("Shutting down gracefully")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Str("version", version).Msg("Server starting")
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}

	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := workerPool.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Workers did not finish in time")
	}
	log.Info().Msg("Server stopped")
}

// openStores opens the configured record backend
func openStores(ctx context.Context, cfg *config.Config) (conversation.Store, speakers.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		rdb, err := storage.NewRedisClient(ctx, cfg.Storage.RedisAddr)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewRedisCollection[types.Conversation](rdb, storage.KindConversations),
			storage.NewRedisCollection[types.Speaker](rdb, storage.KindSpeakers),
			func() { rdb.Close() },
			nil
	default:
		db, err := storage.OpenSQLite(cfg.Storage.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		convStore, err := storage.NewSQLiteCollection[types.Conversation](db, storage.KindConversations)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		speakerStore, err := storage.NewSQLiteCollection[types.Speaker](db, storage.KindSpeakers)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return convStore, speakerStore, func() { db.Close() }, nil
	}
}
