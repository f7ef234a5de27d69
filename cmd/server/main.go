package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/adapter/ai"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/adapter/host"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/adapter/store"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/handler"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/service"
	"github.com/arturoeanton/go-pr-insight-ollama/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting PR Insight",
		"port", cfg.Port,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
		"embedding_dimension", cfg.EmbeddingDimension,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.Migrate(context.Background()); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)
	githubHost := host.NewGitHubProvider(cfg.GitHubBaseURL, cfg.GitHubToken)

	// ── Analysis pipeline ────────────────────────────────────────────────
	selector := service.NewContentSelector(githubHost, cfg.MaxContentChars, cfg.MaxChangedLines)
	analyzer := service.NewFileAnalyzer(ollamaAI, cfg.EmbeddingDimension)
	orchestrator := service.NewOrchestrator(selector, analyzer, cfg.MaxFilesPerAnalysis, cfg.WorkerPoolSize)
	aggregator := service.NewAggregator(ollamaAI)

	// ── Services ─────────────────────────────────────────────────────────
	analysisService := service.NewAnalysisService(pgStore, githubHost, orchestrator, aggregator)
	similarityService := service.NewSimilarityService(vectorStore, cfg.SimilarityLimit)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	jobTracker := handler.NewJobTracker()

	analysisHandler := handler.NewAnalysisHandler(analysisService, jobTracker)
	analysisHandler.Register(api)

	changeSetHandler := handler.NewChangeSetHandler(analysisService)
	changeSetHandler.Register(api)

	similarityHandler := handler.NewSimilarityHandler(similarityService)
	similarityHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
