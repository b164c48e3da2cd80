package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/debatearena/server/internal/ai"
	"github.com/debatearena/server/internal/api"
	"github.com/debatearena/server/internal/config"
	"github.com/debatearena/server/internal/debate"
	"github.com/debatearena/server/internal/judge"
	"github.com/debatearena/server/internal/store"
	"github.com/debatearena/server/internal/ws"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`debate-arena - real-time AI-judged debate server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 5001 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 5001)
  ENV                 "development" or "production" (default: development)
  MAX_ROOMS           Maximum live rooms (default: 1000)
  FORFEIT_GRACE       Reconnect window before a forfeit (default: 20s)
  JUDGE_TIMEOUT       Budget for one verdict (default: 45s)
  MAX_MESSAGE_LENGTH  Characters kept per message (default: 500)
  TOPICS              "|"-separated motions for ranked and untitled rooms
  JUDGE_PROVIDER      "openai" or "ollama" (default: openai)
  JUDGE_MODEL         Model used for judging (default: gpt-4o-mini)
  OPENAI_API_KEY      OpenAI API key
  OPENAI_BASE_URL     Custom OpenAI-compatible base URL (optional)
  OLLAMA_HOST         Ollama host URL (default: http://localhost:11434)
  DATABASE_URL        Postgres DSN for the debate archive (optional)
  REDIS_URL           Redis URL for the hype ledger (optional)
  EXPORT_ENABLED      Append finished debates to a text file (default: false)
  EXPORT_FILE         Path of that file (default: ./debate-results.txt)
  CORS_ORIGINS        Comma-separated allowed origins (default: *)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("debate-arena %s\n", version)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	provider, err := ai.New(ai.Config{
		Provider:      cfg.JudgeProvider,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OllamaHost:    cfg.OllamaHost,
		Timeout:       cfg.JudgeTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("judge provider")
	}
	if cfg.JudgeProvider == "openai" && cfg.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set; every debate will end judge_unavailable")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	recorders := store.Chain()
	deps := api.Deps{}
	var pingers []func(context.Context) error

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres")
		}
		defer pg.Close()
		recorders.Add("postgres", pg)
		deps.Archive = pg
		pingers = append(pingers, pg.Ping)
		log.Info().Msg("debate archive enabled")
	}
	if cfg.RedisURL != "" {
		ledger, err := store.NewRedisLedger(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis")
		}
		defer ledger.Close()
		recorders.Add("redis", ledger)
		deps.Ledger = ledger
		pingers = append(pingers, ledger.Ping)
		log.Info().Msg("hype ledger enabled")
	}
	if cfg.ExportEnabled {
		recorders.Add("export", &debate.FileExporter{Path: cfg.ExportFile})
		log.Info().Str("file", cfg.ExportFile).Msg("transcript export enabled")
	}

	svc := debate.NewService(debate.Config{
		MaxRooms: cfg.MaxRooms,
		Room: debate.RoomOptions{
			Judge:            judge.New(provider, cfg.JudgeModel),
			ForfeitGrace:     cfg.ForfeitGrace,
			JudgeTimeout:     cfg.JudgeTimeout,
			MaxMessageLength: cfg.MaxMessageLength,
		},
		Topics:            cfg.Topics,
		Recorder:          recorders,
		FinishedRetention: cfg.FinishedRetention,
		AbandonTimeout:    cfg.AbandonTimeout,
		SweepInterval:     cfg.SweepInterval,
	})
	deps.Service = svc
	go svc.RunSweeper(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(requestLogger())

	r.GET("/health", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for _, ping := range pingers {
			if err := ping(pctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "version": version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sock := ws.New(svc, ws.Options{SendRate: cfg.SendRate, SendBurst: cfg.SendBurst})
	io := sock.Mount(r)

	api.SetupRoutes(r, deps)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := io.Close(); err != nil {
		log.Error().Err(err).Msg("socket.io shutdown")
	}
	svc.Wait()
	log.Info().Msg("stopped")
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).
			Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}
