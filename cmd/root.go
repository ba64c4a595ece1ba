package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"traitor/internal/api"
	"traitor/internal/config"
	"traitor/internal/document"
	"traitor/internal/redis"
	"traitor/internal/service/ai"
	"traitor/internal/service/assistant"
	"traitor/internal/session"
	"traitor/internal/storage"
)

var (
	cfgFile string
	addr    string
)

// rootCmd starts the HTTP server.
var rootCmd = &cobra.Command{
	Use:   "traitor",
	Short: "Document scan and AI-detection backend",
	Long: `Serves the document scan API: uploaded Word documents are fetched from
object storage, their text and metadata extracted, and the results analysed
with a chat model.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if addr != "" {
			cfg.Server.Address = addr
		}
		return run(cmd.Context(), cfg)
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $"+config.PathEnv+" or ./config.json)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
}

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	gin.SetMode(cfg.Server.Mode)

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	sessions := session.NewManager(store, cfg.Session)

	backend, closeBackend, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeBackend()
	files := storage.NewGateway(backend, cfg.Storage.MaxObjectBytes)

	extractor, err := document.NewExtractor(ctx)
	if err != nil {
		return err
	}

	llm, err := ai.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init ai client: %w", err)
	}
	assistantService := assistant.NewService(llm, cfg.LLM.PrimaryModel, cfg.LLM.SecondaryModel)

	handlers := api.NewHandler(sessions, files, extractor, assistantService, cfg.Server.CORSOrigins)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	log.Printf("starting server on %s (llm provider %s, storage %s)", cfg.Server.Address, cfg.LLM.Provider, cfg.Storage.Provider)
	if err := router.Run(cfg.Server.Address); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func newSessionStore(cfg *config.Config) (session.Store, func() error, error) {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	switch cfg.Session.Store {
	case "redis":
		rdb, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		log.Printf("session store: redis %s:%d", cfg.Redis.Host, cfg.Redis.Port)
		return session.NewRedisStore(rdb, ttl), rdb.Close, nil
	default:
		log.Printf("session store: memory")
		return session.NewMemoryStore(ttl), func() error { return nil }, nil
	}
}
