// Package app wires configuration, the model client, the knowledge store,
// and the session manager into one container with a single teardown path.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/supportchat/supportchat/internal/chat"
	"github.com/supportchat/supportchat/internal/config"
	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/provider"
	"github.com/supportchat/supportchat/internal/session"
)

// App is the core application container.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Client   provider.Client
	Store    *knowledge.Store
	Sessions *session.Manager
	Turns    *chat.Handler
}

// Setup creates and initializes the application.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	client, err := provider.NewGemini(ctx, provider.GeminiConfig{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		ModelName:   cfg.ModelName,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing model client: %w", err)
	}

	store, err := knowledge.OpenStore(cfg.KnowledgeBaseFile(), logger)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}

	sessions := session.NewManager(client, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Store:    store,
		Sessions: sessions,
		Turns:    chat.NewHandler(sessions, logger),
	}, nil
}

// Close tears down the live session. The knowledge store needs no explicit
// shutdown; every write is flushed before it returns.
func (a *App) Close() error {
	a.Sessions.Reset()
	a.Logger.Info("application shut down")
	return nil
}
