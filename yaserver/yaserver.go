// Package yaserver embeds a small HTTP server next to the bot: application
// routes receive the bot client plus the parsed request payload and answer
// with a JSON mapping. It is a parallel entry point into the same FSM
// storage, not a participant in the router tree, though a dispatcher can be
// attached so one process serves HTTP and polls updates together.
package yaserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
	"github.com/YaCodeDev/GoVKTeamsBot/yalogger"
	"github.com/gin-gonic/gin"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the HTTP server options, loadable from the environment.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port uint16 `envconfig:"PORT" default:"8080"`

	// APIKey guards every route via the X-Api-Key header when non-empty.
	APIKey string `envconfig:"API_KEY"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LoadConfig reads the configuration from BOT_SERVER_* environment
// variables.
func LoadConfig() (*Config, yaerrors.Error) {
	var config Config

	if err := envconfig.Process("BOT_SERVER", &config); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[BOT SERVER] failed to load config from environment",
		)
	}

	return &config, nil
}

// RouteHandler is an HTTP-triggered application callback. The payload maps
// query parameters for GET routes and the JSON body for other methods.
// Returning nil with no error answers a default success marker.
type RouteHandler func(
	ctx context.Context,
	bot yadispatcher.Bot,
	payload map[string]any,
) (map[string]any, error)

// Server is the gin-backed HTTP entry point bound to one bot client.
type Server struct {
	engine     *gin.Engine
	config     *Config
	log        yalogger.Logger
	bot        yadispatcher.Bot
	dispatcher *yadispatcher.Dispatcher
	polling    *yadispatcher.PollingOptions
}

// NewServer creates a server for the given bot. A nil config selects the
// defaults; a nil logger creates a fresh one.
func NewServer(bot yadispatcher.Bot, config *Config, log yalogger.Logger) *Server {
	if config == nil {
		config = &Config{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		}
	}

	if log == nil {
		log = yalogger.New(nil)
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{
		engine: engine,
		config: config,
		log:    log,
		bot:    bot,
	}

	engine.Use(server.authMiddleware)

	return server
}

// AttachDispatcher makes Run also poll updates through the given dispatcher,
// so HTTP routes and chat handlers share one process and one FSM storage.
// The bot client stays open when the server stops; the caller owns it.
func (s *Server) AttachDispatcher(
	dispatcher *yadispatcher.Dispatcher,
	options *yadispatcher.PollingOptions,
) {
	if options == nil {
		options = &yadispatcher.PollingOptions{}
	}

	options.CloseBotOnStop = false

	s.dispatcher = dispatcher
	s.polling = options
}

func (s *Server) authMiddleware(c *gin.Context) {
	if s.config.APIKey == "" {
		c.Next()

		return
	}

	if c.GetHeader("X-Api-Key") != s.config.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"ok":    false,
			"error": "invalid api key",
		})

		return
	}

	c.Next()
}

// Handle registers a route. GET routes read query parameters, everything
// else reads the JSON body.
//
// Example:
//
//	server.Handle(http.MethodPost, "/notify", func(
//		ctx context.Context,
//		bot yadispatcher.Bot,
//		payload map[string]any,
//	) (map[string]any, error) {
//		return map[string]any{"queued": true}, nil
//	})
func (s *Server) Handle(method, path string, handler RouteHandler) {
	s.engine.Handle(method, path, func(c *gin.Context) {
		payload, err := extractPayload(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": err.Error(),
			})

			return
		}

		result, err := handler(c.Request.Context(), s.bot, payload)
		if err != nil {
			status := http.StatusInternalServerError

			var yaerr yaerrors.Error
			if errors.As(err, &yaerr) {
				status = yaerr.Code()
			}

			s.log.WithField("path", path).Errorf("route handler failed: %v", err)

			c.JSON(status, gin.H{
				"ok":    false,
				"error": err.Error(),
			})

			return
		}

		if result == nil {
			c.JSON(http.StatusOK, gin.H{"ok": true})

			return
		}

		c.JSON(http.StatusOK, result)
	})
}

// Engine exposes the underlying gin engine for tests and custom wiring.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func extractPayload(c *gin.Context) (map[string]any, error) {
	if c.Request.Method == http.MethodGet {
		payload := make(map[string]any)

		for key, values := range c.Request.URL.Query() {
			if len(values) == 1 {
				payload[key] = values[0]
			} else {
				payload[key] = values
			}
		}

		return payload, nil
	}

	payload := make(map[string]any)

	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return payload, nil
	}

	if err := c.ShouldBindJSON(&payload); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	return payload, nil
}

// Run serves HTTP until the context is cancelled, polling updates alongside
// when a dispatcher is attached.
func (s *Server) Run(ctx context.Context) yaerrors.Error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		s.log.WithField("address", address).Info("bot server listening")

		if err := httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if s.dispatcher != nil {
		go func() {
			if err := s.dispatcher.StartPolling(ctx, s.polling, s.bot); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		s.config.ShutdownTimeout,
	)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[BOT SERVER] failed to shut down cleanly",
		)
	}

	if runErr != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			runErr,
			"[BOT SERVER] server terminated with error",
		)
	}

	return nil
}
