package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mfolta/subwatch/bridge"
	"github.com/mfolta/subwatch/dashboard"
	"github.com/mfolta/subwatch/db"
	"github.com/mfolta/subwatch/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	demoMode := flag.Bool("demo", false, "Run with fabricated data instead of the Reddit API")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting subwatch")

	config, err := utils.LoadConfig(*envPath, *demoMode, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"subreddit":        config.Reddit.Subreddit,
		"polling_interval": config.Reddit.PollingInterval,
		"server_port":      config.Server.Port,
		"demo_mode":        config.App.DemoMode,
	}).Info("Configuration loaded")

	pollingInterval := time.Duration(config.Reddit.PollingInterval) * time.Second

	var b bridge.Bridge
	if config.App.DemoMode {
		log.Info("Running in demo mode")
		b = bridge.NewDemo(pollingInterval, log)
	} else {
		database, err := db.NewDatabase(config.Database.Path, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer database.Close()

		client := bridge.NewClient(
			config.Reddit.ClientID,
			config.Reddit.ClientSecret,
			config.Reddit.UserAgent,
			config.Reddit.MaxRequestsPerMinute,
			log,
		)
		b = bridge.NewReddit(client, database, config.Download.Directory, pollingInterval, log)
	}

	session := dashboard.NewSession(config.Reddit.Subreddit, log)
	session.AttachBridge(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go session.Init(ctx)

	go startEchoServer(ctx, config.Server.Port, session, log, config.Reddit.MaxRequestsPerMinute)

	waitForShutdown(cancel, session, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// startEchoServer starts the Echo HTTP API server
func startEchoServer(ctx context.Context, port int, session *dashboard.Session, log *logrus.Logger, maxRequestsPerMinute int) {
	e := echo.New()

	// middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0

	rateLimit := rate.Limit(requestsPerSecond * 0.95) // use 95% of the rate limit to be safe

	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rateLimit,
				Burst:     1, // no burst capability
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	registerRoutes(ctx, e, session)

	// start the server!
	go func() {
		serverAddr := fmt.Sprintf(":%d", port)
		log.WithField("port", port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	// wait for context cancellation to shut down server
	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
}

// registerRoutes wires the dashboard session into the JSON API. The
// context is the application-lifetime context, not a request context:
// monitoring started over the API keeps polling after the start
// request completes.
func registerRoutes(ctx context.Context, e *echo.Echo, session *dashboard.Session) {
	e.GET("/api/feed", func(c echo.Context) error {
		if sortParam := c.QueryParam("sort"); sortParam != "" {
			session.SetSort(sortParam)
		}
		if limitParam := c.QueryParam("limit"); limitParam != "" {
			session.SetLimit(limitParam)
		}
		return c.JSON(http.StatusOK, session.Feed())
	})

	e.GET("/api/posts/:id", func(c echo.Context) error {
		post, ok := session.OpenDetail(c.Param("id"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("No post with id %s", c.Param("id")),
			})
		}
		return c.JSON(http.StatusOK, post)
	})

	e.POST("/api/posts/:id/complete", func(c echo.Context) error {
		completed, err := session.ToggleCompletion(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]bool{"completed": completed})
	})

	e.POST("/api/monitor/start", func(c echo.Context) error {
		var body struct {
			Subreddit string `json:"subreddit"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		result := session.StartMonitoring(ctx, body.Subreddit)
		if !result.OK() {
			return c.JSON(http.StatusConflict, result)
		}
		return c.JSON(http.StatusOK, result)
	})

	e.POST("/api/monitor/stop", func(c echo.Context) error {
		return c.JSON(http.StatusOK, session.StopMonitoring())
	})

	e.POST("/api/refresh", func(c echo.Context) error {
		session.Refresh(c.Request().Context())
		return c.JSON(http.StatusOK, session.Feed())
	})

	e.POST("/api/download", func(c echo.Context) error {
		var body struct {
			URL       string `json:"url"`
			Directory string `json:"directory"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		result := session.Download(c.Request().Context(), body.URL, body.Directory)
		if !result.OK() {
			return c.JSON(http.StatusBadRequest, result)
		}
		return c.JSON(http.StatusOK, result)
	})

	e.GET("/api/download/folder", func(c echo.Context) error {
		return c.JSON(http.StatusOK, session.SelectFolder())
	})

	e.GET("/api/analytics", func(c echo.Context) error {
		view, err := session.Analytics(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, view)
	})

	e.GET("/api/logs", func(c echo.Context) error {
		return c.JSON(http.StatusOK, session.Logs())
	})

	e.POST("/api/logs/clear", func(c echo.Context) error {
		session.ClearLogs()
		return c.JSON(http.StatusOK, map[string]string{"status": "success"})
	})

	// health check endpoint; useful for k8s liveliness probes but not
	// strictly required in this case
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, session *dashboard.Session, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	session.StopMonitoring()
	cancel()

	time.Sleep(1 * time.Second)
	log.Info("subwatch stopped")
}
