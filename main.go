package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard-api/api"
	"taskboard-api/domain"
	"taskboard-api/storage"
	"taskboard-api/tasks"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	eventsQueueName := os.Getenv("EVENTS_QUEUE")
	if connStr == "" || tasksTableName == "" || eventsQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tasksTableName, eventsQueueName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	rc := redis.NewClient(parseRedisOptions(redisConn))

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			log.Fatalf("invalid CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	cached := storage.NewCache(store, rc, cacheTTL)

	updatesChannel := os.Getenv("BOARD_UPDATES_CHANNEL")
	if updatesChannel == "" {
		updatesChannel = "board-updates"
	}
	notifier := storage.NewNotifier(rc, updatesChannel)

	workflow := domain.DefaultWorkflow()
	if path := os.Getenv("WORKFLOW_CONFIG"); path != "" {
		workflow, err = domain.LoadWorkflow(path)
		if err != nil {
			log.Fatalf("workflow config: %v", err)
		}
	}

	logger := log.New()
	svc := tasks.NewService(cached, workflow, notifier, logger)

	auth, err := buildAuth()
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.DecompressRequests())

	api.Register(e, svc, auth, logger)
	stopStream := api.RegisterStream(e, svc, auth, rc, updatesChannel, logger)
	defer stopStream()

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func buildAuth() (*api.Auth, error) {
	if strings.EqualFold(os.Getenv("LOCAL_AUTH_MODE"), "hs256") {
		secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
		if secret == "" {
			return nil, fmt.Errorf("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		return api.NewLocalAuth([]byte(secret), os.Getenv("AUTH0_AUDIENCE"), ""), nil
	}

	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domainName := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domainName == "" {
		return nil, fmt.Errorf("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domainName+"/"), nil
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// host,key=value form some managed caches hand out.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
