package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"sprintboard/api"
	"sprintboard/domain"
	"sprintboard/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	boardCfg := domain.Config{
		DefaultSprint: os.Getenv("DEFAULT_SPRINT"),
	}
	if v, err := strconv.ParseBool(os.Getenv("REQUIRE_ASSIGNEE")); err == nil {
		boardCfg.RequireAssignee = v
	}

	var store domain.BoardStore
	var deduper api.Deduper

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		prefix := os.Getenv("BOARD_KEY_PREFIX")
		store = storage.NewRedisStore(rc, prefix)

		ttl := 24 * time.Hour
		if v := os.Getenv("DEDUPER_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid DEDUPER_TTL: %v", err)
			}
			ttl = d
		}
		deduper = api.NewRedisDeduper(rc, ttl)
	} else {
		dataDir := os.Getenv("BOARD_DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}
		fs, err := storage.NewFileStore(dataDir)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = fs
	}

	logger := log.New()
	svc := domain.NewService(store, logger, domain.ServiceOptions{Board: boardCfg})
	defer svc.Close()

	flushSchedule := os.Getenv("FLUSH_SCHEDULE")
	if flushSchedule == "" {
		flushSchedule = "@every 5m"
	}
	sched := cron.New()
	if _, err := sched.AddFunc(flushSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.Flush(ctx); err != nil {
			logger.WithError(err).Error("scheduled board flush failed")
		}
	}); err != nil {
		log.Fatalf("invalid FLUSH_SCHEDULE: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Idempotency-Key"},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, svc, deduper, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions parses either a redis URL or the comma-separated
// host,password=...,ssl=true form some managed caches hand out.
func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
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
