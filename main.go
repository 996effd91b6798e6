package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"prodfeed/ingest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// ingestion services shared with handlers.go
var (
	ingestStore  *ingest.FileStore
	ingestIntake *ingest.Intake
)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./prodfeed migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ingestStore, err = ingest.NewFileStore(uploadBaseDir())
	if err != nil {
		log.Fatalf("init file store: %v", err)
	}

	pipeline := ingest.NewPipeline(db, ingestStore, logger, intEnv("INGEST_BATCH_SIZE"))
	queue := ingest.NewQueue(pipeline, logger, ingest.QueueConfig{
		Workers: intEnv("INGEST_WORKERS"),
		Tries:   intEnv("INGEST_TRIES"),
		Timeout: durationEnv("INGEST_TIMEOUT"),
	})
	queue.Start()
	defer queue.Stop()

	ingestIntake = ingest.NewIntake(db, ingestStore, queue, logger)

	// Optional directory-drop ingestion alongside the HTTP API.
	if inbox := os.Getenv("INGEST_INBOX"); inbox != "" {
		watcher, err := ingest.NewWatcher(inbox, ingestIntake, logger)
		if err != nil {
			log.Fatalf("init inbox watcher: %v", err)
		}
		watcher.Start()
		defer watcher.Close()
	}

	r := gin.Default()

	setupRoutes(r)

	r.Run(":8081")
}

// intEnv reads an integer env var; 0 (meaning "use the default") when unset or invalid.
func intEnv(key string) int {
	v, _ := strconv.Atoi(os.Getenv(key))
	return v
}

// durationEnv reads a duration env var like "30m"; 0 when unset or invalid.
func durationEnv(key string) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	return d
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
