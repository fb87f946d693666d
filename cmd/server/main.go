/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the muster day accounting server. Handles
  configuration, dependency injection, scheduler startup, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the business-day clock and engine
  4. Create API handler, router and background scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080, env PORT)
  -db       SQLite database path (default: muster.db, env MUSTER_DB)
            Use ":memory:" for in-memory database
  -tz       Facility IANA zone (default: Asia/Jakarta, env FACILITY_TZ)
  -cutover  Business-day cutover hour 0-23 (default: 6, env CUTOVER_HOUR)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-flight job)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/muster.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Facility in another zone, cutover at 05:00
  ./server -tz="Asia/Makassar" -cutover=5

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/muster-engine/api"
	"github.com/warp/muster-engine/muster"
	"github.com/warp/muster-engine/store/sqlite"
)

func main() {
	// .env is optional; flags still win over environment values.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Flags with environment fallbacks
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("MUSTER_DB", "muster.db"), "SQLite database path")
	tz := flag.String("tz", envStr("FACILITY_TZ", "Asia/Jakarta"), "Facility IANA zone")
	cutover := flag.Int("cutover", envInt("CUTOVER_HOUR", 6), "Business-day cutover hour (0-23)")
	flag.Parse()

	// Business-day clock
	clock, err := muster.NewClock(*tz, *cutover)
	if err != nil {
		log.Fatalf("Invalid clock configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Engine and handler
	engine := muster.NewEngine(clock, store)
	handler := api.NewHandler(store, engine)

	// Background jobs
	scheduler := api.NewMusterScheduler(engine)
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		log.Printf("🕕 Business days cut over at %02d:00 %s", *cutover, *tz)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("Warning: ignoring non-numeric %s=%q", key, v)
	}
	return fallback
}
