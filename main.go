package main

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "runtime"
    "syscall"
    "time"

    _ "github.com/go-sql-driver/mysql"
    "github.com/gorilla/mux"

    "dukalink-payment-api/config"
    "dukalink-payment-api/database"
    "dukalink-payment-api/encryption"
    "dukalink-payment-api/handlers"
    "dukalink-payment-api/middleware"
    "dukalink-payment-api/queue"
    "dukalink-payment-api/ratelimit"
    "dukalink-payment-api/services/auth"
    "dukalink-payment-api/services/charge"
    "dukalink-payment-api/services/charge/kwelipay"
    "dukalink-payment-api/services/resources"
    "dukalink-payment-api/services/session"
    "dukalink-payment-api/services/webhook"
    "dukalink-payment-api/worker"
)

func main() {
    log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)

    numCPU := runtime.NumCPU()
    runtime.GOMAXPROCS(numCPU)
    log.Printf("Server starting with %d CPUs available", numCPU)

    cfg := config.Load()
    log.Printf("Configuration loaded successfully")

    // Database with startup retry
    var db *database.Connection
    var err error
    for retries := 0; retries < 5; retries++ {
        db, err = database.NewConnection(cfg.Database)
        if err == nil {
            break
        }
        retryDelay := time.Duration(retries+1) * time.Second
        log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
            retries+1, err, retryDelay)
        time.Sleep(retryDelay)
    }

    if err != nil {
        log.Fatalf("Failed to connect to database after retries: %v", err)
    }
    defer db.Close()

    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()

    if err := db.GetDB().PingContext(ctx); err != nil {
        log.Fatalf("Failed to ping database: %v", err)
    }
    log.Println("Successfully connected to database")

    jobQueue, err := queue.NewQueue(cfg.Redis.URL, "charge_jobs")
    if err != nil {
        log.Fatalf("Failed to connect to Redis: %v", err)
    }
    defer jobQueue.Close()
    log.Println("Successfully connected to Redis")

    // Outbound call plumbing: token provider, rate gate, retry, client
    tokenService, err := auth.NewTokenService(cfg.Kwelipay.TokenURL,
        cfg.Kwelipay.ClientID, cfg.Kwelipay.ClientSecret)
    if err != nil {
        log.Fatalf("Failed to initialize token service: %v", err)
    }

    rateGate := ratelimit.NewRateGate(jobQueue.Client(), ratelimit.Config{
        MaxRequests: cfg.Limits.RateLimitMax,
        Window:      cfg.Limits.RateLimitWindow,
        Disabled:    !cfg.Limits.RateLimitEnabled,
    })

    retryPolicy := kwelipay.NewRetryPolicy(cfg.Limits.MaxRetries, cfg.Limits.BaseBackoff)
    apiClient := kwelipay.NewClient(cfg.Kwelipay.Environment, tokenService, retryPolicy, rateGate)
    chargeService := charge.NewService(apiClient)

    codec, err := encryption.NewCodec(cfg.Kwelipay.EncryptionKey)
    if err != nil {
        log.Fatalf("Failed to initialize encryption codec: %v", err)
    }

    sessionStore := database.NewSessionStore(db)
    projector := session.NewProjector(sessionStore, cfg.Session.AutoCreate)

    workerConcurrency := cfg.Redis.WorkerConcurrency
    if workerConcurrency < 2 {
        workerConcurrency = 2
    } else if workerConcurrency > 8 {
        workerConcurrency = 8
    }

    pollWorker := worker.NewWorker(jobQueue, db, sessionStore, chargeService, projector, worker.Config{
        PollInterval:  cfg.Session.PollInterval,
        MaxPollCount:  cfg.Session.MaxPollCount,
        Retention:     time.Duration(cfg.Session.RetentionDays) * 24 * time.Hour,
        SweepInterval: time.Hour,
    })
    pollWorker.Start(workerConcurrency)
    defer pollWorker.Stop()
    log.Printf("Started poll worker with %d threads", workerConcurrency)

    verifier := webhook.NewVerifier(cfg.Kwelipay.WebhookSecret)
    webhookHandler := handlers.NewWebhookHandler(verifier, projector, jobQueue)
    healthHandler := handlers.NewHealthHandler(db)
    chargeHandler := handlers.NewChargeHandler(codec, chargeService, projector, jobQueue, cfg.Session.PollInterval)
    resourcesHandler := handlers.NewResourcesHandler(resources.NewService(apiClient, jobQueue.Client()))

    router := mux.NewRouter()
    router.Use(middleware.LoggingMiddleware)
    router.Use(middleware.SecurityHeadersMiddleware)

    api := router.PathPrefix("/api").Subrouter()
    api.HandleFunc("/charges", chargeHandler.HandleCreateCharge).Methods("POST")
    api.HandleFunc("/charges/{id}/authorize", chargeHandler.HandleAuthorizeCharge).Methods("POST")
    api.HandleFunc("/charges/{id}", chargeHandler.HandleChargeStatus).Methods("GET")
    api.HandleFunc("/banks", resourcesHandler.HandleListBanks).Methods("GET")
    api.HandleFunc("/mobile-networks", resourcesHandler.HandleListMobileNetworks).Methods("GET")
    api.HandleFunc("/kwelipay/webhook", webhookHandler.HandleEvent).Methods("POST")
    api.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")

    startTime := time.Now()
    api.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
        health := struct {
            Status    string `json:"status"`
            Time      string `json:"time"`
            Database  string `json:"database"`
            Redis     string `json:"redis"`
            Uptime    string `json:"uptime"`
            GoVersion string `json:"go_version"`
        }{
            Status:    "ok",
            Time:      time.Now().Format(time.RFC3339),
            Database:  "connected",
            Redis:     "connected",
            Uptime:    fmt.Sprintf("%v", time.Since(startTime)),
            GoVersion: runtime.Version(),
        }

        dbCtx, dbCancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer dbCancel()

        if err := db.GetDB().PingContext(dbCtx); err != nil {
            health.Status = "degraded"
            health.Database = "error"
        }

        redisCtx, redisCancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer redisCancel()

        if err := jobQueue.Client().Ping(redisCtx).Err(); err != nil {
            health.Status = "degraded"
            health.Redis = "error"
        }

        w.Header().Set("Content-Type", "application/json")
        json.NewEncoder(w).Encode(health)
    }).Methods("GET")

    srv := &http.Server{
        Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
        Handler:        router,
        ReadTimeout:    15 * time.Second,
        WriteTimeout:   30 * time.Second,
        IdleTimeout:    120 * time.Second,
        MaxHeaderBytes: 1 << 20,
    }

    go func() {
        log.Printf("Server starting on port %s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("Server error: %v", err)
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

    <-stop
    log.Println("Shutdown signal received, gracefully shutting down...")

    shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer shutdownCancel()

    log.Println("Shutting down HTTP server...")
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Printf("Server forced to shutdown: %v", err)
    }

    log.Println("Stopping poll worker...")
    pollWorker.Stop()

    time.Sleep(2 * time.Second)

    log.Println("Closing database connections...")
    db.Close()

    log.Println("Closing Redis connections...")
    jobQueue.Close()

    log.Println("Server exited properly")
}
