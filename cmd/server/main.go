package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsboard-backend/internal/archive"
	"opsboard-backend/internal/auth"
	"opsboard-backend/internal/cache"
	"opsboard-backend/internal/config"
	"opsboard-backend/internal/database"
	"opsboard-backend/internal/db"
	h "opsboard-backend/internal/http"
	"opsboard-backend/internal/handlers"
	"opsboard-backend/internal/health"
	"opsboard-backend/internal/middleware"
	"opsboard-backend/internal/models"
	"opsboard-backend/internal/realtime"
	"opsboard-backend/internal/repositories"
	"opsboard-backend/internal/services"
	"opsboard-backend/internal/timeutil"
	"opsboard-backend/migrations"
)

// backends groups the stores behind the services. Postgres and the
// in-memory driver both satisfy every interface.
type backends struct {
	transfers  repositories.TransferStore
	locations  services.LocationStore
	products   services.ProductStore
	roles      services.RoleStore
	users      services.UserDirectory
	actionLogs services.ActionLogStore
	pinger     health.Pinger
	close      func()
}

func openPostgres(cfg *config.Config) *backends {
	pool := db.Connect(cfg)

	log.Println("Running database migrations...")
	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrator.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	return &backends{
		transfers:  repositories.NewTransferRepository(pool),
		locations:  repositories.NewLocationRepository(pool),
		products:   repositories.NewProductRepository(pool),
		roles:      repositories.NewRoleAssignmentRepository(pool),
		users:      repositories.NewUserRepository(pool),
		actionLogs: repositories.NewAdminActionLogRepository(pool),
		pinger:     pool,
		close:      pool.Close,
	}
}

func openMemory() *backends {
	log.Println("[Store] Using in-memory store, data is lost on restart")
	store := repositories.NewMemoryStore()
	seedMemory(store)
	return &backends{
		transfers:  store,
		locations:  store,
		products:   store,
		roles:      store,
		users:      store,
		actionLogs: store,
		pinger:     store,
		close:      func() {},
	}
}

// issueToken prints a bearer token for an existing user. Tokens are
// normally minted by the identity provider; this is for operators.
func issueToken(jwtManager *auth.JWTManager, users services.UserDirectory, userID int) {
	u, err := users.ResolveUser(context.Background(), userID)
	if err != nil {
		log.Fatalf("Cannot issue token for user %d: %v", userID, err)
	}
	token, err := jwtManager.GenerateToken(u)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	tokenFor := flag.Int("issue-token", 0, "Print a bearer token for this user id and exit")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := timeutil.SetZone(cfg.Transfers.Timezone); err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Transfers.Timezone, err)
	}

	var store *backends
	if cfg.UsesMemoryStore() {
		store = openMemory()
	} else {
		store = openPostgres(cfg)
	}
	defer store.close()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHours)
	if *tokenFor > 0 {
		issueToken(jwtManager, store.users, *tokenFor)
		return
	}

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if cfg.Redis.Enabled {
		if err := cache.Init(cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}); err != nil {
			log.Printf("[Redis] Cache unavailable: %v (transfer lists are served uncached)", err)
		} else {
			log.Println("[Redis] Cache connected successfully")
		}
	}
	defer cache.Close()

	// Services
	transferService := services.NewTransferService(
		store.transfers, store.locations, store.products, store.roles, store.users, cfg.Transfers.NumberPrefix)
	packingService := services.NewPackingService(transferService)
	deliveryService := services.NewDeliveryService(transferService)
	referenceService := services.NewReferenceService(
		store.locations, store.products, store.roles, store.users, store.actionLogs)

	// Listeners run after every committed status change
	hub := realtime.NewHub()
	transferService.OnTransition(func(ctx context.Context, ev models.TransitionEvent) {
		cache.InvalidateTransferCaches(ctx)
	})
	transferService.OnTransition(hub.Publish)
	referenceService.OnRoleChange(cache.InvalidateTransferCaches)

	if cfg.Archive.Enabled {
		client, err := archive.NewS3Client(context.Background(), archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			log.Printf("[Archive] Disabled: %v", err)
		} else {
			archiver := archive.NewDispatchArchiver(client, cfg.Archive.Bucket, transferService.Detail)
			transferService.OnTransition(archiver.Listener())
			log.Printf("[Archive] Dispatch notes will be stored in bucket %s", cfg.Archive.Bucket)
		}
	}

	// HTTP
	healthChecker := health.NewHealthChecker(store.pinger, cache.GetClient)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, store.users)
	corsMiddleware := middleware.NewCORS(cfg)

	router := h.NewRouter(
		handlers.NewTransferHandler(transferService, hub, cfg.Transfers.ListCacheTTL),
		handlers.NewPackingHandler(packingService),
		handlers.NewDeliveryHandler(deliveryService),
		handlers.NewReferenceHandler(referenceService),
		handlers.NewHealthHandler(healthChecker),
		authMiddleware,
	)
	handler := middleware.PanicRecovery(middleware.RequestLogging(corsMiddleware(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
