package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pwashop/config"
	"pwashop/cron"
	"pwashop/database"
	"pwashop/database/repository"
	"pwashop/handlers"
	"pwashop/middleware"
	"pwashop/routes"
	"pwashop/services/backgroundsync"
	"pwashop/services/cachestore"
	"pwashop/services/interceptor"
	"pwashop/services/lifecycle"
	"pwashop/services/localstore"
	"pwashop/services/notification"
	"pwashop/services/origin"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	database.InitDB()
	utils.InitCache()
	utils.InitLocalCache()

	// Offline edge: partitions, origin, interceptor, lifecycle.
	store := cachestore.NewRedisStore(utils.GetCacheClient())
	local := localstore.NewStore(utils.GetLocalCacheClient())

	originClient, err := origin.NewClient(config.AppConfig.OriginURL, nil)
	if err != nil {
		logger.Fatal("main: invalid origin", zap.Error(err))
	}

	edge := interceptor.New(store, originClient, local, logger.Named("interceptor"), interceptor.Options{
		APIPrefix:    config.AppConfig.APIPathPrefix,
		ProductsPath: config.AppConfig.ProductsPath,
		OfflinePage:  config.AppConfig.OfflinePage,
	})

	controller := lifecycle.NewController(store, originClient, edge, logger.Named("lifecycle"), lifecycle.Options{
		Version: cachestore.NewVersion(
			config.AppConfig.CacheVersion,
			config.AppConfig.StaticCachePrefix,
			config.AppConfig.APICachePrefix,
		),
		Manifest: config.AppConfig.PrecacheURLs,
		Attempts: config.AppConfig.PrecacheAttempts,
	})
	if err := controller.Run(ctx); err != nil {
		// The previous version, if any, keeps serving.
		logger.Error("main: cache install failed", zap.Error(err))
	}

	// Background sync.
	queue := asynq.NewClient(cron.SyncRedisOpt())
	defer queue.Close()
	syncer := backgroundsync.NewSyncer(queue, backgroundsync.NewPendingStore(utils.GetLocalCacheClient()), originClient, logger.Named("sync"))
	worker := cron.InitSyncWorker(ctx, syncer, logger.Named("sync-worker"))

	// Push notifications.
	userRepo := repository.NewMongoUserRepository(database.Database())
	notificationRepo := repository.NewMongoNotificationRepository(database.Database())

	notificationService, err := notification.NewDefaultNotificationService(
		userRepo,
		notificationRepo,
		newSender(ctx, logger),
		logger.Named("notification"),
		config.AppConfig.VapidPublicKey,
		config.AppConfig.BroadcastConcurrency,
	)
	if err != nil {
		logger.Fatal("main: notification service", zap.Error(err))
	}

	utils.StartHealthMonitor(ctx, []*redis.Client{utils.GetCacheClient(), utils.GetLocalCacheClient()}, database.MongoClient)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	handlerBundle := &handlers.HandlerBundle{
		UserRepo:      userRepo,
		Notifications: handlers.NewNotificationHandler(notificationService),
		ServiceWorker: handlers.NewServiceWorkerHandler(controller, syncer, local),
	}
	routes.RegisterRoutes(router, handlerBundle, edge.Handler())

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	edge.Close()
	worker.Shutdown()
	stop()

	if err := database.MongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("main: mongo disconnect", zap.Error(err))
	}
	logger.Info("main: server stopped gracefully")
}

// newSender picks the push transport by PUSH_PROVIDER: "webpush" (VAPID),
// "fcm" (Firebase Admin SDK) or "auto" (FCM-hosted endpoints through
// Firebase, the rest through VAPID).
func newSender(ctx context.Context, logger *zap.Logger) notification.Sender {
	webPush := notification.NewWebPushSender(
		config.AppConfig.VapidPublicKey,
		config.AppConfig.VapidPrivateKey,
		config.AppConfig.VapidSubject,
	)

	provider := config.AppConfig.PushProvider
	if provider != "fcm" && provider != "auto" {
		return webPush
	}

	client, err := utils.FirebaseInit(ctx)
	if err != nil {
		logger.Error("main: firebase unavailable, falling back to VAPID", zap.Error(err))
		return webPush
	}
	fcm := notification.NewFCMSender(client)
	if provider == "fcm" {
		return fcm
	}
	return notification.NewRoutingSender(fcm, webPush)
}
