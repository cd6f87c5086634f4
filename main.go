package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"nox-relay/internal/config"
	"nox-relay/internal/dispatch"
	"nox-relay/internal/grpcserver"
	"nox-relay/internal/handlers"
	"nox-relay/internal/middleware"
	"nox-relay/internal/observability"
	"nox-relay/internal/rabbitmq"
	"nox-relay/internal/repositories"
	"nox-relay/internal/sweeper"
	"nox-relay/internal/telemetry"
	"nox-relay/internal/ws"
)

const (
	serviceName     = "nox-relay"
	auditRoutingKey = "audit.relay"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing export disabled: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, serviceName, cfg.Environment)

	users := repositories.NewUserRepo()
	chats := repositories.NewChatRepo()
	messages := repositories.NewMessageRepo(chats)
	if err := observability.RegisterStateGauges(prometheus.DefaultRegisterer,
		func() float64 { return float64(users.Count(context.Background())) },
		func() float64 { return float64(chats.Count(context.Background())) },
	); err != nil {
		log.Printf("failed to register state gauges: %v", err)
	}

	hub := ws.NewHub()
	dispatcher := dispatch.NewDispatcher(users, chats, messages, hub, audit, cfg.InboxSize)
	go dispatcher.Run(ctx)

	sw := sweeper.New(chats, messages, dispatcher)
	sweepTask := sweeper.Every(ctx, cfg.SweepInterval, func(now time.Time) {
		dispatcher.Enqueue(ctx, func(ctx context.Context) {
			sw.Sweep(ctx, now)
		})
	})

	wsHandler := ws.NewChatWebSocketHandler(ctx, hub, dispatcher, ws.HandlerConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		MaxMessageSize:    cfg.MaxMessageSize,
		SendBufferSize:    cfg.SendBufferSize,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})
	statusHandler := handlers.NewStatusHandler(users, chats, hub)
	router := newRouter(wsHandler, statusHandler, audit, cfg.DebugRoutes)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpcserver.New()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf("failed to listen for grpc: %v", err)
	}

	go func() {
		log.Printf("grpc health listening on :%s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("grpc server error: %v", err)
		}
	}()

	go func() {
		log.Printf("relay listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	sweepTask.Stop()
	grpcServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	<-dispatcher.Done()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close error: %v", err)
	}
}

func newRouter(wsHandler *ws.ChatWebSocketHandler, status *handlers.StatusHandler, audit *telemetry.AuditEmitter, debugRoutes bool) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.GET("/ws", ws.RejectNonUpgrade, wsHandler.Handle)
	router.GET("/health", status.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, debugRoutes)
	return router
}
