package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"clinic-chat-service/internal/auth"
	"clinic-chat-service/internal/config"
	"clinic-chat-service/internal/db"
	"clinic-chat-service/internal/delivery"
	"clinic-chat-service/internal/handlers"
	"clinic-chat-service/internal/middleware"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/rabbitmq"
	"clinic-chat-service/internal/repositories"
	"clinic-chat-service/internal/service"
	"clinic-chat-service/internal/telemetry"
	"clinic-chat-service/internal/ws"
)

const serviceName = "clinic-chat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userDirectory := repositories.NewUserDirectoryRepo(database)

	registry := ws.NewRegistry()
	deliveryRouter := delivery.NewRouter(chatRepo, messageRepo, registry)
	chatService := service.NewChatService(chatRepo, messageRepo, userDirectory, cfg.HistoryLimit)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	chatHandler := handlers.NewChatHandler(chatService, deliveryRouter, audit)
	wsHandler := ws.NewHandler(registry, deliveryRouter, chatService, tokens)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkRead)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChat)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
