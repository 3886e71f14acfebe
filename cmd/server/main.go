package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whatsapp-hub/internal/api"
	"whatsapp-hub/internal/campaign"
	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/database"
	"whatsapp-hub/internal/webhook"
	"whatsapp-hub/internal/whatsapp"
	"whatsapp-hub/internal/ws"
)

func main() {
	cfg := config.LoadConfig()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	db := database.Init(cfg)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	whatsappClient := whatsapp.NewClient(cfg)

	hub := ws.NewHub()
	go hub.Run()

	store := &campaign.GormStore{DB: db}
	engine := campaign.NewEngine(
		&campaign.GatewaySender{DB: db, Client: whatsappClient},
		store,
	)
	engine.OnProgress = func(userID uint, p campaign.Progress) {
		hub.BroadcastToUser(userID, "campaign_progress", p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	engine.StartWorker(ctx)

	contactStore := api.NewContactStore(db)
	campaignHandler := api.NewCampaignHandler(engine, contactStore, cfg)
	contactHandler := api.NewContactHandler(contactStore)
	messageHandler := api.NewMessageHandler(db, whatsappClient, store, cfg)
	whatsappHandler := api.NewWhatsAppHandler(db, whatsappClient)
	dashboardHandler := api.NewDashboardHandler(contactStore)
	webhookHandler := webhook.NewHandler(&webhook.GormStore{DB: db}, hub)

	// Webhook Routes
	r.POST("/webhook/evolution", webhookHandler.Receive)

	// WebSocket endpoint for live progress and connection events
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queue_depth": engine.QueueDepth()})
	})

	apiGroup := r.Group("/api")
	apiGroup.Use(api.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	{
		// Campaign Routes
		apiGroup.POST("/campaigns/start", campaignHandler.StartCampaign)
		apiGroup.POST("/campaigns/stop", campaignHandler.StopCampaign)
		apiGroup.GET("/campaigns/progress", campaignHandler.GetProgress)

		// Contact Routes
		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)
		apiGroup.DELETE("/contacts/:id", contactHandler.DeleteContact)
		apiGroup.POST("/contacts/delete-multiple", contactHandler.DeleteContacts)
		apiGroup.GET("/contacts/stats", contactHandler.GetStats)
		apiGroup.POST("/contacts/import", contactHandler.ImportContacts)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)
		apiGroup.GET("/contacts/sample", contactHandler.SampleCSV)

		// Message Routes
		apiGroup.POST("/messages/send", messageHandler.SendMessage)
		apiGroup.GET("/messages/recent", messageHandler.GetRecent)

		// WhatsApp Instance Routes
		whatsappGroup := apiGroup.Group("/whatsapp")
		{
			whatsappGroup.GET("/qr", whatsappHandler.GetQRCode)
			whatsappGroup.GET("/status", whatsappHandler.GetConnectionStatus)
			whatsappGroup.POST("/instance", whatsappHandler.CreateInstance)
			whatsappGroup.DELETE("/instance", whatsappHandler.DeleteInstance)
		}

		// Dashboard Routes
		apiGroup.GET("/dashboard/stats", dashboardHandler.GetStats)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	// stop the dispatcher before closing the listener so in-flight sends finish
	engine.StopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server shutdown: %v", err)
	}
}
