package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"lendme-backend/internal/library/books"
	"lendme-backend/internal/library/borrows"
	"lendme-backend/internal/platform/auth"
	"lendme-backend/internal/platform/db"
)

// @title        LendMe API
// @version      1.0
// @description  Library lending backend: catalog, accounts and the borrow lifecycle.
// @BasePath     /api/v1

// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization

func main() {
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS is only needed while the frontend runs on its own dev server
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	secret := []byte(cfg.Auth.JWTSecret)
	tokenTTL := time.Duration(cfg.Auth.TokenTTLHrs) * time.Hour

	verifiers := auth.NewRegistry()
	verifiers.Register("Bearer", auth.NewJWTVerifier(secret))

	authSvc := auth.NewService(conn, secret, tokenTTL)
	bookSvc := books.NewService(conn)
	borrowSvc := borrows.NewService(conn, borrows.Policy{
		PeriodDays:       cfg.Loan.PeriodDays,
		ExtensionDays:    cfg.Loan.ExtensionDays,
		ExtendWindowDays: cfg.Loan.ExtendWindowDays,
	})

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, authSvc)
	books.RegisterRoutes(api, bookSvc)
	borrows.RegisterStockRoutes(api, borrowSvc)

	authed := api.Group("")
	authed.Use(auth.RequireAuth(verifiers))
	auth.RegisterProtectedRoutes(authed, authSvc)
	borrows.RegisterRoutes(authed, borrowSvc)

	admin := api.Group("")
	admin.Use(auth.RequireAuth(verifiers), auth.RequireRole("admin"))
	books.RegisterAdminRoutes(admin, bookSvc)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
