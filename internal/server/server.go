// Package server exposes the billing HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inspira-labs/inspira-billing/internal/config"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	quotadomain "github.com/inspira-labs/inspira-billing/internal/quota/domain"
	"github.com/inspira-labs/inspira-billing/internal/ratelimit"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Log        *zap.Logger
	Cfg        config.Config
	QuotaSvc   quotadomain.Service
	SubSvc     subscriptiondomain.Service
	PaymentSvc paymentdomain.Service
	Guard      *ratelimit.Guard `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	log        *zap.Logger
	cfg        config.Config
	quotaSvc   quotadomain.Service
	subSvc     subscriptiondomain.Service
	paymentSvc paymentdomain.Service
	guard      *ratelimit.Guard
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		log:        p.Log.Named("http.server"),
		cfg:        p.Cfg,
		quotaSvc:   p.QuotaSvc,
		subSvc:     p.SubSvc,
		paymentSvc: p.PaymentSvc,
		guard:      p.Guard,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	quota := v1.Group("/quota", UserRequired())
	{
		quota.POST("/consume", s.RateLimitQuota(), s.ConsumeQuota)
		quota.GET("/status", s.QuotaStatus)
	}

	subscriptions := v1.Group("/subscriptions", UserRequired())
	{
		subscriptions.POST("", s.CreateSubscription)
		subscriptions.GET("", s.GetSubscription)
		subscriptions.DELETE("", s.CancelSubscription)
	}

	payments := v1.Group("/payments")
	{
		payments.POST("/orders", UserRequired(), s.CreatePaymentOrder)
		payments.GET("/orders/:order_id", UserRequired(), s.QueryPaymentOrder)

		// Provider-facing; the provider does not carry user identity.
		payments.POST("/callback", s.RateLimitCallback(), s.PaymentCallback)
	}
}

func run(lc fx.Lifecycle, log *zap.Logger, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: s.Engine(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)
