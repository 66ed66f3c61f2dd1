package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/inspira-labs/inspira-billing/internal/clock"
	"github.com/inspira-labs/inspira-billing/internal/config"
	"github.com/inspira-labs/inspira-billing/internal/logger"
	"github.com/inspira-labs/inspira-billing/internal/metrics"
	"github.com/inspira-labs/inspira-billing/internal/migration"
	"github.com/inspira-labs/inspira-billing/internal/payment"
	"github.com/inspira-labs/inspira-billing/internal/plan"
	"github.com/inspira-labs/inspira-billing/internal/quota"
	"github.com/inspira-labs/inspira-billing/internal/ratelimit"
	"github.com/inspira-labs/inspira-billing/internal/reconcile"
	"github.com/inspira-labs/inspira-billing/internal/server"
	"github.com/inspira-labs/inspira-billing/internal/subscription"
	"github.com/inspira-labs/inspira-billing/internal/usage"
	"github.com/inspira-labs/inspira-billing/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		metrics.Module,
		ratelimit.Module,

		// Functional domains
		plan.Module,
		usage.Module,
		subscription.Module,
		quota.Module,
		payment.Module,
		reconcile.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
