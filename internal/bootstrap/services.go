package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cafequeue-backend/internal/checkout"
	"github.com/angelmondragon/cafequeue-backend/internal/fulfillment"
	"github.com/angelmondragon/cafequeue-backend/internal/inventory"
	"github.com/angelmondragon/cafequeue-backend/internal/items"
	"github.com/angelmondragon/cafequeue-backend/internal/orders"
	"github.com/angelmondragon/cafequeue-backend/internal/payments"
	"github.com/angelmondragon/cafequeue-backend/internal/shops"
	"github.com/angelmondragon/cafequeue-backend/pkg/config"
	"github.com/angelmondragon/cafequeue-backend/pkg/db"
	"github.com/angelmondragon/cafequeue-backend/pkg/enums"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
	"github.com/angelmondragon/cafequeue-backend/pkg/metrics"
	"github.com/angelmondragon/cafequeue-backend/pkg/outbox"
	"github.com/angelmondragon/cafequeue-backend/pkg/redis"
	"github.com/angelmondragon/cafequeue-backend/pkg/stripe"
)

// Services is the domain graph shared by the api and cron binaries.
type Services struct {
	Stripe      *stripe.Client
	Processor   *payments.StripeProcessor
	Shops       *shops.Service
	Ledger      *inventory.Ledger
	Orders      *orders.Service
	Coordinator *checkout.Coordinator
	Notifier    *fulfillment.Notifier
	Items       items.Service
	Outbox      *outbox.Repository
	Metrics     *metrics.OrderMetrics
}

// NewServices wires repositories and services over one database and Redis
// client. Order metrics register on reg.
func NewServices(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Services, error) {
	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	if err != nil {
		return nil, fmt.Errorf("checkout currency: %w", err)
	}

	// sets the stripe package key the processor relies on
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	processor := payments.NewStripeProcessor(cfg.Stripe, logg)

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	orderMetrics := metrics.NewOrderMetrics(reg)

	shopService, err := shops.NewService(shops.ServiceParams{
		Repo:     shops.NewRepository(conn),
		Tx:       dbClient,
		Accounts: processor,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("shop service: %w", err)
	}

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Tx:          dbClient,
		Repo:        inventory.NewRepository(conn),
		Outbox:      emitter,
		Logger:      logg,
		Metrics:     orderMetrics,
		TTL:         cfg.Checkout.ReservationTTL,
		MaxAttempts: cfg.Checkout.MaxCASAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("reservation ledger: %w", err)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Tx:      dbClient,
		Repo:    orders.NewRepository(conn),
		Outbox:  emitter,
		Metrics: orderMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	coordinator, err := checkout.NewCoordinator(checkout.ServiceParams{
		Tx:        dbClient,
		Shops:     shopService,
		Ledger:    ledger,
		Orders:    orderService,
		Processor: processor,
		Outbox:    emitter,
		Metrics:   orderMetrics,
		Logger:    logg,
		Pricing: checkout.Pricing{
			Currency:       currency,
			TaxRateBps:     cfg.Checkout.TaxRateBps,
			PlatformFeeBps: cfg.Checkout.PlatformFeeBps,
		},
		MaxLines: cfg.Checkout.MaxLines,
	})
	if err != nil {
		return nil, fmt.Errorf("payment coordinator: %w", err)
	}

	var invalidations fulfillment.Invalidations
	if redisClient != nil {
		invalidations = fulfillment.NewRedisInvalidations(redisClient, cfg.Notifier.ChannelPrefix, logg)
	}
	notifier, err := fulfillment.NewNotifier(fulfillment.NotifierParams{
		Orders:        orderService,
		Shops:         shopService,
		Settler:       coordinator,
		Invalidations: invalidations,
		Logger:        logg,
		PollInterval:  cfg.Notifier.PollInterval,
		BufferSize:    cfg.Notifier.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment notifier: %w", err)
	}

	itemService, err := items.NewService(items.NewRepository(conn), shopService, logg)
	if err != nil {
		return nil, fmt.Errorf("item service: %w", err)
	}

	return &Services{
		Stripe:      stripeClient,
		Processor:   processor,
		Shops:       shopService,
		Ledger:      ledger,
		Orders:      orderService,
		Coordinator: coordinator,
		Notifier:    notifier,
		Items:       itemService,
		Outbox:      outboxRepo,
		Metrics:     orderMetrics,
	}, nil
}
