package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/config"
	"github.com/imrishuroy/storefront-orderflow/internal/customers"
	orderevents "github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/geo"
	"github.com/imrishuroy/storefront-orderflow/internal/handlers"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/manualorder"
	"github.com/imrishuroy/storefront-orderflow/internal/middleware"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/payment"
	"github.com/imrishuroy/storefront-orderflow/internal/storage"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handlers.RegisterRoutes(r, cfg)
	return r
}

func buildHandlerConfig(cfg config.Config, clients *aws.AWSClients) handlers.HandlerConfig {
	products := inventory.NewStore(clients.DynamoDB, cfg.ProductsTable)
	markers := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	ledger := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, markers, products)
	custs := customers.NewStore(clients.DynamoDB, cfg.CustomersTable)
	media := storage.NewStore(clients.S3, cfg.MediaBucket, cfg.MediaBaseURL)

	var sender orderevents.Sender
	if cfg.OrderEventsQueue != "" {
		sender = aws.NewPublisher(clients.SQS, cfg.OrderEventsQueue)
	} else {
		log.Printf("[api] ORDER_EVENTS_QUEUE_URL not set, order events are dropped")
	}
	publisher := orderevents.NewPublisher(sender)

	gateway := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret, nil)
	svc := checkout.NewService(checkout.NewAttemptStore(clients.DynamoDB, cfg.CheckoutTable), products, gateway, ledger, publisher, checkout.Config{
		Secret:   cfg.PaymentKeySecret,
		Currency: cfg.Currency,
	})

	hc := handlers.HandlerConfig{
		Products:     products,
		Orders:       ledger,
		Customers:    custs,
		Checkout:     svc,
		PaymentKeyID: cfg.PaymentKeyID,
		Manual:       manualorder.NewService(products, media, custs, ledger, publisher, cfg.Currency),
		Media:        media,
		GeoOrigin:    cfg.GeoOriginPincode,
		AdminSecret:  cfg.AdminJWTSecret,
	}
	if cfg.GeoAPIKey != "" {
		hc.Geo = geo.NewClient(cfg.GeoBaseURL, cfg.GeoAPIKey, nil)
	}
	return hc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	r := setupRouter(buildHandlerConfig(cfg, clients))

	if cfg.RunLocal {
		addr := ":" + cfg.Port
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
