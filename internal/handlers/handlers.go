package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/customers"
	"github.com/imrishuroy/storefront-orderflow/internal/events"
	"github.com/imrishuroy/storefront-orderflow/internal/geo"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/manualorder"
	"github.com/imrishuroy/storefront-orderflow/internal/middleware"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/payment"
	"github.com/imrishuroy/storefront-orderflow/internal/storage"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

// DistanceEstimator estimates delivery distance between two pincodes.
type DistanceEstimator interface {
	EstimateDistance(ctx context.Context, origin, dest string) (geo.Estimate, error)
}

// HandlerConfig groups dependencies for the api routes.
type HandlerConfig struct {
	Products     *inventory.Store
	Orders       *orders.Store
	Customers    *customers.Store
	Checkout     *checkout.Service
	PaymentKeyID string // public key handed to the payment widget
	Manual       *manualorder.Service
	Media        *storage.Store
	Geo          DistanceEstimator // nil disables /geo/distance
	GeoOrigin    string
	AdminSecret  string
}

type handler struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
}

// RegisterRoutes registers the storefront and admin routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &handler{cfg: cfg, v: validation.New()}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/products", h.listProducts)
	r.GET("/products/:id", h.getProduct)
	r.POST("/cart/quote", h.quote)

	r.POST("/checkout", h.startCheckout)
	r.POST("/checkout/:attemptId/dismiss", h.dismissCheckout)
	r.POST("/checkout/:attemptId/retry", h.retryCheckout)
	r.POST("/checkout/:attemptId/verify", h.verifyCheckout)

	r.GET("/customers/:customerId/orders", h.customerOrders)
	r.GET("/customers/:customerId/orders/:orderId", h.customerOrder)
	r.GET("/geo/distance", h.distance)

	admin := r.Group("/admin", middleware.AdminAuth(cfg.AdminSecret))
	admin.POST("/products", h.createProduct)
	admin.PATCH("/products/:id", h.updateProduct)
	admin.POST("/products/:id/images", h.uploadProductImage)
	admin.PUT("/products/:id/stock", h.setStock)
	admin.POST("/products/:id/stock/decrement", h.decrementStock)
	admin.POST("/products/:id/variants", h.addVariant)
	admin.PUT("/products/:id/variants/:color", h.renameVariant)
	admin.DELETE("/products/:id/variants/:color", h.deleteVariant)
	admin.POST("/products/:id/variants/:color/sizes", h.addSize)
	admin.PUT("/products/:id/variants/:color/sizes/:size", h.setSizeQuantity)
	admin.DELETE("/products/:id/variants/:color/sizes/:size", h.deleteSize)
	admin.GET("/orders", h.listOrders)
	admin.PATCH("/orders/:customerId/:orderId/status", h.updateOrderStatus)
	admin.POST("/manual-orders", h.createManualOrder)
	admin.GET("/customers", h.listCustomers)
}

// statusFor maps sentinel errors to a response status and error code. Order matters:
// ErrVerifyInProgress wraps ErrStateMismatch.
var statusFor = []struct {
	err    error
	status int
	code   string
}{
	{inventory.ErrNotFound, http.StatusNotFound, "product_not_found"},
	{inventory.ErrVariantNotFound, http.StatusNotFound, "variant_not_found"},
	{inventory.ErrLeafNotFound, http.StatusNotFound, "stock_leaf_not_found"},
	{orders.ErrNotFound, http.StatusNotFound, "order_not_found"},
	{checkout.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},

	{inventory.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{inventory.ErrImagesRequired, http.StatusBadRequest, "images_required"},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{orders.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{orders.ErrInvalidOrder, http.StatusBadRequest, "invalid_order"},
	{orders.ErrTooManyLines, http.StatusBadRequest, "too_many_lines"},
	{checkout.ErrInvalidShipping, http.StatusBadRequest, "invalid_shipping"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{manualorder.ErrEmptyDraft, http.StatusBadRequest, "empty_draft"},
	{customers.ErrPhoneRequired, http.StatusBadRequest, "phone_required"},
	{storage.ErrEmptyObject, http.StatusBadRequest, "empty_upload"},

	{inventory.ErrVariantExists, http.StatusConflict, "variant_exists"},
	{inventory.ErrSizeExists, http.StatusConflict, "size_exists"},
	{inventory.ErrWrongStockModel, http.StatusConflict, "wrong_stock_model"},
	{inventory.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{orders.ErrStatusMismatch, http.StatusConflict, "status_mismatch"},
	{checkout.ErrVerifyInProgress, http.StatusConflict, "verify_in_progress"},
	{checkout.ErrStateMismatch, http.StatusConflict, "attempt_changed"},
	{checkout.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{checkout.ErrSignatureMismatch, http.StatusConflict, "signature_mismatch"},

	{checkout.ErrGatewayUnavailable, http.StatusBadGateway, "payment_gateway_unavailable"},
	{payment.ErrGateway, http.StatusBadGateway, "payment_gateway_error"},
	{geo.ErrLookup, http.StatusBadGateway, "distance_lookup_failed"},
	{checkout.ErrOrderPending, http.StatusServiceUnavailable, "order_pending"},
}

// writeError renders err as a JSON error response.
func writeError(c *gin.Context, err error) {
	var (
		failed   *checkout.FailedError
		lineErr  *validation.LineError
		shortage *inventory.StockShortage
		short    *inventory.InsufficientStockError
	)
	switch {
	case errors.As(err, &failed):
		writeFailed(c, failed, nil)
	case errors.As(err, &lineErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "line_rejected", "msg": lineErr.Error(), "line": lineBody(lineErr)})
	case errors.As(err, &shortage):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_stock", "shortages": events.ShortagesFrom(shortage.Lines)})
	case errors.As(err, &short):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient_stock",
			"leaf":      short.Leaf,
			"requested": short.Requested,
			"available": short.Available,
		})
	default:
		for _, m := range statusFor {
			if !errors.Is(err, m.err) {
				continue
			}
			if m.status >= http.StatusInternalServerError {
				// Upstream failures stay in the log.
				log.Printf("[http] %s %s upstream error: %v", c.Request.Method, c.FullPath(), err)
				c.JSON(m.status, gin.H{"error": m.code})
				return
			}
			c.JSON(m.status, gin.H{"error": m.code, "msg": err.Error()})
			return
		}
		log.Printf("[http] %s %s internal error: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

// writeFailed renders a failed checkout attempt. attempt is included when the caller has it.
func writeFailed(c *gin.Context, f *checkout.FailedError, attempt *checkout.Attempt) {
	body := gin.H{"error": "checkout_failed", "attemptId": f.AttemptID, "reason": f.Reason}
	if attempt != nil {
		body["attempt"] = attempt
	}
	status := http.StatusConflict
	switch f.Reason {
	case checkout.ReasonOutOfStock:
		body["shortages"] = f.Shortages
	case checkout.ReasonStartFailed:
		status = http.StatusBadGateway
	case checkout.ReasonVerifyError:
		status = http.StatusInternalServerError
		log.Printf("[http] checkout %s verify error: %v", f.AttemptID, f.Err)
	}
	c.JSON(status, body)
}

func lineBody(e *validation.LineError) gin.H {
	return gin.H{
		"index":     e.Index,
		"productId": e.ProductID,
		"color":     e.Color,
		"size":      e.Size,
		"requested": e.Requested,
		"available": e.Available,
	}
}
