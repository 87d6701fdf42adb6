package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

func cartLines(in []validation.LineRequest) []cart.Line {
	out := make([]cart.Line, 0, len(in))
	for _, l := range in {
		out = append(out, cart.Line{ProductID: l.ProductID, Color: l.Color, Size: l.Size, Quantity: l.Quantity})
	}
	return out
}

func shippingFrom(f validation.ShippingForm) orders.Shipping {
	return orders.Shipping{
		FullName: f.FullName,
		Phone:    f.Phone,
		Email:    f.Email,
		Address:  f.Address,
		Landmark: f.Landmark,
		City:     f.City,
		State:    f.State,
		Pincode:  f.Pincode,
	}
}

// quote prices a cart against current stock without reserving anything.
func (h *handler) quote(c *gin.Context) {
	var req validation.QuoteRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	priced, err := h.cfg.Checkout.Quote(c.Request.Context(), cartLines(req.Items))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": priced.Items(), "totals": priced.Totals()})
}

func (h *handler) startCheckout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	a, err := h.cfg.Checkout.Start(c.Request.Context(), checkout.StartInput{
		CustomerID: req.CustomerID,
		Shipping:   shippingFrom(req.Shipping),
		Lines:      cartLines(req.Items),
	})
	if err != nil {
		var failed *checkout.FailedError
		if errors.As(err, &failed) {
			writeFailed(c, failed, a)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attempt": a, "keyId": h.cfg.PaymentKeyID})
}

func (h *handler) dismissCheckout(c *gin.Context) {
	res, err := h.cfg.Checkout.Dismiss(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": res.Attempt, "message": res.Message})
}

func (h *handler) retryCheckout(c *gin.Context) {
	a, err := h.cfg.Checkout.Retry(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": a, "keyId": h.cfg.PaymentKeyID})
}

// verifyCheckout handles the payment widget's success callback. Replays of the same payment
// answer 200 with the order written the first time.
func (h *handler) verifyCheckout(c *gin.Context) {
	var req validation.VerifyRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	res, err := h.cfg.Checkout.Verify(c.Request.Context(), c.Param("attemptId"), checkout.VerifyInput{
		ExternalOrderID: req.ExternalOrderID,
		PaymentID:       req.PaymentID,
		Signature:       req.Signature,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"attempt":   res.Attempt,
		"order":     res.Order,
		"clearCart": res.ClearCart,
		"duplicate": res.Duplicate,
	})
}
