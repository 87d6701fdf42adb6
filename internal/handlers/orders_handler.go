package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/customers"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

func (h *handler) customerOrders(c *gin.Context) {
	list, err := h.cfg.Orders.ListByCustomer(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *handler) customerOrder(c *gin.Context) {
	o, err := h.cfg.Orders.Get(c.Request.Context(), c.Param("customerId"), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if o == nil {
		writeError(c, orders.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, o)
}

// listOrders is the admin order board, optionally narrowed by ?status=.
func (h *handler) listOrders(c *gin.Context) {
	list, err := h.cfg.Orders.ListAll(c.Request.Context(), orders.Status(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "statuses": orders.Statuses})
}

func (h *handler) updateOrderStatus(c *gin.Context) {
	var req validation.UpdateStatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	var expected orders.Status
	if req.Expected != "" {
		if expected, err = orders.ParseStatus(req.Expected); err != nil {
			writeError(c, err)
			return
		}
	}
	o, err := h.cfg.Orders.UpdateStatus(c.Request.Context(), c.Param("customerId"), c.Param("orderId"), status, expected)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) listCustomers(c *gin.Context) {
	list, err := h.cfg.Customers.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []customers.Customer{}
	}
	c.JSON(http.StatusOK, gin.H{"customers": list})
}

// distance estimates delivery distance from the store to ?pincode=.
func (h *handler) distance(c *gin.Context) {
	if h.cfg.Geo == nil || h.cfg.GeoOrigin == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "distance_lookup_disabled"})
		return
	}
	pincode := c.Query("pincode")
	if !validation.ValidPincode(pincode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pincode"})
		return
	}
	est, err := h.cfg.Geo.EstimateDistance(c.Request.Context(), h.cfg.GeoOrigin, pincode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}
