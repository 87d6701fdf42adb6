package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/manualorder"
	"github.com/imrishuroy/storefront-orderflow/internal/middleware"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

// createManualOrder records an order taken outside the storefront. Lines are checked one by
// one against stock; the first rejected line fails the request with its index. The
// Idempotency-Key header, else draftId, makes resubmission safe.
func (h *handler) createManualOrder(c *gin.Context) {
	var req validation.ManualOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	ctx := c.Request.Context()

	draft := manualorder.NewDraft(req.DraftID)
	for _, l := range req.Lines {
		in := manualorder.LineInput{
			ProductID: l.ProductID,
			Color:     l.Color,
			Size:      l.Size,
			Quantity:  l.Quantity,
		}
		if l.Customization != nil {
			in.Customization = &manualorder.Upload{
				Filename:    l.Customization.Filename,
				ContentType: l.Customization.ContentType,
				Data:        l.Customization.Data,
			}
		}
		if err := h.cfg.Manual.AddLine(ctx, draft, in); err != nil {
			h.cfg.Manual.Discard(ctx, draft)
			writeError(c, err)
			return
		}
	}

	save := manualorder.SaveInput{
		Buyer: manualorder.Buyer{
			Phone: req.Customer.Phone,
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
		},
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		CreatedBy:      c.GetString(middleware.AdminSubjectKey),
		Note:           req.Note,
	}
	if req.Shipping != nil {
		sh := shippingFrom(*req.Shipping)
		save.Shipping = &sh
	}
	res, err := h.cfg.Manual.Save(ctx, draft, save)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	} else {
		c.Header("Location", orderLocation(res.Order))
	}
	c.JSON(status, gin.H{
		"order":           res.Order,
		"draftId":         draft.ID,
		"customerCreated": res.CustomerCreated,
		"duplicate":       res.Duplicate,
	})
}

func orderLocation(o *orders.Order) string {
	return "/customers/" + o.CustomerID + "/orders/" + o.OrderID
}
