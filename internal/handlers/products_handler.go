package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/storage"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

// maxImageBytes caps product image uploads.
const maxImageBytes = 10 << 20

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.cfg.Products.List(c.Request.Context(), inventory.ListOptions{
		VisibleOnly: true,
		Category:    c.Query("category"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []inventory.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct hides products that are not shown on the storefront.
func (h *handler) getProduct(c *gin.Context) {
	p, err := h.cfg.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil || !p.ShowProduct {
		writeError(c, inventory.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) createProduct(c *gin.Context) {
	var req validation.CreateProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p := inventory.Product{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Featured:    req.Featured,
		ShowProduct: true,
		GST:         req.GST,
		GSM:         req.GSM,
		Description: req.Description,
		Images:      req.Images,
		Stock:       req.Stock,
	}
	if req.ShowProduct != nil {
		p.ShowProduct = *req.ShowProduct
	}
	if len(req.Variants) > 0 {
		p.Variants = make(map[string]inventory.Variant, len(req.Variants))
		for color, v := range req.Variants {
			p.Variants[color] = inventory.Variant{Images: v.Images, Stock: v.Stock, Sizes: v.Sizes}
		}
	}
	created, err := h.cfg.Products.Create(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/products/"+created.ID)
	c.JSON(http.StatusCreated, created)
}

func (h *handler) updateProduct(c *gin.Context) {
	var req validation.UpdateProductRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Products.Update(c.Request.Context(), c.Param("id"), inventory.Patch{
		Name:        req.Name,
		Price:       req.Price,
		Category:    req.Category,
		Featured:    req.Featured,
		ShowProduct: req.ShowProduct,
		GST:         req.GST,
		GSM:         req.GSM,
		Description: req.Description,
		Images:      req.Images,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// uploadProductImage stores a multipart "file" under the product's image path and returns
// its public URL. The optional "color" form field picks the folder.
func (h *handler) uploadProductImage(c *gin.Context) {
	productID := c.Param("id")
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file", "msg": err.Error()})
		return
	}
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}
	p, err := h.cfg.Products.Get(c.Request.Context(), productID)
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		writeError(c, inventory.ErrNotFound)
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file", "msg": err.Error()})
		return
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file", "msg": err.Error()})
		return
	}

	key := storage.ProductImagePath(productID, c.PostForm("color"), fh.Filename)
	url, err := h.cfg.Media.Put(c.Request.Context(), key, fh.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "url": url})
}

func (h *handler) setStock(c *gin.Context) {
	var req validation.SetStockRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	leaf := inventory.Leaf{ProductID: c.Param("id"), Color: req.Color, Size: req.Size}
	p, err := h.cfg.Products.SetVariantStock(c.Request.Context(), leaf, *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// decrementStock is the admin stock adjustment. Strict mode refuses to go below zero, floor
// mode takes what is there and reports the shortfall.
func (h *handler) decrementStock(c *gin.Context) {
	var req validation.DecrementStockRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	ctx := c.Request.Context()
	leaf := inventory.Leaf{ProductID: c.Param("id"), Color: req.Color, Size: req.Size}
	if req.Floor {
		remaining, shortfall, err := h.cfg.Products.DecrementStockFloor(ctx, leaf, req.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaf": leaf, "remaining": remaining, "shortfall": shortfall})
		return
	}
	remaining, err := h.cfg.Products.DecrementStock(ctx, leaf, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaf": leaf, "remaining": remaining})
}

func (h *handler) addVariant(c *gin.Context) {
	var req validation.AddVariantRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	sized := true
	if req.Sized != nil {
		sized = *req.Sized
	}
	p, err := h.cfg.Products.AddVariant(c.Request.Context(), c.Param("id"), req.Color, req.Images, sized)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handler) renameVariant(c *gin.Context) {
	var req validation.RenameVariantRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Products.RenameVariant(c.Request.Context(), c.Param("id"), c.Param("color"), req.NewColor, req.Images)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) deleteVariant(c *gin.Context) {
	p, err := h.cfg.Products.DeleteVariant(c.Request.Context(), c.Param("id"), c.Param("color"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) addSize(c *gin.Context) {
	var req validation.AddSizeRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Products.AddSize(c.Request.Context(), c.Param("id"), c.Param("color"), req.Size, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handler) setSizeQuantity(c *gin.Context) {
	var req validation.SizeQuantityRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	p, err := h.cfg.Products.UpdateSizeQuantity(c.Request.Context(), c.Param("id"), c.Param("color"), c.Param("size"), *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) deleteSize(c *gin.Context) {
	p, err := h.cfg.Products.DeleteSize(c.Request.Context(), c.Param("id"), c.Param("color"), c.Param("size"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
