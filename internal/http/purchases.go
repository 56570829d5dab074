package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type purchaseRequest struct {
	CourseID string `json:"courseId" binding:"required,uuidv7"`
}

type PurchaseResponse struct {
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PurchasedAt string `json:"purchasedAt"`
}

func (h *Handler) purchase(c *gin.Context) {
	var req purchaseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.purchases.Purchase(c.Request.Context(), mustIdentity(c).UserID, req.CourseID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Purchase successful"})
}

func (h *Handler) listPurchases(c *gin.Context) {
	purchases, err := h.purchases.ListPurchases(c.Request.Context(), mustIdentity(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]PurchaseResponse, len(purchases))
	for i, p := range purchases {
		resp[i] = PurchaseResponse{
			CourseID:    p.CourseID,
			Title:       p.Title,
			Description: p.Description,
			PurchasedAt: p.PurchasedAt.UTC().Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, resp)
}
