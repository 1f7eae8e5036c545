package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

type OrderHandler struct {
	Store *store.Store
}

type createOrderBody struct {
	Client      string `json:"client"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *OrderHandler) List(c *gin.Context) {
	status := model.Status(c.DefaultQuery("status", string(model.StatusOpen)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": h.Store.ListOrders(status)})
}

func (h *OrderHandler) Create(c *gin.Context) {
	var body createOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	order, err := h.Store.CreateOrder(store.NewOrder{
		Client:      body.Client,
		Title:       body.Title,
		Description: body.Description,
	}, time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, ok := h.Store.GetOrder(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *OrderHandler) Close(c *gin.Context) {
	order, err := h.Store.CloseOrder(c.Param("id"), time.Now().UnixMilli())
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	case errors.Is(err, store.ErrOrderClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Order already closed"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Close failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
