package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api/geocoder"
	"github.com/langchou/fleetgazer/internal/models"
)

// ListPieces 获取零件阈值列表
func (h *Handler) ListPieces(c *gin.Context) {
	pieces, err := h.backend.ListPieces(requestContext(c))
	if err != nil {
		h.backendError(c, err, "Failed to list pieces")
		return
	}
	if pieces == nil {
		pieces = []models.Piece{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    pieces,
		"count":   len(pieces),
	})
}

// UpdatePiece 更新零件阈值
// PUT /api/pieces/:id
func (h *Handler) UpdatePiece(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var update models.PieceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if update.Name == "" || update.TriggerLimit <= 0 || update.WarningPercent < 0 || update.WarningPercent > 100 {
		respondError(c, http.StatusBadRequest, "Invalid piece thresholds")
		return
	}

	if err := h.backend.UpdatePiece(requestContext(c), id, update); err != nil {
		h.backendError(c, err, "Failed to update piece")
		return
	}

	h.logger.Info("Piece updated via API", zap.Int64("piece_id", id), zap.String("name", update.Name))
	respondOK(c, models.Piece{
		ID:             id,
		Name:           update.Name,
		TriggerLimit:   update.TriggerLimit,
		WarningPercent: update.WarningPercent,
	})
}

// DashboardStats 仪表盘统计
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.backend.DashboardStats(requestContext(c))
	if err != nil {
		h.backendError(c, err, "Failed to get dashboard stats")
		return
	}
	respondOK(c, stats)
}

// AverageKmPerDay 每车每日平均里程
func (h *Handler) AverageKmPerDay(c *gin.Context) {
	avg, err := h.backend.AverageKmPerDay(requestContext(c))
	if err != nil {
		h.backendError(c, err, "Failed to get average km per day")
		return
	}
	respondOK(c, avg)
}

// Geocode 坐标转地址
// GET /api/geocode?lat=47.2184&lng=-1.5536
func (h *Handler) Geocode(c *gin.Context) {
	lat, lng := c.Query("lat"), c.Query("lng")
	if lat == "" || lng == "" {
		respondError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}

	// 非法坐标直接拒绝，不占用 Nominatim 的限流额度
	la, errLat := strconv.ParseFloat(lat, 64)
	lo, errLng := strconv.ParseFloat(lng, 64)
	if errLat != nil || errLng != nil || !geocoder.ValidCoordinates(la, lo) {
		respondError(c, http.StatusBadRequest, "Invalid coordinates")
		return
	}

	respondOK(c, gin.H{
		"address":  h.geocoder.Resolve(c.Request.Context(), la, lo),
		"provider": h.geocoder.Provider(),
	})
}

// ClearGeocodeCache 清空地址缓存
func (h *Handler) ClearGeocodeCache(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.geocoder.ClearCache(ctx); err != nil {
		h.logger.Error("Failed to clear geocode cache", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to clear geocode cache")
		return
	}

	h.logger.Info("Geocode cache cleared via API")
	respondOK(c, gin.H{"cache_size": 0})
}
