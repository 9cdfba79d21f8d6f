package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/service"
	"github.com/langchou/fleetgazer/internal/status"
)

// 汇总告警/事故时并发请求后端的上限
const detailsConcurrency = 4

type trailerDetailsResponse struct {
	Trailer         service.TrailerView  `json:"trailer"`
	Alerts          []models.Alert       `json:"alerts"`
	Performance     []models.Performance `json:"performance"`
	RecentIncidents []models.Incident    `json:"recent_incidents"`
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

func wantAddress(c *gin.Context) bool {
	v := c.Query("address")
	return v == "1" || v == "true"
}

// ListTrailers 获取拖车列表及状态
// GET /api/trailers?status=Charging&address=1
func (h *Handler) ListTrailers(c *gin.Context) {
	var filter status.Status
	if q := c.Query("status"); q != "" {
		s, err := status.ParseStatus(q)
		if err != nil {
			respondError(c, http.StatusBadRequest, "Invalid status")
			return
		}
		filter = s
	}

	ctx := requestContext(c)
	trailers, err := h.backend.ListTrailers(ctx)
	if err != nil {
		h.backendError(c, err, "Failed to list trailers")
		return
	}

	views := h.fleet.Classify(trailers)
	if filter.Valid() {
		filtered := views[:0]
		for _, v := range views {
			if v.Classification != nil && v.Classification.Status == filter {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	if wantAddress(c) {
		h.attachAddresses(c, views)
	}

	respondOK(c, views)
}

// attachAddresses 为遥测有效的拖车解析地址
func (h *Handler) attachAddresses(c *gin.Context, views []service.TrailerView) {
	var (
		points []status.Point
		index  []int
	)
	for i := range views {
		if views[i].Classification == nil {
			continue
		}
		p, err := views[i].Trailer.Position()
		if err != nil {
			continue
		}
		points = append(points, p)
		index = append(index, i)
	}

	addresses := h.geocoder.ResolveMany(c.Request.Context(), points)
	for j, i := range index {
		views[i].Address = addresses[j]
	}
}

// GetTrailer 获取拖车详情，告警与事故按优先级排序
func (h *Handler) GetTrailer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	details, err := h.backend.GetTrailer(requestContext(c), id)
	if err != nil {
		h.backendError(c, err, "Failed to get trailer")
		return
	}

	views := h.fleet.Classify([]models.Trailer{details.Trailer})
	if wantAddress(c) {
		h.attachAddresses(c, views)
	}

	respondOK(c, trailerDetailsResponse{
		Trailer:         views[0],
		Alerts:          models.SortAlerts(details.Alerts),
		Performance:     details.Performance,
		RecentIncidents: models.SortIncidents(details.RecentIncidents),
	})
}

// GetTrailerAddress 获取拖车当前位置的地址
func (h *Handler) GetTrailerAddress(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	details, err := h.backend.GetTrailer(requestContext(c), id)
	if err != nil {
		h.backendError(c, err, "Failed to get trailer")
		return
	}

	address := h.geocoder.ResolveString(c.Request.Context(), details.Trailer.Latitude, details.Trailer.Longitude)
	respondOK(c, gin.H{
		"trailer_id": id,
		"address":    address,
	})
}

// GetTrailerHistory 获取拖车状态历史
func (h *Handler) GetTrailerHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if h.history == nil {
		respondError(c, http.StatusServiceUnavailable, "State history is disabled")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	states, err := h.history.ListByTrailer(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to list trailer history", zap.Int64("trailer_id", id), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to list trailer history")
		return
	}
	if states == nil {
		states = []*models.TrailerState{}
	}

	respondOK(c, states)
}

// FleetSummary 各状态拖车数量
func (h *Handler) FleetSummary(c *gin.Context) {
	respondOK(c, h.fleet.Summary())
}

// FleetStates 所有拖车的当前状态
func (h *Handler) FleetStates(c *gin.Context) {
	respondOK(c, h.fleet.States())
}

// FleetIntervals 所有拖车当前未结束的状态区间，含持续时长（秒）
func (h *Handler) FleetIntervals(c *gin.Context) {
	if h.history == nil {
		respondError(c, http.StatusServiceUnavailable, "State history is disabled")
		return
	}

	states, err := h.history.Current(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list current intervals", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to list current intervals")
		return
	}

	type interval struct {
		*models.TrailerState
		DurationSeconds int64 `json:"duration_seconds"`
	}
	now := time.Now()
	out := make([]interval, 0, len(states))
	for _, s := range states {
		out = append(out, interval{TrailerState: s, DurationSeconds: int64(s.Duration(now).Seconds())})
	}

	respondOK(c, out)
}

// collectDetails 获取所有拖车详情，单个拖车失败时跳过
func (h *Handler) collectDetails(c *gin.Context) ([]*models.TrailerDetails, bool) {
	ctx := requestContext(c)
	trailers, err := h.backend.ListTrailers(ctx)
	if err != nil {
		h.backendError(c, err, "Failed to list trailers")
		return nil, false
	}

	var (
		mu      sync.Mutex
		details = make([]*models.TrailerDetails, 0, len(trailers))
		g       errgroup.Group
	)
	g.SetLimit(detailsConcurrency)
	for _, t := range trailers {
		t := t
		g.Go(func() error {
			d, err := h.backend.GetTrailer(ctx, t.ID)
			if err != nil {
				h.logger.Debug("Skipping trailer details", zap.Int64("trailer_id", t.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			details = append(details, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return details, true
}

// ListAlerts 汇总所有拖车的告警
// GET /api/alerts?active=1
func (h *Handler) ListAlerts(c *gin.Context) {
	details, ok := h.collectDetails(c)
	if !ok {
		return
	}

	alerts := make([]models.Alert, 0)
	for _, d := range details {
		alerts = append(alerts, d.Alerts...)
	}
	if v := c.Query("active"); v == "1" || v == "true" {
		alerts = models.ActiveAlerts(alerts)
	}

	respondOK(c, models.SortAlerts(alerts))
}

// ListIncidents 汇总所有拖车的事故
func (h *Handler) ListIncidents(c *gin.Context) {
	details, ok := h.collectDetails(c)
	if !ok {
		return
	}

	incidents := make([]models.Incident, 0)
	for _, d := range details {
		incidents = append(incidents, d.RecentIncidents...)
	}

	respondOK(c, models.SortIncidents(incidents))
}

// ResolveAlert 标记告警已解决
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.backend.ResolveAlert(requestContext(c), id); err != nil {
		h.backendError(c, err, "Failed to resolve alert")
		return
	}

	h.logger.Info("Alert resolved via API", zap.Int64("alert_id", id))
	respondOK(c, gin.H{"id": id, "status": models.AlertStatusSolved})
}
