package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"arbiter/internal/decision"
	"arbiter/internal/ownership"
	"arbiter/internal/registry"
	"arbiter/internal/store/verdictlog"

	"github.com/gin-gonic/gin"
)

// ArbitrationService 是路由层对仲裁门面的最小依赖。
type ArbitrationService interface {
	Decide(ctx context.Context, req decision.Request) (decision.Verdict, error)
	CheckOwnership(ctx context.Context, req ownership.Request) (ownership.Resolution, error)
}

// Router 暴露仲裁与审计查询接口。
type Router struct {
	Service  ArbitrationService
	Detector *ownership.Detector
	Verdicts *verdictlog.VerdictLogStore
	Registry *registry.Registry
}

func NewRouter(svc ArbitrationService, det *ownership.Detector, verdicts *verdictlog.VerdictLogStore, reg *registry.Registry) *Router {
	return &Router{Service: svc, Detector: det, Verdicts: verdicts, Registry: reg}
}

// Register 将接口挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/decide", r.handleDecide)
	group.POST("/ownership/check", r.handleOwnershipCheck)
	group.POST("/ownership/release", r.handleOwnershipRelease)
	group.POST("/ownership/close", r.handleOwnershipClose)
	group.GET("/ownership", r.handleOwnershipList)
	group.GET("/conflicts", r.handleConflicts)
	group.GET("/verdicts", r.handleVerdicts)
	group.GET("/verdicts/:trace_id", r.handleVerdictByTrace)
	group.GET("/strategies", r.handleStrategies)
}

func (r *Router) handleDecide(c *gin.Context) {
	var req decision.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	verdict, err := r.Service.Decide(c.Request.Context(), req)
	if err != nil {
		// 配置错误或审计日志写入失败：本轮不产生裁决。
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (r *Router) handleOwnershipCheck(c *gin.Context) {
	var req ownership.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := r.Service.CheckOwnership(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "requires ticker") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type relinquishRequest struct {
	Ticker     string `json:"ticker"`
	StrategyID string `json:"strategy_id"`
	Reason     string `json:"reason"`
}

func (r *Router) handleOwnershipRelease(c *gin.Context) {
	r.handleRelinquish(c, r.Detector.Release)
}

func (r *Router) handleOwnershipClose(c *gin.Context) {
	r.handleRelinquish(c, r.Detector.Close)
}

func (r *Router) handleRelinquish(c *gin.Context, op func(ctx context.Context, ticker, strategyID, reason string) (ownership.Resolution, error)) {
	var req relinquishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := op(c.Request.Context(), req.Ticker, req.StrategyID, req.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "requires ticker") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleOwnershipList(c *gin.Context) {
	rows, err := r.Detector.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ownerships": rows})
}

func (r *Router) handleConflicts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	entries, err := r.Detector.ConflictHistory(c.Request.Context(), c.Query("ticker"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": entries})
}

func (r *Router) handleVerdicts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	verdicts, err := r.Verdicts.List(c.Request.Context(), verdictlog.Query{
		Symbol: c.Query("symbol"),
		Action: c.Query("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdicts": verdicts})
}

func (r *Router) handleVerdictByTrace(c *gin.Context) {
	verdict, err := r.Verdicts.GetByTrace(c.Request.Context(), c.Param("trace_id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "verdict not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (r *Router) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": r.Registry.List()})
}
