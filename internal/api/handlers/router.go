package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/voltgazer/internal/metrics"
	"github.com/langchou/voltgazer/internal/service"
	"github.com/langchou/voltgazer/internal/state"
	"github.com/langchou/voltgazer/pkg/ws"
)

// Storage 健康检查所需的存储能力
type Storage interface {
	Ping(ctx context.Context) error
	State() state.Snapshot
}

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	ingest   *service.IngestionService
	query    *service.QueryService
	storage  Storage
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	ingest *service.IngestionService,
	query *service.QueryService,
	storage Storage,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:  logger,
		ingest:  ingest,
		query:   query,
		storage: storage,
		wsHub:   wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 只读推送，允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 读数
	r.POST("/data", h.SubmitReadings)
	r.GET("/data", h.ListReadings)

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查与指标
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadyCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 存活检查，不访问数据库
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"storage":    h.storage.State().State,
		"ws_clients": h.wsHub.ClientCount(),
	})
}

// ReadyCheck 就绪检查，数据库不可达时返回 503
func (h *Handler) ReadyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	snapshot := h.storage.State()
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.String("storage", snapshot.State), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"storage": snapshot.State,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"storage": snapshot.State,
		"since":   snapshot.Since,
	})
}
