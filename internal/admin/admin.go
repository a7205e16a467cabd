package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kura/internal/config"
	"kura/internal/stats"
)

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerInfo は配信サーバーの情報
type ServerInfo struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Workers      int    `json:"workers"`
	DocumentRoot string `json:"document_root"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status    string         `json:"status"`
	Server    ServerInfo     `json:"server"`
	Stats     stats.Snapshot `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

// Server は管理用エンドポイントを提供する構造体
type Server struct {
	config     *config.Config
	stats      *stats.Collector
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しい管理サーバーを作成する
func New(cfg *config.Config, collector *stats.Collector) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config: cfg,
		stats:  collector,
		engine: engine,
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/api/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:    cfg.AdminAddress(),
		Handler: engine,
	}
	return s
}

// Handler は管理エンドポイントのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start は管理サーバーを起動する
// Shutdownが呼ばれるまでブロックする
func (s *Server) Start() error {
	log.Printf("管理サーバーを起動しています: %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("管理サーバーの起動に失敗: %w", err)
	}
	return nil
}

// Shutdown は管理サーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("管理サーバーのシャットダウンに失敗: %w", err)
	}
	return nil
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	response := StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host:         s.config.Server.Host,
			Port:         s.config.Server.Port,
			Workers:      s.config.Server.Workers,
			DocumentRoot: s.config.Document.Root,
		},
		Stats:     s.stats.Snapshot(),
		Timestamp: time.Now(),
	}

	c.JSON(http.StatusOK, response)
}
