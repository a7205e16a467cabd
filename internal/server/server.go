package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"kura/internal/accesslog"
	"kura/internal/config"
	"kura/internal/docroot"
	"kura/internal/protocol"
	"kura/internal/stats"
)

// shutdownTimeout は処理中のコネクションを待つ猶予
const shutdownTimeout = 5 * time.Second

// Server はリスニングソケットとワーカープールを管理する構造体
type Server struct {
	config *config.Config
	root   *docroot.Root
	logger accesslog.Logger
	stats  *stats.Collector
	limits protocol.Limits

	mu       sync.RWMutex
	listener net.Listener
	conns    map[*conn]struct{}
	closing  atomic.Bool
	wg       sync.WaitGroup
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, root *docroot.Root, logger accesslog.Logger, collector *stats.Collector) *Server {
	return &Server{
		config: cfg,
		root:   root,
		logger: logger,
		stats:  collector,
		limits: limitsFromConfig(cfg),
		conns:  make(map[*conn]struct{}),
	}
}

// Start はサーバーを起動する
// リスニングに成功したらシグナルかコンテキストのキャンセルまでブロックする
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("リッスンに失敗: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	workers := s.config.Server.Workers
	log.Printf("HTTPサーバーを起動しています: %s (ワーカー数: %d, ドキュメントルート: %s)",
		listener.Addr(), workers, s.root.Dir())

	// 全ワーカーが同じリスナーでAcceptを競う
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(listener)
	}

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Addr はリスニング中のアドレスを返す
// リスニング前はnilを返す
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
//
// リスナーを閉じて新規受け入れを止め、アイドル中のコネクションを
// 起こして閉じさせ、処理中のコネクションを猶予まで待つ。
// 猶予を過ぎたら残りを強制的に閉じる。
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")
	s.closing.Store(true)

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		if err := listener.Close(); err != nil {
			log.Printf("リスナーのクローズに失敗しました: %v", err)
		}
	}

	// アイドル中や読み込み中のコネクションは読み込み期限を現在時刻にして起こす
	// 応答書き込み中のものはループ先頭のclosing確認で抜ける
	s.mu.Lock()
	for c := range s.conns {
		switch connState(c.state.Load()) {
		case stateIdle, stateReading:
			_ = c.netConn.SetReadDeadline(time.Now())
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Println("猶予を過ぎたため残りのコネクションを強制的に閉じます")
		s.mu.Lock()
		for c := range s.conns {
			_ = c.netConn.Close()
		}
		s.mu.Unlock()

		select {
		case <-done:
		case <-time.After(time.Second):
			return fmt.Errorf("ワーカーの停止がタイムアウトしました")
		}
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// track はコネクションをシャットダウン時の強制クローズ対象に登録する
func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

// untrack はコネクションを登録から外す
func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
