package server

import (
	"errors"
	"log"
	"net"
	"time"

	"kura/internal/config"
	"kura/internal/protocol"
)

// acceptBackoff は一時的なAccept失敗後の待ち時間
const acceptBackoff = 100 * time.Millisecond

// worker は1ワーカーの受け入れループ
//
// 全ワーカーが同じリスナーでAcceptを呼び、OSが1コネクションを
// ちょうど1ワーカーへ渡す。受け入れたコネクションはkeep-aliveの
// 全リクエストを処理し終えるまでこのワーカーが占有する。
func (s *Server) worker(listener net.Listener) {
	defer s.wg.Done()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			// リスナーが閉じられたらワーカーを終える
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 一時的な失敗（FD枯渇など）は少し待ってから受け入れを続ける
			log.Printf("コネクションの受け入れに失敗しました: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}

		s.stats.ConnOpened()
		c := newConn(netConn, s)
		s.track(c)
		c.serve()
		s.untrack(c)
		s.stats.ConnClosed()
	}
}

// limitsFromConfig は設定値を解析上限へ写す
func limitsFromConfig(cfg *config.Config) protocol.Limits {
	return protocol.Limits{
		MaxRequestLine: cfg.Limits.MaxRequestLine,
		MaxHeaderCount: cfg.Limits.MaxHeaderCount,
		MaxHeaderBytes: cfg.Limits.MaxHeaderBytes,
		MaxBodyBytes:   cfg.Limits.MaxBodyBytes,
	}
}
