package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kura/internal/accesslog"
	"kura/internal/protocol"
)

// connState はコネクションの状態
type connState int32

const (
	stateIdle       connState = iota // 次のリクエストの到着待ち
	stateReading                     // リクエストの読み込み中
	stateResponding                  // 応答の生成と書き込み中
	stateClosed                      // クローズ済み
)

// conn は1コネクションの処理状態
// ワーカーが占有し、keep-aliveの全リクエストをここで処理する
type conn struct {
	id      string
	netConn net.Conn
	server  *Server
	parser  *protocol.Parser
	writer  *protocol.Writer
	state   atomic.Int32
	served  int // このコネクションで処理したリクエスト数
}

// newConn は受け入れたコネクションの処理状態を作成する
func newConn(netConn net.Conn, s *Server) *conn {
	c := &conn{
		id:      uuid.New().String(),
		netConn: netConn,
		server:  s,
	}
	c.parser = protocol.NewParser(&stateReader{conn: c, r: netConn}, s.limits, netConn.RemoteAddr().String())
	c.writer = protocol.NewWriter(netConn)
	return c
}

// stateReader は最初の1バイトの到着でIdleからReadingへ遷移させる
type stateReader struct {
	conn *conn
	r    io.Reader
}

func (sr *stateReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	if n > 0 {
		sr.conn.state.CompareAndSwap(int32(stateIdle), int32(stateReading))
	}
	return n, err
}

// serve はコネクション上のリクエストを順に処理する
// 戻るのはコネクションを閉じるときだけで、ワーカーは次のAcceptへ進む
func (c *conn) serve() {
	defer func() {
		if r := recover(); r != nil {
			c.server.logger.ConnError(c.id, c.remoteAddr(), fmt.Errorf("パニックから回復しました: %v", r))
		}
		c.close()
	}()

	cfg := c.server.config.Server
	for {
		if c.server.closing.Load() {
			return
		}
		c.state.Store(int32(stateIdle))

		// 読み込み期限はリクエスト全体に掛かり、アイドル検出を兼ねる
		if cfg.ReadTimeout > 0 {
			if err := c.netConn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
				return
			}
		}

		req, err := c.parser.ReadRequest()
		if err != nil {
			c.finishWithError(err)
			return
		}

		start := time.Now()
		c.state.Store(int32(stateResponding))
		c.served++

		resp := c.server.root.Respond(req)

		// keep-aliveはクライアントの意向とリクエスト数上限の両方で決める
		budget := cfg.MaxRequestsPerConn
		persist := req.KeepAlive() && !c.server.closing.Load() && (budget == 0 || c.served < budget)
		resp.Close = !persist

		if !c.writeResponse(req, resp, start) {
			return
		}
		if resp.Close {
			return
		}
	}
}

// finishWithError は読み込み失敗を応答へ変換して締めくくる
// 応答を返すべきでない失敗（正常なEOFやアイドルタイムアウト）は静かに閉じる
func (c *conn) finishWithError(err error) {
	status := protocol.StatusFor(err)
	if status == 0 {
		if !errors.Is(err, io.EOF) && !errors.Is(err, protocol.ErrIdleTimeout) {
			c.server.logger.ConnError(c.id, c.remoteAddr(), err)
		}
		return
	}

	c.state.Store(int32(stateResponding))
	resp := protocol.NewErrorResponse(status)
	resp.Close = true
	c.writeResponse(nil, resp, time.Now())
}

// writeResponse は応答を書き込んで記録する
// 書き込みに失敗した場合はfalseを返し、呼び出し側はコネクションを破棄する
func (c *conn) writeResponse(req *protocol.Request, resp *protocol.Response, start time.Time) bool {
	cfg := c.server.config.Server
	if cfg.WriteTimeout > 0 {
		if err := c.netConn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
			return false
		}
	}

	bytes, err := c.writer.WriteResponse(resp)
	if closer, ok := resp.Body.(io.Closer); ok {
		_ = closer.Close()
	}

	c.server.stats.ResponseSent(resp.Status, bytes)
	if err != nil {
		c.server.logger.ConnError(c.id, c.remoteAddr(), fmt.Errorf("応答の書き込みに失敗: %w", err))
		return false
	}

	// 解析前に失敗したリクエストはメソッドなどが分からないため - で埋める
	method, target, proto := "-", "-", "-"
	if req != nil {
		method, target, proto = req.Method, req.Target, req.Proto
	}
	c.server.logger.Access(accesslog.Record{
		Time:       start,
		ConnID:     c.id,
		RemoteAddr: c.remoteAddr(),
		Method:     method,
		Target:     target,
		Proto:      proto,
		Status:     resp.Status,
		Bytes:      bytes,
		Duration:   time.Since(start),
	})
	return true
}

// close はコネクションを閉じて状態をClosedへ遷移させる
func (c *conn) close() {
	c.state.Store(int32(stateClosed))
	_ = c.netConn.Close()
}

// remoteAddr はクライアントアドレスを返す
func (c *conn) remoteAddr() string {
	return c.netConn.RemoteAddr().String()
}
