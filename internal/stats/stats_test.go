package stats

import (
	"sync"
	"testing"
)

// TestCollector はカウンタの更新とスナップショットをテストする
func TestCollector(t *testing.T) {
	c := New()

	c.ConnOpened()
	c.ConnOpened()
	c.ConnClosed()

	c.ResponseSent(200, 12)
	c.ResponseSent(200, 100)
	c.ResponseSent(404, 0)
	c.ResponseSent(500, 0)

	snap := c.Snapshot()

	if snap.TotalConns != 2 {
		t.Errorf("総接続数が一致しません: got %d, want 2", snap.TotalConns)
	}
	if snap.ActiveConns != 1 {
		t.Errorf("アクティブ接続数が一致しません: got %d, want 1", snap.ActiveConns)
	}
	if snap.TotalRequests != 4 {
		t.Errorf("総リクエスト数が一致しません: got %d, want 4", snap.TotalRequests)
	}
	if snap.Responses2xx != 2 {
		t.Errorf("2xx応答数が一致しません: got %d, want 2", snap.Responses2xx)
	}
	if snap.Responses4xx != 1 {
		t.Errorf("4xx応答数が一致しません: got %d, want 1", snap.Responses4xx)
	}
	if snap.Responses5xx != 1 {
		t.Errorf("5xx応答数が一致しません: got %d, want 1", snap.Responses5xx)
	}
	if snap.BytesSent != 112 {
		t.Errorf("送信バイト数が一致しません: got %d, want 112", snap.BytesSent)
	}
}

// TestCollectorConcurrent は複数ゴルーチンからの同時更新をテストする
func TestCollectorConcurrent(t *testing.T) {
	c := New()

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.ConnOpened()
				c.ResponseSent(200, 1)
				c.ConnClosed()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalConns != workers*perWorker {
		t.Errorf("総接続数が一致しません: got %d, want %d", snap.TotalConns, workers*perWorker)
	}
	if snap.ActiveConns != 0 {
		t.Errorf("アクティブ接続数が一致しません: got %d, want 0", snap.ActiveConns)
	}
	if snap.TotalRequests != workers*perWorker {
		t.Errorf("総リクエスト数が一致しません: got %d, want %d", snap.TotalRequests, workers*perWorker)
	}
	if snap.BytesSent != workers*perWorker {
		t.Errorf("送信バイト数が一致しません: got %d, want %d", snap.BytesSent, workers*perWorker)
	}
}
