package accesslog

import (
	"fmt"
	"log"
	"os"
	"time"
)

// timeLayout は標準logパッケージの既定に合わせた時刻形式
const timeLayout = "2006/01/02 15:04:05"

// Record は完了した1応答の記録
type Record struct {
	Time       time.Time
	ConnID     string
	RemoteAddr string
	Method     string
	Target     string
	Proto      string
	Status     int
	Bytes      int64
	Duration   time.Duration
}

// Logger はアクセスレコードの出力先
type Logger interface {
	// Access は完了した応答を1行で記録する
	Access(rec Record)

	// ConnError は接続単位の異常を記録する
	ConnError(connID, remoteAddr string, err error)

	// Close は出力先を閉じる
	Close() error
}

// writer はLoggerの標準log実装
type writer struct {
	logger *log.Logger
	file   *os.File // 出力先がファイルの場合のみ保持する
}

// New はアクセスログの出力先を開く
// targetが空の場合は標準エラーへ、そうでなければ追記モードのファイルへ出力する
func New(target string) (Logger, error) {
	if target == "" {
		return &writer{logger: log.New(os.Stderr, "", 0)}, nil
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("アクセスログのオープンに失敗: %w", err)
	}
	return &writer{logger: log.New(file, "", 0), file: file}, nil
}

// Access は完了した応答を1行で記録する
func (w *writer) Access(rec Record) {
	w.logger.Printf("%s conn=%s %s \"%s %s %s\" %d %d %v",
		rec.Time.Format(timeLayout), rec.ConnID, rec.RemoteAddr,
		rec.Method, rec.Target, rec.Proto, rec.Status, rec.Bytes, rec.Duration)
}

// ConnError は接続単位の異常を記録する
func (w *writer) ConnError(connID, remoteAddr string, err error) {
	w.logger.Printf("%s conn=%s %s 接続処理でエラー: %v",
		time.Now().Format(timeLayout), connID, remoteAddr, err)
}

// Close は出力先がファイルの場合に閉じる
func (w *writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// nop は何も記録しないLogger
type nop struct{}

// Nop は何も記録しないLoggerを返す
func Nop() Logger {
	return nop{}
}

func (nop) Access(Record) {}

func (nop) ConnError(string, string, error) {}

func (nop) Close() error { return nil }
