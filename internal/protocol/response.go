package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Version はサーバーのバージョン
const Version = "1.0.0"

// ServerToken はServerヘッダに載せるトークン
const ServerToken = "kura/" + Version

// Dateヘッダの形式（RFC 1123、GMT固定）
const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response は送信するHTTPレスポンス
//
// Server・Date・Content-Length・ConnectionヘッダはWriterが付与するため
// Headerに含めない。本文はContentLengthバイトのストリームとして扱い、
// エラー応答やHEADではBodyをnilにする。
type Response struct {
	Status        int       // ステータスコード
	Header        Header    // 付与するヘッダ（Content-Typeなど）
	ContentLength int64     // 本文のバイト数（Content-Lengthヘッダ値）
	Body          io.Reader // 本文ストリーム（nilなら本文を送らない）
	Close         bool      // 応答後にコネクションを閉じるか
}

// NewResponse は指定ステータスの空レスポンスを作成する
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// NewErrorResponse はエラー応答を作成する
// 本文は空で、Content-Lengthは0になる
func NewErrorResponse(status int) *Response {
	resp := NewResponse(status)
	resp.AddHeader("Content-Type", "text/html")
	return resp
}

// AddHeader はヘッダを末尾に追加する
func (r *Response) AddHeader(name, value string) {
	r.Header = append(r.Header, HeaderField{Name: name, Value: value})
}

// Writer はレスポンスをコネクションへシリアライズする
// コネクションごとに生成する
type Writer struct {
	bw *bufio.Writer
}

// NewWriter は新しいWriterを作成する
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 4<<10)}
}

// WriteResponse はステータスライン・ヘッダ・本文の順に書き出す
// 戻り値は送信した本文のバイト数。書き込み失敗はこのコネクションにとって
// 致命的なので、呼び出し側はエラー時にコネクションを閉じる。
func (w *Writer) WriteResponse(resp *Response) (int64, error) {
	// ステータスライン
	if _, err := fmt.Fprintf(w.bw, "%s %d %s\r\n", ProtoHTTP11, resp.Status, StatusText(resp.Status)); err != nil {
		return 0, err
	}

	// 固定ヘッダ
	if err := w.writeHeader("Server", ServerToken); err != nil {
		return 0, err
	}
	if err := w.writeHeader("Date", time.Now().UTC().Format(httpTimeFormat)); err != nil {
		return 0, err
	}

	// 応答ごとのヘッダ（Content-Typeなど）
	for _, f := range resp.Header {
		if err := w.writeHeader(f.Name, f.Value); err != nil {
			return 0, err
		}
	}

	if err := w.writeHeader("Content-Length", strconv.FormatInt(resp.ContentLength, 10)); err != nil {
		return 0, err
	}
	connection := "keep-alive"
	if resp.Close {
		connection = "close"
	}
	if err := w.writeHeader("Connection", connection); err != nil {
		return 0, err
	}
	if _, err := w.bw.WriteString("\r\n"); err != nil {
		return 0, err
	}

	// 本文。ファイルの伸長に備えてContentLengthちょうどで打ち切る
	var written int64
	if resp.Body != nil && resp.ContentLength > 0 {
		var err error
		written, err = io.CopyN(w.bw, resp.Body, resp.ContentLength)
		if err != nil {
			return written, err
		}
	}

	return written, w.bw.Flush()
}

func (w *Writer) writeHeader(name, value string) error {
	_, err := fmt.Fprintf(w.bw, "%s: %s\r\n", name, value)
	return err
}
