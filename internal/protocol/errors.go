package protocol

import (
	"errors"
	"net/http"
)

// 解析失敗の分類。コネクション処理側はerrors.Isで判別して
// ステータスコードへ変換する。
var (
	// ErrBadRequestLine はリクエストラインが3トークンに分割できない場合
	ErrBadRequestLine = errors.New("リクエストラインが不正です")

	// ErrUnsupportedVersion はHTTPバージョントークンが非対応の場合
	ErrUnsupportedVersion = errors.New("非対応のHTTPバージョンです")

	// ErrHeaderTooLarge はリクエストライン長・ヘッダ行数・ヘッダ部サイズの
	// いずれかが上限を超えた場合
	ErrHeaderTooLarge = errors.New("ヘッダ部が上限を超えています")

	// ErrMalformedHeader はコロンを含まないヘッダ行などの形式違反
	ErrMalformedHeader = errors.New("ヘッダ行が不正です")

	// ErrUnsupportedBody はchunked転送や上限超過ボディなど受理できないボディ
	ErrUnsupportedBody = errors.New("非対応のリクエストボディです")

	// ErrIncomplete はリクエスト途中でコネクションが閉じられた場合
	ErrIncomplete = errors.New("リクエストが途中で終了しました")

	// ErrIdleTimeout はリクエスト開始前のアイドルタイムアウト。
	// 応答せずにコネクションを閉じる。
	ErrIdleTimeout = errors.New("アイドルタイムアウト")

	// ErrRequestTimeout はリクエスト読み込み途中のタイムアウト。
	// 408を返してからコネクションを閉じる。
	ErrRequestTimeout = errors.New("リクエスト読み込みがタイムアウトしました")
)

// StatusFor は解析失敗をステータスコードへ対応付ける
// 応答を返すべきでない失敗（クリーンなクローズやアイドルタイムアウト）には0を返す
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequestLine),
		errors.Is(err, ErrUnsupportedVersion),
		errors.Is(err, ErrHeaderTooLarge),
		errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrUnsupportedBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrRequestTimeout):
		return http.StatusRequestTimeout
	default:
		// io.EOF（データなしの切断）、ErrIdleTimeout、ErrIncomplete、
		// その他のネットワーク障害は応答なしで閉じる
		return 0
	}
}

// StatusText はステータスコードに対応する理由句を返す
func StatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
