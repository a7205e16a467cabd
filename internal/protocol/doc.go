// Package protocol HTTP/1.1のワイヤフォーマット処理を担う
//
// # 責務
// - コネクションのバイト列からのリクエスト解析
// - 解析失敗の分類（不正リクエストライン・非対応バージョン・ヘッダ超過など）
// - レスポンスのシリアライズとkeep-alive判定
// - リクエストライン長・ヘッダ行数・ヘッダ部全体の上限の強制
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 生のTCPコネクションからHTTPリクエストを読み取りたい
// - ステータスコードとヘッダからHTTPレスポンスを書き出したい
// - 解析失敗をステータスコードへ対応付けたい
//
// # 仕様
// - 対応バージョンは HTTP/1.0 と HTTP/1.1 のみ
// - リクエストラインは単一スペース区切りの3トークンのみ受理
// - ヘッダは最初のコロンで分割し、値の前後の空白を除去
// - Content-Lengthがある場合のみボディを読む（chunkedは非対応）
// - Parserはコネクションごとに生成し、リクエスト間で共有しない
package protocol
