// Package accesslog はリクエスト処理結果の記録を提供する
//
// # 責務
//
// - 完了した応答ごとに1行のアクセスレコードを出力する
// - 接続単位の異常（読み書きの失敗やパニック）を記録する
// - 出力先の選択（標準エラーまたは追記ファイル）
//
// # 仕様
//
// - 記録の失敗が配信処理へ影響することはない
// - Loggerの各メソッドは複数ワーカーから同時に呼ばれても安全
// - 出力を捨てたい場合はNopを使う
package accesslog
