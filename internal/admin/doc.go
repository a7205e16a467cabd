// Package admin は運用確認用のHTTPエンドポイントを提供する
//
// # 責務
//
// - ヘルスチェックエンドポイント（/health）
// - 稼働状況エンドポイント（/api/status）
//
// # 仕様
//
// - 配信サーバーとは別のアドレスでリッスンする
// - 既定では無効で、設定のadmin.enabledで有効化する
// - 配信経路とはリスナーもハンドラも共有せず、配信性能に影響しない
package admin
