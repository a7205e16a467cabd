// Package stats は配信状況の集計を提供する
//
// # 責務
//
// - 接続数・リクエスト数・送信バイト数の集計
// - 管理エンドポイントへ渡すスナップショットの生成
//
// # 仕様
//
// - すべてのカウンタはアトミック操作で更新され、ワーカー間でロックを共有しない
// - Snapshotは集計途中でも安全に呼べる（行単位の整合のみ保証する）
package stats
