// Package server は、リスニングソケットとワーカープールを管理します。
//
// このパッケージは、単一のリスニングソケットを固定数のワーカー
// ゴルーチンで共有し、受け入れたコネクションをHTTP/1.1の
// リクエスト単位で処理します。
//
// 責務:
//   - リスニングソケットの生成と所有
//   - ワーカープールの起動とコネクションの受け入れ
//   - コネクションごとの状態遷移（Idle/Reading/Responding/Closed）
//   - keep-aliveの判定とリクエスト数上限の強制
//   - グレースフルシャットダウン
//
// 仕様:
//   - ワーカーは受け入れたコネクションを最後まで処理してから次を受け入れる
//   - ワーカー間で共有する可変状態はリスナーと集計カウンタのみ
//   - 過負荷時の受け入れ制限はOSのacceptバックログに任せる（内部キューなし）
//   - リクエスト処理中のパニックはコネクション境界で回復する
//   - SIGINT/SIGTERMで停止し、処理中のコネクションを5秒まで待つ
package server
