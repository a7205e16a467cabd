// Package docroot ドキュメントルート配下の静的ファイル解決と応答生成を担う
//
// # 責務
// - リクエストターゲットからファイルシステムパスへの安全な解決
// - ドキュメントルート外へ出る要求の拒否（.. やシンボリックリンク経由を含む）
// - ディレクトリ要求へのインデックスファイルの適用
// - ファイルのメタデータと内容からのレスポンス生成
// - 拡張子からContent-Typeへの静的な対応付け
//
// # 仕様
// - ルートに符号化されていないパスのみ受理し、パーセントデコード後に検証する
// - 字句的な正規化の後、シンボリックリンクを解決して再度ルート配下かを確認する
// - 違反はNotFoundではなくForbiddenとし、ルート外の構造を漏らさない
// - 対応メソッドはGETとHEADのみ。HEADは同一ヘッダで本文なし
// - 大きなファイルも全読みせず、ストリームとして応答に載せる
package docroot
