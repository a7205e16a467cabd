package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Document DocumentConfig `yaml:"document"`
	Limits   LimitsConfig   `yaml:"limits"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host    string `yaml:"host"`    // リッスンするホスト
	Port    int    `yaml:"port"`    // リッスンするポート番号
	Workers int    `yaml:"workers"` // acceptループを回すワーカー数

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト（アイドル検出）
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト

	// keep-alive設定
	MaxRequestsPerConn int `yaml:"max_requests_per_conn"` // 1コネクションあたりの最大リクエスト数（0は無制限）
}

// DocumentConfig は配信対象ドキュメントの設定
type DocumentConfig struct {
	Root        string `yaml:"root"`         // ドキュメントルート
	IndexFile   string `yaml:"index_file"`   // ディレクトリ要求時に返すファイル名
	DefaultType string `yaml:"default_type"` // 拡張子が未知の場合のContent-Type
}

// LimitsConfig はリクエスト解析の上限値
type LimitsConfig struct {
	MaxRequestLine int `yaml:"max_request_line"` // リクエストラインの最大バイト数
	MaxHeaderCount int `yaml:"max_header_count"` // ヘッダ行数の上限
	MaxHeaderBytes int `yaml:"max_header_bytes"` // ヘッダ部全体の最大バイト数
	MaxBodyBytes   int `yaml:"max_body_bytes"`   // Content-Lengthで受け付ける最大ボディサイズ
}

// LogConfig はアクセスログの設定
type LogConfig struct {
	AccessLog string `yaml:"access_log"` // アクセスログの出力先ファイル（空なら標準エラー）
}

// AdminConfig は管理用エンドポイントの設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"` // 管理サーバーを起動するか
	Host    string `yaml:"host"`    // 管理サーバーのホスト
	Port    int    `yaml:"port"`    // 管理サーバーのポート番号
}

// Overrides はコマンドラインオプションによる設定の上書き内容
// ゼロ値の項目は上書きしない
type Overrides struct {
	Host        string // リッスンするホスト
	Port        int    // リッスンするポート番号
	Workers     int    // acceptループを回すワーカー数
	Root        string // ドキュメントルート
	IndexFile   string // ディレクトリ要求時に返すファイル名
	AccessLog   string // アクセスログの出力先ファイル
	AdminEnable bool   // 管理サーバーを有効にする
}

// Load は設定を読み込む
// デフォルト値 → 設定ファイル（CONFIG_FILE環境変数） → 環境変数 の順に上書きする
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile は指定された設定ファイルを読み込む
// pathが空の場合はファイル読み込みをスキップする
func LoadFile(path string) (*Config, error) {
	// デフォルト設定を作成
	cfg := Default()

	// 設定ファイルがあれば読み込んで上書き
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	// 環境変数による上書き
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Server.Workers = getEnvAsIntOrDefault("WORKERS", cfg.Server.Workers)
	cfg.Document.Root = getEnvOrDefault("DOCUMENT_ROOT", cfg.Document.Root)
	cfg.Log.AccessLog = getEnvOrDefault("ACCESS_LOG", cfg.Log.AccessLog)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			Workers:            runtime.NumCPU(),
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			MaxRequestsPerConn: 1000,
		},
		Document: DocumentConfig{
			Root:        ".",
			IndexFile:   "index.html",
			DefaultType: "application/octet-stream",
		},
		Limits: LimitsConfig{
			MaxRequestLine: 8 << 10,
			MaxHeaderCount: 100,
			MaxHeaderBytes: 64 << 10,
			MaxBodyBytes:   1 << 20,
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8081,
		},
	}
}

// ApplyOverrides はゼロ値でない項目だけ設定を上書きする
// 上書き後はValidateで再検証すること
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Host != "" {
		c.Server.Host = o.Host
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.Workers != 0 {
		c.Server.Workers = o.Workers
	}
	if o.Root != "" {
		c.Document.Root = o.Root
	}
	if o.IndexFile != "" {
		c.Document.IndexFile = o.IndexFile
	}
	if o.AccessLog != "" {
		c.Log.AccessLog = o.AccessLog
	}
	if o.AdminEnable {
		c.Admin.Enabled = true
	}
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("ワーカー数は1以上が必要: %d", c.Server.Workers)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("タイムアウトが負の値です")
	}
	if c.Server.MaxRequestsPerConn < 0 {
		return fmt.Errorf("max_requests_per_connが負の値です: %d", c.Server.MaxRequestsPerConn)
	}

	// ドキュメント設定の検証
	if c.Document.Root == "" {
		return fmt.Errorf("ドキュメントルートが設定されていません")
	}
	if c.Document.IndexFile == "" {
		return fmt.Errorf("インデックスファイル名が設定されていません")
	}

	// 上限値の検証
	if c.Limits.MaxRequestLine < 1 {
		return fmt.Errorf("無効なリクエストライン上限: %d", c.Limits.MaxRequestLine)
	}
	if c.Limits.MaxHeaderCount < 1 {
		return fmt.Errorf("無効なヘッダ行数上限: %d", c.Limits.MaxHeaderCount)
	}
	if c.Limits.MaxHeaderBytes < c.Limits.MaxRequestLine {
		return fmt.Errorf("ヘッダ部上限はリクエストライン上限以上が必要")
	}
	if c.Limits.MaxBodyBytes < 0 {
		return fmt.Errorf("無効なボディサイズ上限: %d", c.Limits.MaxBodyBytes)
	}

	// 管理サーバー設定の検証
	if c.Admin.Enabled {
		if c.Admin.Port < 1 || c.Admin.Port > 65535 {
			return fmt.Errorf("無効な管理ポート番号: %d", c.Admin.Port)
		}
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminAddress は管理サーバーのリッスンアドレスを返す
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
