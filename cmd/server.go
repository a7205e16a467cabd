// Package main はkuraサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"kura/internal/accesslog"
	"kura/internal/admin"
	"kura/internal/config"
	"kura/internal/docroot"
	"kura/internal/server"
	"kura/internal/stats"
)

func main() {
	// コマンドラインオプション
	var (
		configPath  = flag.String("config", "", "設定ファイルのパス")
		host        = flag.String("host", "", "リッスンするホスト (デフォルト: 0.0.0.0)")
		port        = flag.Int("port", 0, "リッスンするポート (デフォルト: 8080)")
		workers     = flag.Int("workers", 0, "ワーカー数 (デフォルト: CPU数)")
		docRoot     = flag.String("root", "", "ドキュメントルート (デフォルト: カレントディレクトリ)")
		indexFile   = flag.String("index", "", "インデックスファイル名 (デフォルト: index.html)")
		accessLog   = flag.String("log", "", "アクセスログの出力先ファイル (デフォルト: 標準エラー)")
		adminEnable = flag.Bool("admin", false, "管理エンドポイントを有効にする")
		help        = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("kura - 静的ファイルHTTPサーバー")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む（-config未指定時はCONFIG_FILE環境変数に従う）
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	cfg.ApplyOverrides(config.Overrides{
		Host:        *host,
		Port:        *port,
		Workers:     *workers,
		Root:        *docRoot,
		IndexFile:   *indexFile,
		AccessLog:   *accessLog,
		AdminEnable: *adminEnable,
	})

	// 上書き後の設定を検証する
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定の検証に失敗しました: %v", err)
	}

	// アクセスログを開く
	logger, err := accesslog.New(cfg.Log.AccessLog)
	if err != nil {
		log.Fatalf("アクセスログのオープンに失敗しました: %v", err)
	}
	defer func() { _ = logger.Close() }()

	// ドキュメントルートを開く
	root, err := docroot.New(cfg.Document.Root, cfg.Document.IndexFile, cfg.Document.DefaultType)
	if err != nil {
		log.Fatalf("ドキュメントルートのオープンに失敗しました: %v", err)
	}

	// 集計を開始
	collector := stats.New()

	// 管理サーバーは有効時のみ別ゴルーチンで起動
	if cfg.Admin.Enabled {
		adminSrv := admin.New(cfg, collector)
		go func() {
			if err := adminSrv.Start(); err != nil {
				log.Printf("管理サーバーでエラーが発生しました: %v", err)
			}
		}()
		defer func() {
			if err := adminSrv.Shutdown(); err != nil {
				log.Printf("管理サーバーの停止に失敗しました: %v", err)
			}
		}()
	}

	// サーバーを作成して起動
	srv := server.New(cfg, root, logger, collector)

	ctx := context.Background()
	log.Printf("kura サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
