package main

import (
	"context"
	"log"

	"kura/internal/accesslog"
	"kura/internal/admin"
	"kura/internal/config"
	"kura/internal/docroot"
	"kura/internal/server"
	"kura/internal/stats"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
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

	// サーバーを作成
	srv := server.New(cfg, root, logger, collector)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
