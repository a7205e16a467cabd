package docroot

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kura/internal/protocol"
)

// newTestRoot はテスト用のドキュメントルートを組み立てる
//
//	root/
//	  index.html      "hello world!"
//	  style.css
//	  docs/
//	    index.html
//	    page.html
//	  empty/          インデックスなしのディレクトリ
//	  escape.txt  ->  ルート外へのシンボリックリンク
//	  alias.html  ->  index.htmlへのシンボリックリンク
func newTestRoot(t *testing.T) *Root {
	t.Helper()

	dir := t.TempDir()
	outside := t.TempDir()

	files := map[string]string{
		"index.html":      "hello world!",
		"style.css":       "body { margin: 0 }",
		"docs/index.html": "<h1>docs</h1>",
		"docs/page.html":  "<p>page</p>",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("ファイルの作成に失敗しました: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
	}

	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatalf("ルート外ファイルの作成に失敗しました: %v", err)
	}
	if err := os.Symlink(secret, filepath.Join(dir, "escape.txt")); err != nil {
		t.Fatalf("シンボリックリンクの作成に失敗しました: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "index.html"), filepath.Join(dir, "alias.html")); err != nil {
		t.Fatalf("シンボリックリンクの作成に失敗しました: %v", err)
	}

	root, err := New(dir, "index.html", "application/octet-stream")
	if err != nil {
		t.Fatalf("ドキュメントルートのオープンに失敗しました: %v", err)
	}
	return root
}

// TestNew はドキュメントルートのオープンをテストする
func TestNew(t *testing.T) {
	t.Run("ディレクトリでないルートは拒否する", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "plain.txt")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatalf("ファイルの作成に失敗しました: %v", err)
		}
		if _, err := New(file, "index.html", "application/octet-stream"); err == nil {
			t.Error("エラーが期待されましたが、エラーが発生しませんでした")
		}
	})

	t.Run("存在しないルートは拒否する", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing")
		if _, err := New(missing, "index.html", "application/octet-stream"); err == nil {
			t.Error("エラーが期待されましたが、エラーが発生しませんでした")
		}
	})
}

// TestResolve はリクエストターゲットの解決をテストする
func TestResolve(t *testing.T) {
	root := newTestRoot(t)

	testCases := []struct {
		name    string
		target  string
		want    string // ルートからの相対パス（エラー期待時は空）
		wantErr error
	}{
		{
			name:   "ルートはインデックスファイルへ解決する",
			target: "/",
			want:   "index.html",
		},
		{
			name:   "通常のファイル",
			target: "/index.html",
			want:   "index.html",
		},
		{
			name:   "サブディレクトリのファイル",
			target: "/docs/page.html",
			want:   "docs/page.html",
		},
		{
			name:   "末尾スラッシュのディレクトリはインデックスへ解決する",
			target: "/docs/",
			want:   "docs/index.html",
		},
		{
			name:   "末尾スラッシュなしのディレクトリもインデックスへ解決する",
			target: "/docs",
			want:   "docs/index.html",
		},
		{
			name:   "クエリ文字列は無視する",
			target: "/index.html?v=2",
			want:   "index.html",
		},
		{
			name:   "フラグメントは無視する",
			target: "/index.html#top",
			want:   "index.html",
		},
		{
			name:   "パーセントエスケープを復号する",
			target: "/docs/page%2Ehtml",
			want:   "docs/page.html",
		},
		{
			name:   "ルート内に収まる..は許可する",
			target: "/docs/../index.html",
			want:   "index.html",
		},
		{
			name:   "ルート内のシンボリックリンクは許可する",
			target: "/alias.html",
			want:   "index.html",
		},
		{
			name:    "ルート上方への脱出は拒否する",
			target:  "/../etc/passwd",
			wantErr: ErrForbidden,
		},
		{
			name:    "深い脱出も拒否する",
			target:  "/../../../../etc/passwd",
			wantErr: ErrForbidden,
		},
		{
			name:    "符号化された脱出も拒否する",
			target:  "/%2e%2e/etc/passwd",
			wantErr: ErrForbidden,
		},
		{
			name:    "区切りまで符号化された脱出も拒否する",
			target:  "/..%2f..%2fetc%2fpasswd",
			wantErr: ErrForbidden,
		},
		{
			name:    "途中から上へ抜ける脱出も拒否する",
			target:  "/docs/../../etc/passwd",
			wantErr: ErrForbidden,
		},
		{
			name:    "ルート外を指すシンボリックリンクは拒否する",
			target:  "/escape.txt",
			wantErr: ErrForbidden,
		},
		{
			name:    "NULバイトは拒否する",
			target:  "/index%00.html",
			wantErr: ErrForbidden,
		},
		{
			name:    "不正なパーセントエスケープは拒否する",
			target:  "/bad%zzpath",
			wantErr: ErrForbidden,
		},
		{
			name:    "スラッシュで始まらないターゲットは拒否する",
			target:  "index.html",
			wantErr: ErrForbidden,
		},
		{
			name:    "絶対URL形式は拒否する",
			target:  "http://example.com/index.html",
			wantErr: ErrForbidden,
		},
		{
			name:    "存在しないファイル",
			target:  "/missing.html",
			wantErr: ErrNotFound,
		},
		{
			name:    "インデックスのないディレクトリ",
			target:  "/empty/",
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolved, err := root.Resolve(tc.target)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("エラーが一致しません: got %v, want %v", err, tc.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("予期しないエラーが発生しました: %v", err)
			}
			want := filepath.Join(root.Dir(), filepath.FromSlash(tc.want))
			if string(resolved) != want {
				t.Errorf("解決結果が一致しません: got %s, want %s", resolved, want)
			}
		})
	}
}

// TestRespond は応答の組み立てをテストする
func TestRespond(t *testing.T) {
	root := newTestRoot(t)

	t.Run("GETはファイル本文を返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "GET", Target: "/index.html", Proto: protocol.ProtoHTTP11})
		if resp.Status != http.StatusOK {
			t.Fatalf("ステータスが一致しません: got %d, want %d", resp.Status, http.StatusOK)
		}
		if got, _ := resp.Header.Get("Content-Type"); got != "text/html" {
			t.Errorf("Content-Typeが一致しません: got %s, want text/html", got)
		}
		if resp.ContentLength != int64(len("hello world!")) {
			t.Errorf("Content-Lengthが一致しません: got %d, want %d", resp.ContentLength, len("hello world!"))
		}
		if resp.Body == nil {
			t.Fatal("本文が設定されていません")
		}
		defer closeBody(resp)
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("本文の読み込みに失敗しました: %v", err)
		}
		if string(body) != "hello world!" {
			t.Errorf("本文が一致しません: got %q, want %q", body, "hello world!")
		}
	})

	t.Run("ルートへのGETはインデックスを返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "GET", Target: "/", Proto: protocol.ProtoHTTP11})
		defer closeBody(resp)
		if resp.Status != http.StatusOK {
			t.Fatalf("ステータスが一致しません: got %d, want %d", resp.Status, http.StatusOK)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("本文の読み込みに失敗しました: %v", err)
		}
		if string(body) != "hello world!" {
			t.Errorf("本文が一致しません: got %q, want %q", body, "hello world!")
		}
	})

	t.Run("HEADは本文なしで同じヘッダを返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "HEAD", Target: "/index.html", Proto: protocol.ProtoHTTP11})
		if resp.Status != http.StatusOK {
			t.Fatalf("ステータスが一致しません: got %d, want %d", resp.Status, http.StatusOK)
		}
		if got, _ := resp.Header.Get("Content-Type"); got != "text/html" {
			t.Errorf("Content-Typeが一致しません: got %s, want text/html", got)
		}
		if resp.ContentLength != int64(len("hello world!")) {
			t.Errorf("Content-Lengthが一致しません: got %d, want %d", resp.ContentLength, len("hello world!"))
		}
		if resp.Body != nil {
			t.Error("HEADに本文が設定されています")
		}
	})

	t.Run("未対応メソッドは405とAllowを返す", func(t *testing.T) {
		for _, method := range []string{"POST", "PUT", "DELETE", "OPTIONS"} {
			resp := root.Respond(&protocol.Request{Method: method, Target: "/index.html", Proto: protocol.ProtoHTTP11})
			if resp.Status != http.StatusMethodNotAllowed {
				t.Errorf("%s: ステータスが一致しません: got %d, want %d", method, resp.Status, http.StatusMethodNotAllowed)
			}
			if got, _ := resp.Header.Get("Allow"); got != "GET, HEAD" {
				t.Errorf("%s: Allowが一致しません: got %s, want GET, HEAD", method, got)
			}
		}
	})

	t.Run("ルート外への要求は403を返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "GET", Target: "/../../etc/passwd", Proto: protocol.ProtoHTTP11})
		if resp.Status != http.StatusForbidden {
			t.Errorf("ステータスが一致しません: got %d, want %d", resp.Status, http.StatusForbidden)
		}
	})

	t.Run("存在しないファイルは404を返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "GET", Target: "/missing.html", Proto: protocol.ProtoHTTP11})
		if resp.Status != http.StatusNotFound {
			t.Errorf("ステータスが一致しません: got %d, want %d", resp.Status, http.StatusNotFound)
		}
	})

	t.Run("拡張子に応じたContent-Typeを返す", func(t *testing.T) {
		resp := root.Respond(&protocol.Request{Method: "HEAD", Target: "/style.css", Proto: protocol.ProtoHTTP11})
		if got, _ := resp.Header.Get("Content-Type"); got != "text/css" {
			t.Errorf("Content-Typeが一致しません: got %s, want text/css", got)
		}
	})

	t.Run("未知の拡張子は既定のContent-Typeを返す", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "data.unknown"), []byte("x"), 0o644); err != nil {
			t.Fatalf("ファイルの作成に失敗しました: %v", err)
		}
		r, err := New(dir, "index.html", "application/octet-stream")
		if err != nil {
			t.Fatalf("ドキュメントルートのオープンに失敗しました: %v", err)
		}
		resp := r.Respond(&protocol.Request{Method: "HEAD", Target: "/data.unknown", Proto: protocol.ProtoHTTP11})
		if got, _ := resp.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Content-Typeが一致しません: got %s, want application/octet-stream", got)
		}
	})
}

// TestContentTypeCase は拡張子の大文字小文字の扱いをテストする
func TestContentTypeCase(t *testing.T) {
	root := &Root{defaultType: "application/octet-stream"}
	if got := root.contentType("/var/www/PHOTO.JPG"); got != "image/jpeg" {
		t.Errorf("Content-Typeが一致しません: got %s, want image/jpeg", got)
	}
	if got := root.contentType("/var/www/noext"); got != "application/octet-stream" {
		t.Errorf("Content-Typeが一致しません: got %s, want application/octet-stream", got)
	}
	if got := strings.ToLower(root.contentType("/var/www/a.TXT")); got != "text/plain" {
		t.Errorf("Content-Typeが一致しません: got %s, want text/plain", got)
	}
}

// closeBody は応答本文がファイルの場合に閉じる
func closeBody(resp *protocol.Response) {
	if closer, ok := resp.Body.(io.Closer); ok {
		_ = closer.Close()
	}
}
