package docroot

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"kura/internal/protocol"
)

// 解決失敗の分類
var (
	// ErrForbidden はドキュメントルート外への要求や権限のない要求
	ErrForbidden = errors.New("ドキュメントルート外の要求です")

	// ErrNotFound は対象ファイルまたはインデックスファイルの欠如
	ErrNotFound = errors.New("ファイルが見つかりません")
)

// ResolvedPath はドキュメントルート配下であることが保証された絶対パス
type ResolvedPath string

// Root は配信対象のドキュメントルート
type Root struct {
	dir         string // シンボリックリンク解決済みの絶対パス
	indexFile   string // ディレクトリ要求時に補うファイル名
	defaultType string // 拡張子が未知の場合のContent-Type
}

// New はドキュメントルートを開く
// 起動時に一度だけ呼び、ディレクトリの存在とパスの正規化を済ませておく
func New(dir, indexFile, defaultType string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルートの絶対パス化に失敗: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルートの解決に失敗: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントルートの確認に失敗: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ドキュメントルートがディレクトリではありません: %s", dir)
	}

	return &Root{
		dir:         resolved,
		indexFile:   indexFile,
		defaultType: defaultType,
	}, nil
}

// Dir は解決済みのドキュメントルートを返す
func (r *Root) Dir() string {
	return r.dir
}

// Resolve はリクエストターゲットをドキュメントルート配下の実パスへ解決する
//
// ルート外へ出る要求（.. の多用・シンボリックリンク経由・絶対URL形式など）は
// ErrForbiddenを返し、存在しないファイルはErrNotFoundを返す。
// 対象がディレクトリの場合はインデックスファイルを補う。
func (r *Root) Resolve(target string) (ResolvedPath, error) {
	// クエリとフラグメントは解決対象から外す
	reqPath := target
	if i := strings.IndexAny(reqPath, "?#"); i >= 0 {
		reqPath = reqPath[:i]
	}

	// ルートに符号化されたパスのみ受理する（絶対URL形式や*は拒否）
	if !strings.HasPrefix(reqPath, "/") {
		return "", fmt.Errorf("%w: %q", ErrForbidden, target)
	}

	decoded, err := url.PathUnescape(reqPath)
	if err != nil {
		return "", fmt.Errorf("%w: 不正なパーセントエスケープ: %q", ErrForbidden, target)
	}
	if strings.ContainsRune(decoded, 0) {
		return "", fmt.Errorf("%w: NULバイトを含んでいます", ErrForbidden)
	}

	// 字句的にルートの上へ出ようとした時点で拒否する
	// （正規化で打ち消してしまうと403ではなく404になってしまう）
	depth := 0
	for _, seg := range strings.Split(decoded, "/") {
		switch seg {
		case "", ".":
		case "..":
			if depth--; depth < 0 {
				return "", fmt.Errorf("%w: %q", ErrForbidden, target)
			}
		default:
			depth++
		}
	}

	fsPath := filepath.Join(r.dir, filepath.FromSlash(path.Clean(decoded)))

	// ルート内のシンボリックリンクがルート外を指すことがあるため、
	// リンク解決後のパスで改めてルート配下かを確認する
	resolved, err := r.evalUnderRoot(fsPath)
	if err != nil {
		return "", err
	}

	// ディレクトリにはインデックスファイルを補う
	info, err := os.Stat(string(resolved))
	if err != nil {
		return "", classifyStatError(err)
	}
	if info.IsDir() {
		return r.evalUnderRoot(filepath.Join(string(resolved), r.indexFile))
	}

	return resolved, nil
}

// evalUnderRoot はシンボリックリンクを解決し、結果がルート配下であることを確かめる
func (r *Root) evalUnderRoot(fsPath string) (ResolvedPath, error) {
	resolved, err := filepath.EvalSymlinks(fsPath)
	if err != nil {
		return "", classifyStatError(err)
	}
	if resolved != r.dir && !strings.HasPrefix(resolved, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: リンク先がルート外です", ErrForbidden)
	}
	return ResolvedPath(resolved), nil
}

// classifyStatError はファイルシステムのエラーを解決失敗の分類へ変換する
func classifyStatError(err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	default:
		// ELOOPなどの異常もルート外の構造を漏らさないようForbidden扱いにする
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
}

// Respond はリクエストに対する応答を組み立てる
//
// 対応メソッドの確認 → パス解決 → stat → openの順に進み、
// どの失敗も整形済みのエラー応答へ変換する。GETでは本文を
// ファイルストリームのまま応答に載せ、HEADではstatのみで済ませる。
func (r *Root) Respond(req *protocol.Request) *protocol.Response {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		resp := protocol.NewErrorResponse(http.StatusMethodNotAllowed)
		resp.AddHeader("Allow", "GET, HEAD")
		return resp
	}

	resolved, err := r.Resolve(req.Target)
	if err != nil {
		return errorResponse(err)
	}

	info, err := os.Stat(string(resolved))
	if err != nil {
		return errorResponse(classifyStatError(err))
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		// 解決後の競合（差し替えなど）で通常ファイルでなくなった場合
		return protocol.NewErrorResponse(http.StatusNotFound)
	}

	resp := protocol.NewResponse(http.StatusOK)
	resp.AddHeader("Content-Type", r.contentType(string(resolved)))
	resp.ContentLength = info.Size()

	if req.Method == http.MethodGet {
		file, err := os.Open(string(resolved))
		if err != nil {
			if os.IsPermission(err) {
				return protocol.NewErrorResponse(http.StatusForbidden)
			}
			if os.IsNotExist(err) {
				return protocol.NewErrorResponse(http.StatusNotFound)
			}
			log.Printf("ファイルのオープンに失敗しました: %s: %v", resolved, err)
			return protocol.NewErrorResponse(http.StatusInternalServerError)
		}
		resp.Body = file
	}

	return resp
}

// errorResponse は解決失敗をステータスコード付きの応答へ変換する
func errorResponse(err error) *protocol.Response {
	switch {
	case errors.Is(err, ErrForbidden):
		return protocol.NewErrorResponse(http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		return protocol.NewErrorResponse(http.StatusNotFound)
	default:
		log.Printf("パス解決で予期しないエラー: %v", err)
		return protocol.NewErrorResponse(http.StatusInternalServerError)
	}
}

// contentType は拡張子からContent-Typeを求める
func (r *Root) contentType(fsPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fsPath), "."))
	if mimeType, ok := defaultMimeTypes[ext]; ok {
		return mimeType
	}
	return r.defaultType
}
