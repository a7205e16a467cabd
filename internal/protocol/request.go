package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// 対応するHTTPバージョントークン
const (
	ProtoHTTP10 = "HTTP/1.0"
	ProtoHTTP11 = "HTTP/1.1"
)

// リクエストライン手前の空行はクライアントの前回リクエストの残りとして
// この行数まで読み飛ばす
const maxLeadingBlankLines = 4

// HeaderField は受信順を保持したヘッダの1項目
type HeaderField struct {
	Name  string
	Value string
}

// Header は受信順・重複を保持するヘッダ集合
type Header []HeaderField

// Get は大文字小文字を区別せずに最初の値を返す
func (h Header) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values は大文字小文字を区別せずに全ての値を受信順で返す
func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Request は解析済みのHTTPリクエスト
// 解析後は変更しない
type Request struct {
	Method     string // リクエストメソッド（トークンそのまま）
	Target     string // リクエストターゲット（パーセントデコード前）
	Proto      string // ProtoHTTP10 または ProtoHTTP11
	Header     Header // 受信順のヘッダ
	Body       []byte // Content-Lengthがある場合のみ非nil
	RemoteAddr string // クライアントアドレス
}

// KeepAlive はこのリクエストの後もコネクションを維持すべきかを返す
// HTTP/1.1は既定で維持、HTTP/1.0は明示されたときだけ維持する
// 重複するConnectionヘッダも全て見て、closeトークンが1つでもあれば維持しない
func (r *Request) KeepAlive() bool {
	var keepAlive bool
	for _, value := range r.Header.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(token)) {
			case "close":
				return false
			case "keep-alive":
				keepAlive = true
			}
		}
	}
	if keepAlive {
		return true
	}
	return r.Proto == ProtoHTTP11
}

// Limits はリクエスト解析の上限値
type Limits struct {
	MaxRequestLine int // リクエストラインの最大バイト数
	MaxHeaderCount int // ヘッダ行数の上限
	MaxHeaderBytes int // リクエストラインを含むヘッダ部全体の最大バイト数
	MaxBodyBytes   int // Content-Lengthで受け付ける最大ボディサイズ
}

// DefaultLimits は既定の上限値を返す
func DefaultLimits() Limits {
	return Limits{
		MaxRequestLine: 8 << 10,
		MaxHeaderCount: 100,
		MaxHeaderBytes: 64 << 10,
		MaxBodyBytes:   1 << 20,
	}
}

// Parser はコネクション上のバイト列からリクエストを順に読み取る
// コネクションごとに生成し、リクエスト間でも他のコネクションとも共有しない
type Parser struct {
	br         *bufio.Reader
	limits     Limits
	remoteAddr string
	consumed   int // 現在のリクエストで読み取ったバイト数
}

// NewParser は新しいParserを作成する
func NewParser(r io.Reader, limits Limits, remoteAddr string) *Parser {
	return &Parser{
		br:         bufio.NewReaderSize(r, 4<<10),
		limits:     limits,
		remoteAddr: remoteAddr,
	}
}

// ReadRequest は次のリクエストを読み取って返す
//
// 戻り値のエラー：
//   - io.EOF: 1バイトも読む前にクライアントが切断した（正常なクローズ）
//   - ErrIdleTimeout: 1バイトも読む前にタイムアウトした
//   - その他はerrors.goの分類に従う
func (p *Parser) ReadRequest() (*Request, error) {
	p.consumed = 0

	// リクエストライン（手前の空行は読み飛ばす）
	line, err := p.readLine(p.limits.MaxRequestLine)
	if err != nil {
		return nil, err
	}
	for blanks := 0; len(line) == 0; blanks++ {
		if blanks >= maxLeadingBlankLines {
			return nil, fmt.Errorf("%w: 空行が続いています", ErrBadRequestLine)
		}
		p.consumed = 0 // 空行はリクエストの一部として数えない
		if line, err = p.readLine(p.limits.MaxRequestLine); err != nil {
			return nil, err
		}
	}

	req := &Request{RemoteAddr: p.remoteAddr}
	if err := parseRequestLine(line, req); err != nil {
		return nil, err
	}

	// ヘッダ部（空行まで）
	if req.Header, err = p.readHeader(); err != nil {
		return nil, err
	}

	// ボディ（Content-Lengthがある場合のみ）
	if err := p.readBody(req); err != nil {
		return nil, err
	}

	return req, nil
}

// parseRequestLine はリクエストラインを分解して検証する
func parseRequestLine(line []byte, req *Request) error {
	fields := strings.Split(string(line), " ")
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return fmt.Errorf("%w: %q", ErrBadRequestLine, string(line))
	}
	if fields[2] != ProtoHTTP10 && fields[2] != ProtoHTTP11 {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, fields[2])
	}
	req.Method, req.Target, req.Proto = fields[0], fields[1], fields[2]
	return nil
}

// readHeader は空行までのヘッダ行を読み取る
// リクエストラインを含む累計バイト数でヘッダ部全体の上限を守る
func (p *Parser) readHeader() (Header, error) {
	var header Header
	for {
		line, err := p.readLine(p.limits.MaxHeaderBytes)
		if err != nil {
			return nil, err
		}
		if p.consumed > p.limits.MaxHeaderBytes {
			return nil, fmt.Errorf("%w: ヘッダ部が%dバイトを超えています", ErrHeaderTooLarge, p.limits.MaxHeaderBytes)
		}
		if len(line) == 0 {
			return header, nil
		}
		if len(header) >= p.limits.MaxHeaderCount {
			return nil, fmt.Errorf("%w: ヘッダ行数が%dを超えています", ErrHeaderTooLarge, p.limits.MaxHeaderCount)
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, string(line))
		}
		name := string(line[:colon])
		if strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: ヘッダ名に空白があります: %q", ErrMalformedHeader, name)
		}
		value := strings.Trim(string(line[colon+1:]), " \t")
		header = append(header, HeaderField{Name: name, Value: value})
	}
}

// readBody はContent-Lengthに従ってボディを読み取る
// chunked転送は非対応として拒否する
func (p *Parser) readBody(req *Request) error {
	if _, ok := req.Header.Get("Transfer-Encoding"); ok {
		return fmt.Errorf("%w: Transfer-Encodingは非対応です", ErrUnsupportedBody)
	}

	values := req.Header.Values("Content-Length")
	if len(values) == 0 {
		return nil // Content-Lengthがなければボディなし
	}

	// 重複するContent-Lengthは同値のときのみ受理する
	for _, v := range values[1:] {
		if v != values[0] {
			return fmt.Errorf("%w: Content-Lengthが一致しません", ErrMalformedHeader)
		}
	}
	length, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil || length < 0 {
		return fmt.Errorf("%w: 不正なContent-Length: %q", ErrMalformedHeader, values[0])
	}
	if length == 0 {
		return nil
	}
	if length > p.limits.MaxBodyBytes {
		return fmt.Errorf("%w: ボディが%dバイトを超えています", ErrUnsupportedBody, p.limits.MaxBodyBytes)
	}

	// keep-aliveの境界を保つため、対象外メソッドのボディも読み切る
	body := make([]byte, length)
	if _, err := io.ReadFull(p.br, body); err != nil {
		return p.classifyReadError(err)
	}
	req.Body = body
	return nil
}

// readLine はCRLF（またはLF）終端の1行を読み取る
// 行の終端を除いたバイト列を返し、limitを超えた行はErrHeaderTooLargeとする
func (p *Parser) readLine(limit int) ([]byte, error) {
	var line []byte
	for {
		frag, err := p.br.ReadSlice('\n')
		line = append(line, frag...)
		p.consumed += len(frag)
		if len(line) > limit {
			return nil, fmt.Errorf("%w: 行が%dバイトを超えています", ErrHeaderTooLarge, limit)
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue // 行がバッファより長いので続きを読む
		}
		return nil, p.classifyReadError(err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

// classifyReadError は下位の読み込みエラーを解析失敗の分類へ変換する
func (p *Parser) classifyReadError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		if p.consumed == 0 {
			return ErrIdleTimeout
		}
		return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		if p.consumed == 0 {
			return io.EOF // データなしの切断は正常なクローズ
		}
		return fmt.Errorf("%w: %v", ErrIncomplete, err)
	}
	return fmt.Errorf("%w: %v", ErrIncomplete, err)
}
