// Package catalog はアプリカタログ（静的JSON）の読み込みを提供する。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/gamehub/internal/model"
)

// ErrCatalogUnavailable はカタログを取得できなかったことを表す。
// I/Oエラー、HTTPエラー、不正なJSON、配列以外のJSONはすべてこのエラーをラップする。
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// DefaultHighlightCount はホーム画面のハイライトに表示するアプリ数。
const DefaultHighlightCount = 8

// Source はカタログの取得元。
type Source interface {
	FetchCatalog(ctx context.Context) ([]model.AppRecord, error)
}

// TextSanitizer はカタログのテキスト項目からマークアップを取り除く。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Decode はカタログJSONを検証してAppRecordのスライスに変換する。
// トップレベルが配列でない場合はErrCatalogUnavailableを返す。
// 配列内のオブジェクトとして解釈できない要素はスキップする。
func Decode(data []byte, sanitizer TextSanitizer) ([]model.AppRecord, error) {
	// 1. JSONとしての妥当性と配列であることを確認
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrCatalogUnavailable)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrCatalogUnavailable)
	}

	// 2. 要素ごとにデコード
	apps := make([]model.AppRecord, 0, len(root.Array()))
	skipped := 0
	root.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			skipped++
			return true
		}
		var app model.AppRecord
		if err := json.Unmarshal([]byte(value.Raw), &app); err != nil {
			skipped++
			return true
		}
		if sanitizer != nil {
			sanitizeApp(&app, sanitizer)
		}
		apps = append(apps, app)
		return true
	})

	if skipped > 0 {
		slog.Warn("カタログの一部の要素を読み込めませんでした",
			slog.Int("skipped", skipped),
			slog.Int("apps_count", len(apps)),
		)
	}

	return apps, nil
}

func sanitizeApp(app *model.AppRecord, s TextSanitizer) {
	app.Title = s.Sanitize(app.Title)
	app.CompanyName = s.Sanitize(app.CompanyName)
	app.Category = s.Sanitize(app.Category)
	app.Description = s.Sanitize(app.Description)
}

// FindByID はIDに一致するアプリを返す。
func FindByID(apps []model.AppRecord, id int) (*model.AppRecord, bool) {
	for i := range apps {
		if apps[i].ID == id {
			app := apps[i]
			return &app, true
		}
	}
	return nil, false
}

// Highlights は先頭からn件のアプリを返す。
func Highlights(apps []model.AppRecord, n int) []model.AppRecord {
	if n < 0 {
		n = 0
	}
	if len(apps) < n {
		n = len(apps)
	}
	return apps[:n]
}

// ParseID はURLパスのIDを整数として解釈する。
// 先頭の空白と符号を許し、続く数字列のみを読む（"12abc" は12）。数字がなければfalseを返す。
func ParseID(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (1<<31)/10 {
			return 0, false
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
