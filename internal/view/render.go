package view

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
)

// Render はテンプレートをバッファに実行してからレスポンスに書き込む。
// 実行に失敗した場合は途中までのHTMLを送らずに500を返す。
func Render(w http.ResponseWriter, tmpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", tmpl.Name()),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
