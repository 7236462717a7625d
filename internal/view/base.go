// Package view はサーバーサイドでレンダリングするHTMLページを提供する。
package view

import (
	"html/template"

	"github.com/hitoshi/gamehub/internal/model"
)

// Page は全ページ共通のパラメーター（ナビゲーションバーとCSRFトークン）。
type Page struct {
	User      *model.UserRecord
	CSRFToken string
}

var baseText = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{block "title" .}}Home{{end}} - Game Hub</title>
    <link rel="stylesheet" href="/static/css/app.css">
    {{block "head" .}}{{end}}
  </head>
  <body>
    <nav class="navbar">
      <div class="navbar-start">
        <a class="brand" href="/">GAME HUB</a>
      </div>
      <ul class="navbar-links">
        <li><a href="/">Home</a></li>
        <li><a href="/allapps">Apps</a></li>
        {{- if not .User}}
        <li><a href="/auth/login">Login</a></li>
        {{- end}}
      </ul>
      <div class="navbar-end">
        {{- with .User}}
        <div class="user-chip">
          {{- if .PhotoURL}}
          <img class="avatar" src="{{.PhotoURL}}" alt="{{.Label}}">
          {{- end}}
          <span class="user-label">{{.Label}}</span>
          <form method="POST" action="/auth/logout">
            <input type="hidden" name="csrf_token" value="{{$.CSRFToken}}">
            <button type="submit" class="btn-logout" title="Logout">Logout</button>
          </form>
        </div>
        {{- end}}
      </div>
    </nav>

    <main class="container">
      {{block "content" .}}{{end}}
    </main>

    <footer class="footer">
      <p>Game Hub</p>
    </footer>
    {{block "scripts" .}}{{end}}
  </body>
</html>
{{define "appcard"}}
<a class="app-card" href="/appDetails/{{.ID}}">
  <img src="{{.Image}}" alt="{{.Title}}" loading="lazy">
  <h3>{{.Title}}</h3>
  <div class="app-card-stats">
    <span class="downloads">{{.Downloads}}</span>
    <span class="rating">{{.RatingAvg}}</span>
  </div>
</a>
{{end}}
{{define "appgrid"}}
<div class="app-grid">
  {{- range .}}
  {{template "appcard" .}}
  {{- end}}
</div>
{{end}}
`

// newPage はベースレイアウトにページ固有のブロックを重ねたテンプレートを生成する。
func newPage(text string) *template.Template {
	return template.Must(template.Must(template.New("base").Parse(baseText)).Parse(text))
}
