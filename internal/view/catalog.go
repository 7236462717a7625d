package view

import "github.com/hitoshi/gamehub/internal/model"

// HomeParams はホームページのパラメーター。
type HomeParams struct {
	Page
	Highlights []model.AppRecord
	Apps       []model.AppRecord
}

var homeText = `{{define "title"}}Home{{end}}
{{define "content"}}
<section class="banner">
  <h1>We Build <span class="accent">Productive</span> Games</h1>
  <p>Discover, install and play the best games in one place.</p>
</section>

<section class="highlights">
  <h2>Trending Games</h2>
  {{- if .Highlights}}
  <div class="marquee">
    <div class="marquee-track">
      {{- range .Highlights}}{{template "appcard" .}}{{end}}
      {{- range .Highlights}}{{template "appcard" .}}{{end}}
    </div>
  </div>
  {{- else}}
  <div class="catalog-loading"><span class="spinner"></span></div>
  {{- end}}
</section>

<section class="apps">
  <h2>All Games</h2>
  {{- if .Apps}}
  {{template "appgrid" .Apps}}
  {{- else}}
  <p class="empty-state">No apps available right now.</p>
  {{- end}}
</section>
{{end}}
`

// HomeTemplate はバナー、ハイライト、アプリ一覧を表示する。
var HomeTemplate = newPage(homeText)

// AllAppsParams はアプリ一覧ページのパラメーター。
type AllAppsParams struct {
	Page
	Apps []model.AppRecord
}

var allAppsText = `{{define "title"}}Apps{{end}}
{{define "content"}}
<section class="apps">
  <h1>All Apps <span class="count">({{len .Apps}})</span></h1>
  {{- if .Apps}}
  {{template "appgrid" .Apps}}
  {{- else}}
  <p class="empty-state">No apps available right now.</p>
  {{- end}}
</section>
{{end}}
`

// AllAppsTemplate は全アプリを表示する。
var AllAppsTemplate = newPage(allAppsText)

// AppDetailsParams はアプリ詳細ページのパラメーター。Appがnilの場合は「App not found」を表示する。
type AppDetailsParams struct {
	Page
	App *model.AppRecord
}

var appDetailsText = `{{define "title"}}{{with .App}}{{.Title}}{{else}}App not found{{end}}{{end}}
{{define "content"}}
{{- with .App}}
<article class="app-details">
  <div class="app-header">
    <img class="app-image" src="{{.Image}}" alt="{{.Title}}">
    <div class="app-summary">
      <h1>{{.CompanyName}}: {{.Title}}</h1>
      <p class="category">{{.Category}}</p>
      <hr>
      <div class="app-stats">
        <div class="stat"><p>Downloads</p><p class="stat-value">{{.Downloads}}</p></div>
        <div class="stat"><p>Rating</p><p class="stat-value">{{.RatingAvg}}</p></div>
        <div class="stat"><p>Reviews</p><p class="stat-value">{{.Reviews}}</p></div>
      </div>
      <button type="button" class="btn-install">Install Now ({{.Size}} MB)</button>
    </div>
  </div>
  <hr>
  <section class="description">
    <h2>Description</h2>
    <p>{{.Description}}</p>
  </section>
</article>
{{- else}}
<div class="not-found">
  <h1>App not found</h1>
</div>
{{- end}}
{{end}}
`

// AppDetailsTemplate はアプリ詳細を表示する。
var AppDetailsTemplate = newPage(appDetailsText)
