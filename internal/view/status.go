package view

var loadingText = `{{define "title"}}Loading{{end}}
{{define "content"}}
<div class="page-loading" aria-busy="true">
  <span class="spinner"></span>
</div>
{{end}}
{{define "scripts"}}
<script>
(function () {
  var reloaded = false;
  var polling = false;
  function settle(state) {
    if (!reloaded && state && state.loading === false) {
      reloaded = true;
      window.location.reload();
    }
  }
  function startPolling() {
    if (!polling && !reloaded) {
      polling = true;
      poll();
    }
  }
  function poll() {
    fetch("/api/session", {credentials: "same-origin", cache: "no-store"})
      .then(function (res) { return res.json(); })
      .then(settle)
      .catch(function () {})
      .finally(function () { if (!reloaded) { setTimeout(poll, 1000); } });
  }
  try {
    var scheme = window.location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + window.location.host + "/ws/session");
    ws.onmessage = function (ev) { settle(JSON.parse(ev.data)); };
    ws.onerror = startPolling;
    ws.onclose = startPolling;
  } catch (e) {
    startPolling();
  }
})();
</script>
{{end}}
`

// LoadingTemplate は初期解決が終わるまで表示するローディングページ。
// セッション状態の変化を受け取るとページを再読み込みする。
var LoadingTemplate = newPage(loadingText)

var notFoundText = `{{define "title"}}Not Found{{end}}
{{define "content"}}
<div class="not-found">
  <h1>404</h1>
  <p>not found</p>
  <a href="/">Back to Home</a>
</div>
{{end}}
`

// NotFoundTemplate はルートが存在しない場合のページ。
var NotFoundTemplate = newPage(notFoundText)
