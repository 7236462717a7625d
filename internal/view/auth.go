package view

// LoginParams はログインページのパラメーター。
type LoginParams struct {
	Page
	Email  string
	From   string
	Error  string
	Notice string
}

var loginText = `{{define "title"}}Login{{end}}
{{define "content"}}
<div class="auth-card">
  <h1>Login to your account</h1>
  {{- if .Notice}}
  <p class="notice" role="status">{{.Notice}}</p>
  {{- end}}
  <form method="POST" action="/auth/login">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <input type="hidden" name="from" value="{{.From}}">
    <label for="email">Email</label>
    <input type="email" name="email" id="email" value="{{.Email}}" placeholder="Email" required>
    <label for="password">Password</label>
    <input type="password" name="password" id="password" placeholder="Password" required>
    {{- if .Error}}
    <p class="form-error" role="alert">{{.Error}}</p>
    {{- end}}
    <button type="submit" class="btn-primary">Login</button>
  </form>
  <p>Don't have an account? <a href="/auth/registration">Register</a></p>
</div>
{{end}}
`

// LoginTemplate はログインフォームを表示する。
var LoginTemplate = newPage(loginText)

// RegistrationParams は登録ページのパラメーター。
type RegistrationParams struct {
	Page
	Name      string
	PhotoURL  string
	Email     string
	NameError string
	Error     string
}

var registrationText = `{{define "title"}}Register{{end}}
{{define "content"}}
<div class="auth-card">
  <h1>Register your account</h1>
  <form method="POST" action="/auth/registration">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <label for="name">Name</label>
    <input type="text" name="name" id="name" value="{{.Name}}" placeholder="Enter your name" required>
    {{- if .NameError}}
    <p class="form-error" role="alert">{{.NameError}}</p>
    {{- end}}
    <label for="photoURL">Photo URL</label>
    <input type="url" name="photoURL" id="photoURL" value="{{.PhotoURL}}" placeholder="Enter photo URL (optional)">
    <label for="email">Email</label>
    <input type="email" name="email" id="email" value="{{.Email}}" placeholder="Email" required>
    <label for="password">Password</label>
    <input type="password" name="password" id="password" placeholder="Password (minimum 6 characters)" required>
    {{- if .Error}}
    <p class="form-error" role="alert">{{.Error}}</p>
    {{- end}}
    <button type="submit" class="btn-primary">Register</button>
  </form>
  <p>Already have an account? <a href="/auth/login">Login</a></p>
</div>
{{end}}
`

// RegistrationTemplate は登録フォームを表示する。
var RegistrationTemplate = newPage(registrationText)
