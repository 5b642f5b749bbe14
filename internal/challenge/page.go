package challenge

import (
	"html/template"
	"io"
)

// PageData fills the challenge page.
type PageData struct {
	Title     string
	Token     string
	Nonce     string
	VerifyURL string // absolute or root-relative URL of the verify endpoint
	SafeURL   string // shown to clients without JavaScript
}

var pageTemplate = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex, nofollow">
<title>{{if .Title}}{{.Title}}{{else}}One moment{{end}}</title>
<style>
body{font-family:system-ui,-apple-system,sans-serif;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0;background:#fafafa;color:#333}
.box{text-align:center;padding:2rem}
.spinner{width:32px;height:32px;border:3px solid #ddd;border-top-color:#555;border-radius:50%;margin:0 auto 1rem;animation:spin 1s linear infinite}
@keyframes spin{to{transform:rotate(360deg)}}
</style>
</head>
<body>
<div class="box">
<div class="spinner"></div>
<p>Checking your browser&hellip;</p>
<noscript><p>JavaScript is required. <a href="{{.SafeURL}}">Continue</a></p></noscript>
</div>
<script>
(async function () {
  var nonce = {{.Nonce}};
  var digest = await crypto.subtle.digest("SHA-256", new TextEncoder().encode(nonce));
  var proof = Array.from(new Uint8Array(digest)).map(function (b) {
    return b.toString(16).padStart(2, "0");
  }).join("");
  var url = {{.VerifyURL}} + "?token=" + encodeURIComponent({{.Token}}) + "&proof=" + proof;
  window.location.replace(url);
})();
</script>
</body>
</html>
`))

// RenderPage writes the challenge page.
func RenderPage(w io.Writer, data PageData) error {
	return pageTemplate.Execute(w, data)
}
