package publish

import (
	"bytes"
	"html/template"
)

var playerPage = template.Must(template.New("player").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Mini-site {{.ShareID}}</title>
</head>
<body>
<main>
<h1>Mini-site</h1>
<p>Share id: <code>{{.ShareID}}</code></p>
<pre id="manifest">Loading manifest…</pre>
</main>
<script>
fetch("manifest.json", {cache: "no-store"})
  .then(function (r) { if (!r.ok) { throw new Error("HTTP " + r.status); } return r.json(); })
  .then(function (m) { document.getElementById("manifest").textContent = JSON.stringify(m, null, 2); })
  .catch(function (e) { document.getElementById("manifest").textContent = "Failed to load manifest: " + e.message; });
</script>
</body>
</html>
`))

func renderPage(shareID string) ([]byte, error) {
	var buf bytes.Buffer
	if err := playerPage.Execute(&buf, struct{ ShareID string }{shareID}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
