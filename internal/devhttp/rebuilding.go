package devhttp

import "fmt"

// rebuildingPage is the themed placeholder BuildGate serves for non-asset
// GET requests while build_in_progress is true (spec.md §4.7 item 1): a
// small, self-contained HTML page carrying the same live-reload script as
// a normal page, so it replaces itself via the SSE "reload" message the
// moment the in-flight build finishes.
func rebuildingPage(reloadRoute string) string {
	return fmt.Sprintf(rebuildingPageTemplate, RefreshScriptInner(reloadRoute))
}

const rebuildingPageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Rebuilding…</title>
<style>
	body {
		margin: 0;
		display: flex;
		align-items: center;
		justify-content: center;
		height: 100vh;
		font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		background: #0f1115;
		color: #e6e6e6;
	}
	.panel {
		text-align: center;
	}
	.spinner {
		width: 28px;
		height: 28px;
		margin: 0 auto 16px;
		border-radius: 50%%;
		border: 3px solid #2a2d35;
		border-top-color: #6aa6ff;
		animation: spin 0.8s linear infinite;
	}
	@keyframes spin { to { transform: rotate(360deg); } }
</style>
</head>
<body>
<div class="panel">
	<div class="spinner"></div>
	<p>Rebuilding the site…</p>
</div>
<script>%s</script>
</body>
</html>
`
