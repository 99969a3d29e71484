package devhttp

import "fmt"

// RefreshScriptInner is the teacher's refreshScriptTemplate
// (wave/refresh.go) rewritten around EventSource instead of a raw
// WebSocket, since spec.md §4.7 pins the wire transport to SSE. The
// scroll-position-restore-on-reload behavior is preserved unchanged.
func RefreshScriptInner(route string) string {
	return fmt.Sprintf(refreshScriptTemplate, route)
}

const refreshScriptTemplate = `
(function() {
	const scrollYKey = "__bengal_dev__scrollY";
	const scrollY = sessionStorage.getItem(scrollYKey);
	if (scrollY) {
		setTimeout(() => {
			sessionStorage.removeItem(scrollYKey);
			window.scrollTo({ top: scrollY, behavior: "smooth" });
		}, 150);
	}

	const es = new EventSource(%q);

	es.onmessage = (e) => {
		let decision;
		try {
			decision = JSON.parse(e.data);
		} catch (err) {
			return;
		}
		if (decision.action === "css-only") {
			document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
				const url = new URL(link.href);
				url.searchParams.set("_bengal_reload", Date.now());
				link.href = url.toString();
			});
		} else if (decision.action === "reload") {
			const y = window.scrollY;
			if (y > 0) {
				sessionStorage.setItem(scrollYKey, y);
			}
			window.location.reload();
		}
	};

	es.onerror = () => {
		es.close();
		setTimeout(() => window.location.reload(), 1000);
	};

	window.addEventListener("beforeunload", () => es.close());
})();
`
