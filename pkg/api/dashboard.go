package api

import "net/http"

// handleDashboard serves the single-page dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>sink-hole</title>
<style>
body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
h1 { color: #e66; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
td, th { border: 1px solid #444; padding: 0.3rem 0.8rem; text-align: left; }
pre { background: #1a1a1a; padding: 1rem; overflow-x: auto; max-height: 30rem; }
textarea { width: 100%; background: #1a1a1a; color: #ddd; border: 1px solid #444; }
button { margin-top: 0.3rem; }
</style>
</head>
<body>
<h1>sink-hole</h1>
<table id="stats">
<tr><th>Total queries</th><td id="total">-</td></tr>
<tr><th>Blocked queries</th><td id="blocked">-</td></tr>
<tr><th>Blocklist size</th><td id="blsize">-</td></tr>
</table>
<h2>Allowlist</h2>
<textarea id="allow" rows="4" placeholder="one domain per line"></textarea>
<button onclick="submitList('allowlist', 'allow')">Replace allowlist</button>
<h2>Denylist</h2>
<textarea id="deny" rows="4" placeholder="one domain per line"></textarea>
<button onclick="submitList('denylist', 'deny')">Replace denylist</button>
<h2>Recent queries</h2>
<pre id="logs">loading...</pre>
<script>
async function refresh() {
  const stats = await (await fetch('/api/stats')).json();
  document.getElementById('total').textContent = stats.total_queries;
  document.getElementById('blocked').textContent = stats.blocked_queries;
  document.getElementById('blsize').textContent = stats.blocklist_size;
  document.getElementById('allow').value = stats.allowlist.join('\n');
  document.getElementById('deny').value = stats.denylist.join('\n');
  const logs = await (await fetch('/api/logs')).json();
  document.getElementById('logs').textContent = logs.logs.join('\n');
}
async function submitList(list, id) {
  const domains = document.getElementById(id).value.split('\n').map(d => d.trim()).filter(Boolean);
  await fetch('/api/' + list, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({domains})
  });
  refresh();
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
