package web

import (
	"fmt"
	"html"
	"strings"

	"github.com/kstaniek/bbsyncer/internal/session"
)

// e HTML-escapes a value for safe inline embedding, the same job the
// Python original's html.escape did at every interpolation site.
func e(v any) string {
	return html.EscapeString(fmt.Sprint(v))
}

func renderSessions(sessions []session.Session) string {
	if len(sessions) == 0 {
		return `<div class="empty-state"><p>No sessions yet. Plug in a Betaflight FC to start syncing.</p></div>`
	}

	var b strings.Builder
	currentFC := ""
	open := false
	for _, sess := range sessions {
		if sess.FCDir != currentFC {
			if open {
				b.WriteString("</div></details>")
			}
			currentFC = sess.FCDir
			open = true
			fmt.Fprintf(&b, "<details class=\"fc-group\" open><summary>%s</summary><div>", e(sess.FCDir))
		}

		m := sess.Manifest
		fileMB := float64(m.File.Bytes) / 1048576
		erasedClass, erasedText := "no-erase", "Not erased"
		if m.EraseCompleted {
			erasedClass, erasedText = "erased", "Erased"
		}

		var shaHTML string
		if m.File.SHA256 != "" {
			short := m.File.SHA256
			if len(short) > 12 {
				short = short[:12]
			}
			shaHTML = fmt.Sprintf(`<span title="%s">SHA-256: %s&hellip;</span>`, e(m.File.SHA256), e(short))
		}

		var bblHTML string
		if sess.BBLPath != "" {
			bblHTML = fmt.Sprintf(`<a class="btn btn-download" href="/download/%s/%s">Download .bbl</a>`,
				e(sess.SessionID), session.RawFlashFilename)
		}

		fmt.Fprintf(&b, `<div class="session-card">`+
			`<div class="session-header">`+
			`<span class="session-title">%s</span>`+
			`<span class="badge %s">%s</span>`+
			`</div>`+
			`<div class="session-meta"><span>%.1f MB</span><span>API %s</span>%s</div>`+
			`<div class="session-actions">%s`+
			`<a class="btn btn-manifest" href="/download/%s/%s">Manifest</a>`+
			`<button class="btn-delete" onclick="deleteSession('%s', this)">Delete from Pi</button>`+
			`</div></div>`,
			e(strings.ReplaceAll(sess.SessionDir, "_", " ")),
			erasedClass, erasedText,
			fileMB, e(m.FC.APIVersion), shaHTML,
			bblHTML,
			e(sess.SessionID), session.ManifestFilename,
			e(sess.SessionID),
		)
	}
	if open {
		b.WriteString("</div></details>")
	}
	return b.String()
}

func renderIndex(sessions []session.Session, usedGB, freeGB float64) string {
	totalGB := usedGB + freeGB
	pct := 0
	if totalGB > 0 {
		pct = int(usedGB / totalGB * 100)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Betaflight Blackbox Syncer</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin:0; background:#0f0f12; color:#e0e0e8; }
header { background:#1a1a24; border-bottom:1px solid #2e2e40; padding:14px 20px; display:flex; align-items:center; justify-content:space-between; }
main { max-width:700px; margin:0 auto; padding:16px; }
.disk-info { background:#1a1a24; border:1px solid #2e2e40; border-radius:8px; padding:12px 16px; margin-bottom:16px; font-size:0.85rem; color:#a0a0b8; }
.disk-bar-track { background:#2e2e40; border-radius:4px; height:6px; margin-top:6px; overflow:hidden; }
.disk-bar-fill { background:#4060d0; height:100%%; border-radius:4px; }
.session-card { background:#1a1a24; border:1px solid #2e2e40; border-radius:8px; padding:12px 14px; margin-top:8px; }
.session-header { display:flex; justify-content:space-between; gap:8px; }
.badge { padding:2px 8px; border-radius:8px; font-size:0.7rem; background:#2e2e40; }
.badge.erased { background:#1a3a1a; color:#60d060; }
.badge.no-erase { background:#3a2a10; color:#c08030; }
.session-actions { display:flex; gap:8px; margin-top:6px; }
button, a.btn { padding:6px 14px; border-radius:6px; font-size:0.8rem; border:none; text-decoration:none; }
.btn-download { background:#2a4a80; color:#a0c8ff; }
.btn-manifest { background:#2e2e40; color:#a0a0b8; }
.btn-delete { background:#4a1a1a; color:#ff8080; }
</style>
</head>
<body>
<header><h1>Betaflight Blackbox Syncer</h1><span id="status-badge">Idle</span></header>
<main>
<div class="disk-info">
  <span>Pi SD card: <strong>%.1f GB used</strong> / %.1f GB free</span>
  <div class="disk-bar-track"><div class="disk-bar-fill" style="width:%d%%"></div></div>
</div>
%s
</main>
<script>
function updateStatus() {
  fetch('/status').then(r => r.json()).then(data => {
    const badge = document.getElementById('status-badge');
    const state = data.state || 'idle';
    const progress = data.progress || 0;
    badge.textContent = state + (state === 'syncing' && progress > 0 ? ' ' + progress + '%%' : '');
  }).catch(() => {});
}
updateStatus();
setInterval(updateStatus, 3000);

function deleteSession(sessionId, btn) {
  if (!confirm('Delete this session from the Pi?')) return;
  btn.disabled = true;
  fetch('/sessions/' + sessionId, { method: 'DELETE' })
    .then(r => r.json())
    .then(data => {
      if (data.deleted) {
        const card = btn.closest('.session-card');
        card.remove();
      } else {
        btn.disabled = false;
      }
    })
    .catch(() => { btn.disabled = false; });
}
</script>
</body>
</html>`, usedGB, freeGB, pct, renderSessions(sessions))
}
