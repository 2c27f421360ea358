package handlers

import (
	"html"

	"github.com/gofiber/fiber/v2"
)

type PageHandler struct {
	title string
}

func NewPageHandler(title string) *PageHandler {
	if title == "" {
		title = "Campus Assistant"
	}
	return &PageHandler{title: html.EscapeString(title)}
}

// Index serves a single-page tester for the text and voice endpoints.
func (h *PageHandler) Index(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>` + h.title + `</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; }
textarea, select, button { font-size: 1rem; margin: .25rem 0; }
textarea { width: 100%; min-height: 4rem; }
pre { background: #f4f4f4; padding: .75rem; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>` + h.title + `</h1>
<label>Language
<select id="lang"><option value="auto">auto</option></select>
</label>
<textarea id="question" placeholder="Ask about admissions, fees, hostels..."></textarea>
<button id="ask">Ask</button>
<button id="rec">Record</button>
<button id="up" disabled>Thumbs up</button>
<button id="down" disabled>Thumbs down</button>
<button id="fwd" disabled>Forward to admin</button>
<pre id="out"></pre>
<audio id="player" controls></audio>
<script>
const out = document.getElementById('out');
const session = 'web-' + Math.random().toString(36).slice(2);
let lastId = null;

fetch('/languages').then(r => r.json()).then(d => {
  const sel = document.getElementById('lang');
  d.languages.forEach(l => {
    const o = document.createElement('option');
    o.value = l.code; o.textContent = l.name + ' (' + l.code + ')';
    sel.appendChild(o);
  });
});

function show(d) {
  out.textContent = JSON.stringify(d, null, 2);
  lastId = d.conversation_id || null;
  ['up', 'down', 'fwd'].forEach(id => document.getElementById(id).disabled = !lastId);
  if (d.audio_base64) {
    document.getElementById('player').src = 'data:audio/' + (d.audio_format || 'wav') + ';base64,' + d.audio_base64;
  }
}

function post(path, body) {
  return fetch(path, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body)}).then(r => r.json());
}

document.getElementById('ask').onclick = () => {
  post('/ask', {
    question: document.getElementById('question').value,
    language: document.getElementById('lang').value,
    session_id: session
  }).then(show);
};
document.getElementById('up').onclick = () => post('/feedback', {conversation_id: lastId, feedback: 1}).then(d => out.textContent += '\n' + d.message);
document.getElementById('down').onclick = () => post('/feedback', {conversation_id: lastId, feedback: -1}).then(d => out.textContent += '\n' + d.message);
document.getElementById('fwd').onclick = () => post('/forward-to-admin', {conversation_id: lastId, additional_context: prompt('Anything to add?') || ''}).then(d => out.textContent += '\n' + d.message);

let rec = null;
document.getElementById('rec').onclick = async () => {
  const btn = document.getElementById('rec');
  if (rec) { rec.stop(); return; }
  const stream = await navigator.mediaDevices.getUserMedia({audio: true});
  const chunks = [];
  rec = new MediaRecorder(stream);
  rec.ondataavailable = e => chunks.push(e.data);
  rec.onstop = () => {
    stream.getTracks().forEach(t => t.stop());
    const form = new FormData();
    form.append('file', new Blob(chunks, {type: rec.mimeType}), 'speech.webm');
    form.append('language', document.getElementById('lang').value);
    form.append('session_id', session);
    rec = null; btn.textContent = 'Record';
    fetch('/voice/chat', {method: 'POST', body: form}).then(r => r.json()).then(show);
  };
  rec.start();
  btn.textContent = 'Stop';
};
</script>
</body>
</html>`)
}
