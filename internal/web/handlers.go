package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>probewatch</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 12px; border-bottom: 1px solid #ddd; text-align: left; }
</style>
</head>
<body>
<h1>Observed access points</h1>
<p id="status">{{.Status.Mode}} / {{.Status.Link}}{{if .Status.Address}} / {{.Status.Address}}{{end}}</p>
<table>
<tr><th>SSID</th><th>BSSID</th><th>Channel</th><th>RSSI</th><th>Seen</th><th>Last seen</th></tr>
{{range .Entries}}<tr><td>{{if .SSID}}{{.SSID}}{{else}}<i>hidden</i>{{end}}</td><td>{{.BSSID}}</td><td>{{.Channel}}</td><td>{{.RSSI}} dBm</td><td>{{.Seen}}</td><td>{{.LastSeen.Format "2006-01-02 15:04:05"}}</td></tr>
{{else}}<tr><td colspan="6">No access points recorded yet.</td></tr>
{{end}}</table>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (ev) => {
  const s = JSON.parse(ev.data);
  document.getElementById("status").textContent = s.mode + " / " + s.link + (s.address ? " / " + s.address : "");
};
</script>
</body>
</html>
`))

func (s *Server) handler(inst *instance) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/table", s.handleTable)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleWebSocket(inst, w, r)
	})
	return logRequests(mux)
}

func (s *Server) currentStatus() Status {
	st := s.status()
	if s.table != nil {
		st.Entries = s.table.Len()
	}
	if st.Time.IsZero() {
		st.Time = time.Now()
	}
	return st
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status  Status
		Entries interface{}
	}{Status: s.currentStatus()}
	if s.table != nil {
		data.Entries = s.table.Snapshot()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		logging.Error("Failed to render index", zap.Error(err))
	}
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if s.table == nil {
		writeJSON(w, []struct{}{})
		return
	}
	writeJSON(w, s.table.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.currentStatus())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the raw writer to hijack.
		if r.URL.Path == "/ws" {
			logging.Debug("HTTP request", zap.String("remote_addr", r.RemoteAddr), zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logging.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
