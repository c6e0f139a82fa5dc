package websocket

import (
	"net/http"
	"strings"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the connection and streams change notifications.
// ?site=eng,ops limits the stream to those sites. originPatterns is passed to
// the upgrader; nil accepts any origin.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
		if len(originPatterns) == 0 {
			opts.InsecureSkipVerify = true
		}
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			hub.logger.Warn("accept", "error", err)
			return
		}

		client := NewClient(hub, conn, parseSites(r.URL.Query().Get("site")))
		client.Run(r.Context())
	}
}

func parseSites(raw string) []string {
	var sites []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sites = append(sites, s)
		}
	}
	return sites
}
