package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"messagely/internal/security"
)

// Clients never send anything meaningful; this only bounds control frames.
const maxIncomingBytes = 512

// originPolicy is the set of browser origins allowed to open /ws, stored as
// lowercased scheme://host.
type originPolicy map[string]struct{}

func newOriginPolicy(origins []string) originPolicy {
	p := make(originPolicy, len(origins))
	for _, o := range origins {
		if key, ok := originKey(o); ok {
			p[key] = struct{}{}
		}
	}
	return p
}

// originKey reduces an origin or URL to scheme://host.
func originKey(raw string) (string, bool) {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// allows reports whether r carries a permitted Origin header. Requests
// without one are refused.
func (p originPolicy) allows(r *http.Request) bool {
	key, ok := originKey(r.Header.Get("Origin"))
	if !ok {
		return false
	}
	_, ok = p[key]
	return ok
}

// extractToken reads the bearer token from the Authorization header or, for
// browsers, from "Sec-WebSocket-Protocol: bearer, <token>".
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	parts := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// MakeHandler returns the /ws handler. After the origin and token checks pass
// the socket is registered with the hub until the client goes away. The
// stream is server to client only:
//   - message       -> a new message addressed to the caller
//   - message_read  -> the recipient read a message the caller sent
func MakeHandler(hub *Hub, tokens *security.TokenService, allowedOrigins []string, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	origins := newOriginPolicy(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  origins.allows,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !origins.allows(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr := extractToken(r)
		if tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		id, err := tokens.Verify(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("ws upgrade failed", "username", id.Username, "error", err)
			return
		}
		defer conn.Close()

		c := hub.Register(id.Username, conn)
		defer hub.Unregister(c)
		log.Debug("ws connected", "username", id.Username)

		// Clear any deadline inherited from the HTTP server.
		_ = conn.SetReadDeadline(time.Time{})
		conn.SetReadLimit(maxIncomingBytes)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
		log.Debug("ws disconnected", "username", id.Username)
	}
}
