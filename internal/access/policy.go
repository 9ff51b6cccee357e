// Package access decides whether a verified identity may touch a given
// message or user record. Decisions are pure; callers fetch the resource and
// must not perform any write when a check fails.
package access

import (
	"messagely/internal/domain"
	"messagely/internal/metrics"
)

// Operation names, also used as metric labels.
const (
	OpViewRoster  = "view_roster"
	OpViewUser    = "view_user"
	OpViewMessage = "view_message"
	OpMarkRead    = "mark_read"
	OpSend        = "send_message"
)

func decide(op string, allowed bool) error {
	if allowed {
		metrics.AccessDecisionsTotal.WithLabelValues(op, "allow").Inc()
		return nil
	}
	metrics.AccessDecisionsTotal.WithLabelValues(op, "deny").Inc()
	return domain.ErrForbidden
}

func authenticated(who domain.Identity) bool {
	return who.Username != ""
}

// ViewRoster allows any authenticated identity.
func ViewRoster(who domain.Identity) error {
	return decide(OpViewRoster, authenticated(who))
}

// Send allows any authenticated identity. The sender is always the caller.
func Send(who domain.Identity) error {
	return decide(OpSend, authenticated(who))
}

// ViewUser is self-access only. It covers the profile and both message lists.
func ViewUser(who domain.Identity, target string) error {
	return decide(OpViewUser, authenticated(who) && who.Username == target)
}

// ViewMessage allows the sender or the recipient.
func ViewMessage(who domain.Identity, from, to string) error {
	return decide(OpViewMessage, authenticated(who) && (who.Username == from || who.Username == to))
}

// MarkRead allows the recipient only.
func MarkRead(who domain.Identity, to string) error {
	return decide(OpMarkRead, authenticated(who) && who.Username == to)
}

// Deny records a denial for a resource that could not be resolved, so a
// missing resource and a refused one look the same to the caller.
func Deny(op string) error {
	return decide(op, false)
}
