// Package reconcile decides how a shared list delivered by the remote mirror supersedes the
// local copy.
//
// The remote document always wins. Before accepting it, the reconciler looks for a single item
// appended by someone else: the remote list is longer than the local one and its last item is
// attributed to another participant. Removals, edits, reorderings and multiple simultaneous
// additions by a partner are not detected.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"listou/internal/logger"
	"listou/internal/notify"
	"listou/internal/shopping"
)

// Local is the side of the list store the reconciler needs.
type Local interface {
	Items() []shopping.Item
	Replace(ctx context.Context, items []shopping.Item)
}

// Outcome reports what Apply did.
type Outcome struct {
	// Replaced is false when the remote list equalled the local one.
	Replaced bool
	// Alert is set when a foreign addition was announced.
	Alert *notify.Alert
}

// Reconciler applies remote documents to the local store.
type Reconciler struct {
	local    Local
	notifier notify.Notifier
	self     func() string
	log      *zap.Logger
}

// New creates a Reconciler. self returns the local user's display name at the time of each update.
func New(local Local, notifier notify.Notifier, self func() string, log *zap.Logger) *Reconciler {
	if self == nil {
		self = func() string { return "" }
	}
	return &Reconciler{local: local, notifier: notifier, self: self, log: logger.OrNop(log)}
}

// Apply reconciles one delivered document.
func (r *Reconciler) Apply(ctx context.Context, remote []shopping.Item) Outcome {
	prev := r.local.Items()
	var out Outcome

	if alert, ok := ForeignAddition(prev, remote, r.self()); ok {
		out.Alert = &alert
		if r.notifier != nil {
			r.notifier.ForeignAddition(ctx, alert)
		}
	}

	if shopping.Equal(prev, remote) {
		return out
	}

	r.local.Replace(ctx, remote)
	out.Replaced = true
	r.log.Debug("accepted shared list", zap.Int("before", len(prev)), zap.Int("after", len(remote)))
	return out
}

// ForeignAddition reports the item a partner appended, if the update looks like one.
func ForeignAddition(prev, remote []shopping.Item, self string) (notify.Alert, bool) {
	if len(prev) == 0 || len(remote) <= len(prev) {
		return notify.Alert{}, false
	}
	last := remote[len(remote)-1]
	if last.AddedBy == "" || last.AddedBy == self {
		return notify.Alert{}, false
	}
	return notify.Alert{Attributor: last.AddedBy, ItemName: last.Name}, true
}
