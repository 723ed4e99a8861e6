package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"listou/internal/apperr"
	"listou/internal/auth"
	"listou/internal/history"
	"listou/internal/kvstore"
	"listou/internal/liststore"
	"listou/internal/logger"
	"listou/internal/metrics"
	"listou/internal/notify"
	"listou/internal/pairing"
	"listou/internal/reconcile"
	"listou/internal/remote"
	"listou/internal/shopping"
)

// Deps holds the session's dependencies.
type Deps struct {
	KV   *kvstore.Store
	Auth *auth.Service
	// Remote is the shared document store; nil keeps the session local-only.
	Remote   remote.DocumentStore
	History  history.Store
	Notifier notify.Notifier
	// Activity records list events when set.
	Activity *metrics.Store
	Log      *zap.Logger
}

// Session is one running client: the local list, its remote mirror, the reconciler between
// them and the history log. Open it once and Close it on exit.
type Session struct {
	kv       *kvstore.Store
	auth     *auth.Service
	list     *liststore.Store
	mirror   *remote.Mirror
	history  *history.Log
	activity *metrics.Store
	log      *zap.Logger

	// scopeMu serializes rescoping; mu guards the fields below and is never held while a
	// subscription is being stopped.
	scopeMu  sync.Mutex
	mu       sync.Mutex
	identity *auth.Identity
	code     string
}

// Open restores the persisted list, session and pairing code and starts syncing.
func Open(ctx context.Context, deps Deps) (*Session, error) {
	if deps.KV == nil || deps.Auth == nil || deps.History == nil {
		return nil, fmt.Errorf("failed to open session: kv, auth and history are required")
	}
	log := logger.OrNop(deps.Log)
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}

	s := &Session{
		kv:       deps.KV,
		auth:     deps.Auth,
		activity: deps.Activity,
		log:      log,
		history:  history.NewLog(deps.History, log),
	}
	s.list = liststore.New(deps.KV.LoadItems(ctx), deps.KV, log)

	if s.activity != nil {
		s.list.OnChange(func(ch liststore.Change) {
			kind := metrics.KindLocalChange
			if ch.Origin == liststore.OriginRemote {
				kind = metrics.KindRemoteApplied
			}
			s.record(kind, len(ch.Items))
		})
		notifier = notify.Fanout{notifier, notify.Func{
			OnAlert: func(context.Context, notify.Alert) {
				s.record(metrics.KindForeignAddition, 1)
			},
		}}
	}

	if id, ok := deps.Auth.Current(ctx); ok {
		s.identity = &id
	}
	s.code = deps.KV.CasalID(ctx)

	if deps.Remote != nil {
		rec := reconcile.New(s.list, notifier, s.DisplayName, log)
		s.mirror = remote.NewMirror(deps.Remote, func(ctx context.Context, items []shopping.Item) {
			rec.Apply(ctx, items)
		}, log)
		s.list.SetPusher(s.mirror.Push)
	} else if s.code != "" {
		log.Warn("pairing code set but no remote store configured, staying local-only", zap.String("code", s.code))
	}

	s.rescope()
	return s, nil
}

// List is the local list store.
func (s *Session) List() *liststore.Store {
	return s.list
}

// History is the history log of the session.
func (s *Session) History() *history.Log {
	return s.history
}

// Identity returns the logged-in user.
func (s *Session) Identity() (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

// DisplayName is the name attributed to the user's additions, or "" when logged out.
func (s *Session) DisplayName() string {
	id, ok := s.Identity()
	if !ok {
		return ""
	}
	return id.DisplayName()
}

// PairingCode returns the current pairing code, or "" in local-only mode.
func (s *Session) PairingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// HistoryScope is the pairing code when one is set, the user otherwise.
func (s *Session) HistoryScope() history.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var scope history.Scope
	scope.CasalID = s.code
	if s.identity != nil {
		scope.UserID = s.identity.ID
	}
	return scope
}

// Syncing reports whether the shared list subscription is live.
func (s *Session) Syncing() bool {
	return s.mirror != nil && s.mirror.Active()
}

// SyncError returns why the shared list subscription died, if it did.
func (s *Session) SyncError() error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Err()
}

// rescope points the mirror and the history subscription at the current pairing code and user.
// Both are stopped and awaited before the new scope is opened.
func (s *Session) rescope() {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()

	s.mu.Lock()
	code := s.code
	authenticated := s.identity != nil
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.SetScope(code, authenticated)
	}
	if authenticated {
		s.history.Subscribe(s.HistoryScope())
	} else {
		s.history.Subscribe(history.Scope{})
	}
}

// Add appends an item attributed to the current user. Unit and category get defaults.
func (s *Session) Add(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	return s.list.Add(ctx, s.prepare(item))
}

// AddBasket appends the basic basket.
func (s *Session) AddBasket(ctx context.Context) ([]shopping.Item, error) {
	basket := shopping.BasicBasket()
	for i := range basket {
		basket[i] = s.prepare(basket[i])
	}
	return s.list.AddMany(ctx, basket)
}

func (s *Session) prepare(item shopping.Item) shopping.Item {
	if item.Unit == "" {
		item.Unit = shopping.DefaultUnit
	}
	if item.Category == "" {
		item.Category = shopping.DefaultCategory
	}
	if item.AddedBy == "" {
		item.AddedBy = s.DisplayName()
	}
	return item
}

// Pair joins the shared list of code.
func (s *Session) Pair(ctx context.Context, code string) (string, error) {
	code, err := pairing.Validate(code)
	if err != nil {
		return "", err
	}
	if err := s.kv.SetCasalID(ctx, code); err != nil {
		return "", fmt.Errorf("failed to store pairing code: %w", err)
	}

	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
	s.rescope()

	s.log.Info("paired", zap.String("code", code))
	return code, nil
}

// CreatePairing generates a code, pairs with it and publishes the current list under it.
func (s *Session) CreatePairing(ctx context.Context) (string, error) {
	if _, ok := s.Identity(); !ok {
		return "", apperr.Auth("Login required to pair")
	}
	code, err := pairing.Generate()
	if err != nil {
		return "", err
	}
	if _, err := s.Pair(ctx, code); err != nil {
		return "", err
	}
	if s.mirror != nil {
		s.mirror.Push(s.list.Items())
	}
	return code, nil
}

// Disconnect leaves the shared list. The local copy is kept.
func (s *Session) Disconnect(ctx context.Context) error {
	if err := s.kv.SetCasalID(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear pairing code: %w", err)
	}

	s.mu.Lock()
	s.code = ""
	s.mu.Unlock()
	s.rescope()

	s.log.Info("unpaired")
	return nil
}

// Signup creates an account and logs it in.
func (s *Session) Signup(ctx context.Context, email, password string) (auth.Identity, error) {
	id, err := s.auth.Signup(ctx, email, password)
	if err != nil {
		return auth.Identity{}, err
	}
	s.setIdentity(&id)
	return id, nil
}

// Login logs an existing account in.
func (s *Session) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	id, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return auth.Identity{}, err
	}
	s.setIdentity(&id)
	return id, nil
}

// Logout forgets the user. The shared list subscription and history stop.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.auth.Logout(ctx); err != nil {
		return err
	}
	s.setIdentity(nil)
	return nil
}

func (s *Session) setIdentity(id *auth.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
	s.rescope()
}

// Complete saves the finished list to history and clears it.
func (s *Session) Complete(ctx context.Context) (history.Entry, error) {
	id, ok := s.Identity()
	if !ok {
		return history.Entry{}, apperr.Auth("Login required to save history")
	}
	items := s.list.Items()
	if !shopping.Complete(items) {
		return history.Entry{}, apperr.Validation("the list is not complete yet", nil)
	}

	entry, err := s.history.Append(ctx, history.Draft{
		Items:   items,
		SavedBy: id.DisplayName(),
		CasalID: s.PairingCode(),
		OwnerID: id.ID,
	})
	if err != nil {
		return history.Entry{}, err
	}
	s.record(metrics.KindCompleted, entry.TotalItems)
	if err := s.list.Clear(ctx); err != nil {
		return entry, err
	}
	return entry, nil
}

func (s *Session) record(kind metrics.Kind, items int) {
	if s.activity == nil {
		return
	}
	s.activity.Observe(context.Background(), metrics.Event{Kind: kind, Code: s.PairingCode(), Items: items})
}

// AwaitSync waits until the shared list has been received once, so one-shot commands act on
// the current document. It is a no-op in local-only mode.
func (s *Session) AwaitSync(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.AwaitFirst(ctx)
}

// Close waits for queued pushes (bounded by ctx), then stops every subscription.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if s.mirror != nil {
		if ferr := s.mirror.Flush(ctx); ferr != nil {
			err = fmt.Errorf("failed to flush shared list: %w", ferr)
		}
		s.mirror.Close()
	}
	s.history.Close()
	return err
}
