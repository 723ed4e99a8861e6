package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listou/internal/apperr"
	"listou/internal/auth"
	"listou/internal/database"
	"listou/internal/history"
	"listou/internal/kvstore"
	"listou/internal/metrics"
	"listou/internal/notify"
	"listou/internal/remote"
	"listou/internal/shopping"
)

const (
	password = "secret1"
	waitFor  = 2 * time.Second
	tick     = 10 * time.Millisecond
)

type alerts struct {
	mu  sync.Mutex
	got []notify.Alert
}

func (a *alerts) ForeignAddition(_ context.Context, alert notify.Alert) {
	a.mu.Lock()
	a.got = append(a.got, alert)
	a.mu.Unlock()
}

func (a *alerts) PushMessage(context.Context, notify.Message) {}

func (a *alerts) list() []notify.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]notify.Alert(nil), a.got...)
}

type client struct {
	*Session
	alerts   *alerts
	activity *metrics.Store
	path     string
}

type options struct {
	docs     remote.DocumentStore
	history  history.Store
	path     string
	activity bool
}

func open(t *testing.T, opts options) *client {
	t.Helper()
	if opts.path == "" {
		opts.path = filepath.Join(t.TempDir(), "listou.db")
	}
	db, err := database.NewDB(opts.path, nil)
	require.NoError(t, err)

	kv := kvstore.NewStore(db.SQL, nil)
	svc := auth.NewService(auth.NewUserRepository(db.SQL), auth.NewTokenManager("test-secret", time.Hour), kv, nil)
	hist := opts.history
	if hist == nil {
		hist = history.NewSQLiteStore(db.SQL, nil)
	}

	var activity *metrics.Store
	if opts.activity {
		activity = metrics.NewStore(db.SQL, nil)
	}

	a := &alerts{}
	s, err := Open(context.Background(), Deps{
		KV:       kv,
		Auth:     svc,
		Remote:   opts.docs,
		History:  hist,
		Notifier: a,
		Activity: activity,
	})
	require.NoError(t, err)

	var once sync.Once
	t.Cleanup(func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), waitFor)
			defer cancel()
			_ = s.Close(ctx)
			db.Close()
		})
	})
	return &client{Session: s, alerts: a, activity: activity, path: opts.path}
}

func names(items []shopping.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func item(name string) shopping.Item {
	return shopping.Item{Name: name, Quantity: 1, Unit: "kg", Category: shopping.Mercearia}
}

func pair(t *testing.T, docs remote.DocumentStore, hist history.Store) (*client, *client, string) {
	t.Helper()
	ctx := context.Background()

	alice := open(t, options{docs: docs, history: hist})
	bob := open(t, options{docs: docs, history: hist})
	_, err := alice.Signup(ctx, "alice@example.com", password)
	require.NoError(t, err)
	_, err = bob.Signup(ctx, "bob@example.com", password)
	require.NoError(t, err)

	code, err := alice.CreatePairing(ctx)
	require.NoError(t, err)
	require.NoError(t, alice.AwaitSync(ctx))

	_, err = bob.Pair(ctx, code)
	require.NoError(t, err)
	require.NoError(t, bob.AwaitSync(ctx))
	return alice, bob, code
}

func TestPairedSessionsShareTheList(t *testing.T) {
	ctx := context.Background()
	alice, bob, _ := pair(t, remote.NewMemoryStore(), nil)

	_, err := alice.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"Arroz"}, names(bob.List().Items()))
	}, waitFor, tick)
	assert.Equal(t, "alice", bob.List().Items()[0].AddedBy)

	// The first item lands on an empty list and does not alert.
	assert.Empty(t, bob.alerts.list())

	_, err = alice.Add(ctx, item("Feijão"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(bob.alerts.list()) == 1
	}, waitFor, tick)
	assert.Equal(t, notify.Alert{Attributor: "alice", ItemName: "Feijão"}, bob.alerts.list()[0])
	assert.Equal(t, []string{"Arroz", "Feijão"}, names(bob.List().Items()))

	_, err = bob.Add(ctx, item("Leite"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(alice.alerts.list()) == 1
	}, waitFor, tick)
	assert.Equal(t, notify.Alert{Attributor: "bob", ItemName: "Leite"}, alice.alerts.list()[0])
	assert.Equal(t, []string{"Arroz", "Feijão", "Leite"}, names(alice.List().Items()))

	// Neither side is alerted for its own additions.
	assert.Len(t, bob.alerts.list(), 1)
}

func TestRemoteListWinsOnPairing(t *testing.T) {
	ctx := context.Background()
	docs := remote.NewMemoryStore()

	alice := open(t, options{docs: docs})
	bob := open(t, options{docs: docs})
	_, err := alice.Signup(ctx, "alice@example.com", password)
	require.NoError(t, err)
	_, err = bob.Signup(ctx, "bob@example.com", password)
	require.NoError(t, err)

	_, err = alice.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	_, err = bob.Add(ctx, item("Sabão"))
	require.NoError(t, err)

	code, err := alice.CreatePairing(ctx)
	require.NoError(t, err)
	require.NoError(t, alice.Close(ctx))
	doc, ok := docs.Document(code)
	require.True(t, ok)
	assert.Equal(t, []string{"Arroz"}, names(doc.Items))

	_, err = bob.Pair(ctx, code)
	require.NoError(t, err)
	require.NoError(t, bob.AwaitSync(ctx))
	assert.Equal(t, []string{"Arroz"}, names(bob.List().Items()))
}

func TestDisconnectStopsSharing(t *testing.T) {
	ctx := context.Background()
	docs := remote.NewMemoryStore()
	alice, bob, code := pair(t, docs, nil)

	_, err := alice.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bob.List().Len() == 1 }, waitFor, tick)

	require.NoError(t, bob.Disconnect(ctx))
	assert.Empty(t, bob.PairingCode())
	assert.False(t, bob.Syncing())
	assert.Equal(t, 1, docs.Watchers(code))

	_, err = alice.Add(ctx, item("Feijão"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		doc, _ := docs.Document(code)
		return len(doc.Items) == 2
	}, waitFor, tick)

	assert.Never(t, func() bool { return bob.List().Len() != 1 }, 100*time.Millisecond, tick)

	// Local edits after leaving stay local.
	_, err = bob.Add(ctx, item("Leite"))
	require.NoError(t, err)
	doc, _ := docs.Document(code)
	assert.Equal(t, []string{"Arroz", "Feijão"}, names(doc.Items))
}

func TestLogoutStopsSharing(t *testing.T) {
	ctx := context.Background()
	docs := remote.NewMemoryStore()
	_, bob, code := pair(t, docs, nil)

	require.NoError(t, bob.Logout(ctx))
	assert.False(t, bob.Syncing())
	assert.Equal(t, code, bob.PairingCode())
	assert.Equal(t, 1, docs.Watchers(code))

	_, err := bob.Login(ctx, "bob@example.com", password)
	require.NoError(t, err)
	require.NoError(t, bob.AwaitSync(ctx))
	assert.True(t, bob.Syncing())
}

func TestPairRejectsInvalidCode(t *testing.T) {
	s := open(t, options{docs: remote.NewMemoryStore()})

	_, err := s.Pair(context.Background(), "ab-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, s.PairingCode())
}

func TestPairNormalizesCode(t *testing.T) {
	s := open(t, options{docs: remote.NewMemoryStore()})

	code, err := s.Pair(context.Background(), " abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)
	assert.Equal(t, "ABC123", s.PairingCode())
}

func TestCreatePairingRequiresLogin(t *testing.T) {
	s := open(t, options{docs: remote.NewMemoryStore()})

	_, err := s.CreatePairing(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestAddAttributesItems(t *testing.T) {
	ctx := context.Background()
	s := open(t, options{})

	anon, err := s.Add(ctx, shopping.Item{Name: "Arroz", Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, anon.AddedBy)
	assert.Equal(t, shopping.DefaultUnit, anon.Unit)
	assert.Equal(t, shopping.DefaultCategory, anon.Category)

	_, err = s.Signup(ctx, "carol@example.com", password)
	require.NoError(t, err)
	named, err := s.Add(ctx, item("Feijão"))
	require.NoError(t, err)
	assert.Equal(t, "carol", named.AddedBy)

	basket, err := s.AddBasket(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, basket)
	for _, b := range basket {
		assert.Equal(t, "carol", b.AddedBy)
	}
}

func TestCompleteSavesHistoryAndClears(t *testing.T) {
	ctx := context.Background()
	s := open(t, options{})

	_, err := s.Signup(ctx, "carol@example.com", password)
	require.NoError(t, err)
	a, err := s.Add(ctx, shopping.Item{Name: "Arroz", Quantity: 2, Unit: "kg", Category: shopping.Mercearia, Price: shopping.Float(5)})
	require.NoError(t, err)
	b, err := s.Add(ctx, item("Sal"))
	require.NoError(t, err)

	_, err = s.Complete(ctx)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 2, s.List().Len())

	for _, id := range []string{a.ID, b.ID} {
		_, err = s.List().ToggleBought(ctx, id)
		require.NoError(t, err)
	}

	entry, err := s.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.TotalItems)
	assert.Equal(t, 10.0, entry.TotalPrice)
	assert.Equal(t, "carol", entry.SavedBy)
	assert.Zero(t, s.List().Len())

	require.Eventually(t, func() bool {
		entries := s.History().Entries()
		return len(entries) == 1 && entries[0].ID == entry.ID
	}, waitFor, tick)
}

func TestCompleteRequiresLogin(t *testing.T) {
	ctx := context.Background()
	s := open(t, options{})

	it, err := s.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	_, err = s.List().ToggleBought(ctx, it.ID)
	require.NoError(t, err)

	_, err = s.Complete(ctx)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, 1, s.List().Len())
}

func TestPairSharesHistory(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	alice, bob, code := pair(t, remote.NewRedisStore(rdb, nil), history.NewRedisStore(rdb, nil))

	it, err := alice.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	_, err = alice.List().ToggleBought(ctx, it.ID)
	require.NoError(t, err)
	entry, err := alice.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, code, entry.CasalID)

	require.Eventually(t, func() bool {
		entries := bob.History().Entries()
		return len(entries) == 1 && entries[0].ID == entry.ID
	}, waitFor, tick)

	// The clear that follows completion reaches the partner as well.
	require.Eventually(t, func() bool { return bob.List().Len() == 0 }, waitFor, tick)
}

func TestSessionRestoresState(t *testing.T) {
	ctx := context.Background()
	docs := remote.NewMemoryStore()

	first := open(t, options{docs: docs})
	_, err := first.Signup(ctx, "dave@example.com", password)
	require.NoError(t, err)
	code, err := first.CreatePairing(ctx)
	require.NoError(t, err)
	_, err = first.Add(ctx, item("Café"))
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	again := open(t, options{docs: docs, path: first.path})
	id, ok := again.Identity()
	require.True(t, ok)
	assert.Equal(t, "dave@example.com", id.Email)
	assert.Equal(t, code, again.PairingCode())
	require.NoError(t, again.AwaitSync(ctx))
	assert.Equal(t, []string{"Café"}, names(again.List().Items()))
}

func TestLocalOnlyWithoutRemote(t *testing.T) {
	ctx := context.Background()
	s := open(t, options{})

	_, err := s.Signup(ctx, "erin@example.com", password)
	require.NoError(t, err)
	_, err = s.Pair(ctx, "ABC123")
	require.NoError(t, err)

	assert.False(t, s.Syncing())
	assert.NoError(t, s.AwaitSync(ctx))
	assert.NoError(t, s.SyncError())
}

func TestActivityIsRecorded(t *testing.T) {
	ctx := context.Background()
	s := open(t, options{activity: true})

	_, err := s.Signup(ctx, "frank@example.com", password)
	require.NoError(t, err)
	it, err := s.Add(ctx, item("Arroz"))
	require.NoError(t, err)
	_, err = s.List().ToggleBought(ctx, it.ID)
	require.NoError(t, err)
	_, err = s.Complete(ctx)
	require.NoError(t, err)

	days, err := s.activity.GetDailyActivity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, days, 1)
	// Add, toggle and the clear after completion.
	assert.Equal(t, 3, days[0].LocalChanges)
	assert.Equal(t, 1, days[0].Completed)
	assert.Zero(t, days[0].RemoteApplied)
}
