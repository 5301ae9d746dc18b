package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/model"
	"github.com/vmalykh/goalboard/internal/tg"
)

type fakeTransport struct {
	mu      sync.Mutex
	batches chan []tg.Update
	sent    []string
	offsets []int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{batches: make(chan []tg.Update, 16)}
}

func (f *fakeTransport) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]tg.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	f.mu.Unlock()
	select {
	case b := <-f.batches:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func setupBot(t *testing.T) (*Bot, *fakeTransport, *db.Store) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	transport := newFakeTransport()
	return New(transport, store, NewMemorySessionStore()), transport, store
}

func say(t *testing.T, b *Bot, chatID int64, text string) {
	t.Helper()
	require.NoError(t, b.handleMessage(context.Background(), tg.Message{
		Chat: tg.Chat{ID: chatID},
		From: tg.From{Username: "tester"},
		Text: text,
	}))
}

// codeFromReply pulls the verification code out of the bot's greeting.
func codeFromReply(t *testing.T, reply string) string {
	t.Helper()
	i := strings.LastIndex(reply, ": ")
	require.Greater(t, i, 0, "reply should contain a code: %q", reply)
	return strings.TrimSpace(reply[i+2:])
}

// verifiedUser creates an account, links chat chatID to it and returns it.
func verifiedUser(t *testing.T, b *Bot, store *db.Store, transport *fakeTransport, chatID int64, username string) *model.User {
	t.Helper()
	u, err := store.CreateUser(username, "x", "", "", "")
	require.NoError(t, err)

	say(t, b, chatID, "hi")
	code := codeFromReply(t, transport.lastSent())

	ok, err := store.ConsumeVerificationCode(code, u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	return u
}

func writableCategory(t *testing.T, store *db.Store, userID int64, boardTitle, catTitle string) *model.Category {
	t.Helper()
	board, err := store.CreateBoard(boardTitle, userID)
	require.NoError(t, err)
	cat, err := store.CreateCategory(catTitle, board.ID, userID)
	require.NoError(t, err)
	return cat
}

func TestUnverifiedChatGetsFreshCodes(t *testing.T) {
	b, transport, store := setupBot(t)

	say(t, b, 555, "hello")
	first := codeFromReply(t, transport.lastSent())
	require.GreaterOrEqual(t, len(first), 24)

	say(t, b, 555, "/goals")
	second := codeFromReply(t, transport.lastSent())
	require.NotEqual(t, first, second, "every contact reissues a code")

	u, err := store.CreateUser("alice", "x", "", "", "")
	require.NoError(t, err)

	// Only the newest code redeems.
	ok, err := store.ConsumeVerificationCode(first, u.ID)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = store.ConsumeVerificationCode(second, u.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGoalsCommand(t *testing.T) {
	b, transport, store := setupBot(t)
	u := verifiedUser(t, b, store, transport, 1, "alice")

	say(t, b, 1, "/goals")
	require.Contains(t, transport.lastSent(), "no goals yet")

	cat := writableCategory(t, store, u.ID, "work", "inbox")
	g1, err := store.CreateGoal(u.ID, cat.ID, "first", "", model.PriorityLow, nil)
	require.NoError(t, err)
	g2, err := store.CreateGoal(u.ID, cat.ID, "second", "", model.PriorityLow, nil)
	require.NoError(t, err)
	require.NoError(t, store.DeleteGoal(g2.ID))

	say(t, b, 1, "/goals")
	reply := transport.lastSent()
	require.Contains(t, reply, fmt.Sprintf("#%d first", g1.ID))
	require.NotContains(t, reply, "second", "archived goals are hidden")
}

func TestCreateFlow(t *testing.T) {
	b, transport, store := setupBot(t)
	u := verifiedUser(t, b, store, transport, 1, "alice")
	cat := writableCategory(t, store, u.ID, "work", "inbox")

	start := time.Now().UTC()
	say(t, b, 1, "/create")
	require.Contains(t, transport.lastSent(), "#1 inbox")
	sess, ok := b.sessions.Get(1)
	require.True(t, ok)
	require.Equal(t, StateAwaitingCategory, sess.State)

	// Garbage and inaccessible ids keep the state.
	say(t, b, 1, "banana")
	require.Contains(t, transport.lastSent(), "numeric category id")
	say(t, b, 1, "999")
	require.Contains(t, transport.lastSent(), "not found")
	sess, _ = b.sessions.Get(1)
	require.Equal(t, StateAwaitingCategory, sess.State)

	say(t, b, 1, "1")
	require.Contains(t, transport.lastSent(), "goal title")
	sess, _ = b.sessions.Get(1)
	require.Equal(t, StateAwaitingTitle, sess.State)
	require.Equal(t, cat.ID, *sess.Draft.CategoryID)

	say(t, b, 1, "Buy milk")
	require.Contains(t, transport.lastSent(), "created")
	_, ok = b.sessions.Get(1)
	require.False(t, ok, "session cleared after commit")

	goals, err := store.ListGoalsByOwner(u.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	g := goals[0]
	require.Equal(t, "Buy milk", g.Title)
	require.Equal(t, cat.ID, g.CategoryID)
	require.Equal(t, model.StatusToDo, g.Status)
	require.WithinDuration(t, start.Add(7*24*time.Hour), *g.DueDate, time.Minute)
}

func TestCancel(t *testing.T) {
	b, transport, store := setupBot(t)
	u := verifiedUser(t, b, store, transport, 1, "alice")
	writableCategory(t, store, u.ID, "work", "inbox")

	say(t, b, 1, "/cancel")
	require.Contains(t, transport.lastSent(), "Nothing to cancel")

	say(t, b, 1, "/create")
	say(t, b, 1, "/cancel")
	require.Contains(t, transport.lastSent(), "canceled")
	_, ok := b.sessions.Get(1)
	require.False(t, ok)

	// /cancel also bails out of title entry.
	say(t, b, 1, "/create")
	say(t, b, 1, "1")
	say(t, b, 1, "/cancel")
	_, ok = b.sessions.Get(1)
	require.False(t, ok)

	goals, err := store.ListGoalsByOwner(u.ID)
	require.NoError(t, err)
	require.Empty(t, goals)
}

func TestUnknownCommandAndFreeText(t *testing.T) {
	b, transport, store := setupBot(t)
	verifiedUser(t, b, store, transport, 1, "alice")

	say(t, b, 1, "/frobnicate")
	require.Contains(t, transport.lastSent(), "Unknown command")

	before := transport.sentCount()
	say(t, b, 1, "just chatting")
	require.Equal(t, before, transport.sentCount(), "idle free text is ignored")
}

func TestRoleRevokedBeforeCommit(t *testing.T) {
	b, transport, store := setupBot(t)
	owner, err := store.CreateUser("owner", "x", "", "", "")
	require.NoError(t, err)
	board, err := store.CreateBoard("team", owner.ID)
	require.NoError(t, err)
	_, err = store.CreateCategory("inbox", board.ID, owner.ID)
	require.NoError(t, err)

	member := verifiedUser(t, b, store, transport, 2, "member")
	_, err = store.Exec(
		`INSERT INTO board_participants (board_id, user_id, role) VALUES (?, ?, ?)`,
		board.ID, member.ID, model.RoleWriter,
	)
	require.NoError(t, err)

	say(t, b, 2, "/create")
	say(t, b, 2, "1")
	sess, ok := b.sessions.Get(2)
	require.True(t, ok)
	require.Equal(t, StateAwaitingTitle, sess.State)

	// Demote between selection and title entry.
	_, err = store.Exec(
		`UPDATE board_participants SET role = ? WHERE board_id = ? AND user_id = ?`,
		model.RoleReader, board.ID, member.ID,
	)
	require.NoError(t, err)

	say(t, b, 2, "Sneaky goal")
	require.Contains(t, transport.lastSent(), "not created")
	_, ok = b.sessions.Get(2)
	require.False(t, ok, "session cleared on denial")

	goals, err := store.ListGoalsByOwner(member.ID)
	require.NoError(t, err)
	require.Empty(t, goals)
}

func TestRunAdvancesOffsetAfterBatch(t *testing.T) {
	b, transport, _ := setupBot(t)

	transport.batches <- []tg.Update{
		{UpdateID: 41, Message: tg.Message{Chat: tg.Chat{ID: 1}, Text: "hi"}},
		{UpdateID: 42, Message: tg.Message{Chat: tg.Chat{ID: 1}, Text: "hi again"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		for _, o := range transport.offsets {
			if o == 43 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "offset must advance past the handled batch")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// Both messages in the batch were handled in order.
	require.Equal(t, 2, transport.sentCount())
}
