// Package bot runs the Telegram side of goalboard: a single-threaded
// long-poll loop, per-chat verification, and the multi-step /create
// conversation.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/model"
	"github.com/vmalykh/goalboard/internal/tg"
)

const goalDueIn = 7 * 24 * time.Hour

// Transport is the chat network seen by the bot. *tg.Client satisfies
// it; tests substitute a fake.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]tg.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Bot wires the transport, the store and the session store together.
// Everything it needs lives here; there is no package-level state.
type Bot struct {
	transport   Transport
	store       *db.Store
	guard       *access.Guard
	sessions    SessionStore
	pollTimeout time.Duration
}

func New(transport Transport, store *db.Store, sessions SessionStore) *Bot {
	return &Bot{
		transport:   transport,
		store:       store,
		guard:       access.NewGuard(store),
		sessions:    sessions,
		pollTimeout: 30 * time.Second,
	}
}

// SetPollTimeout overrides the long-poll timeout (default 30s).
func (b *Bot) SetPollTimeout(d time.Duration) {
	b.pollTimeout = d
}

// Run polls for updates until the context is canceled. Updates are
// processed strictly in order and the offset advances past a batch only
// once the whole batch is handled, so a crash mid-batch re-delivers the
// batch rather than dropping messages. A failure while handling one
// message is logged and the loop moves on.
func (b *Bot) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := b.transport.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			log.Printf("bot: get updates: %v (retrying in %s)", err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		bo.Reset()

		for _, u := range updates {
			b.handleUpdate(ctx, u)
		}
		if len(updates) > 0 {
			offset = updates[len(updates)-1].UpdateID + 1
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u tg.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bot: panic handling update %d: %v", u.UpdateID, r)
		}
	}()

	if u.Message.Chat.ID == 0 {
		// Not a message update (edited message, callback, ...).
		return
	}
	if err := b.handleMessage(ctx, u.Message); err != nil {
		log.Printf("bot: update %d: %v", u.UpdateID, err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	if err := b.transport.SendMessage(ctx, chatID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg tg.Message) error {
	chatID := msg.Chat.ID

	tu, created, err := b.store.GetOrCreateTgUser(chatID, msg.From.Username)
	if err != nil {
		return err
	}

	if !tu.Verified() {
		code, err := b.store.IssueVerificationCode(tu.ID)
		if err != nil {
			return err
		}
		greeting := "Please verify your account."
		if created {
			greeting = "Hello! Let's link this chat to your goalboard account."
		}
		return b.reply(ctx, chatID, fmt.Sprintf("%s\nYour verification code: %s", greeting, code))
	}
	userID := *tu.UserID

	text := strings.TrimSpace(msg.Text)
	if sess, ok := b.sessions.Get(chatID); ok {
		return b.continueDraft(ctx, chatID, userID, text, sess)
	}

	switch cmd, _, _ := strings.Cut(text, " "); cmd {
	case "/goals":
		return b.listGoals(ctx, chatID, userID)
	case "/create":
		return b.startDraft(ctx, chatID, userID)
	case "/cancel":
		return b.reply(ctx, chatID, "Nothing to cancel.")
	default:
		if strings.HasPrefix(text, "/") {
			return b.reply(ctx, chatID, "Unknown command. Try /goals, /create or /cancel.")
		}
		// Free text while idle is ignored.
		return nil
	}
}

func (b *Bot) listGoals(ctx context.Context, chatID, userID int64) error {
	goals, err := b.store.ListGoalsByOwner(userID)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		return b.reply(ctx, chatID, "You have no goals yet. Use /create to add one.")
	}
	lines := make([]string, len(goals))
	for i, g := range goals {
		lines[i] = fmt.Sprintf("#%d %s", g.ID, g.Title)
	}
	return b.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (b *Bot) startDraft(ctx context.Context, chatID, userID int64) error {
	cats, err := b.store.ListWritableCategories(userID)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return b.reply(ctx, chatID, "You have no categories you can create goals in.")
	}

	lines := make([]string, 0, len(cats)+1)
	lines = append(lines, "Select a category by id:")
	for _, c := range cats {
		lines = append(lines, fmt.Sprintf("#%d %s", c.ID, c.Title))
	}

	b.sessions.Set(chatID, &Session{State: StateAwaitingCategory})
	return b.reply(ctx, chatID, strings.Join(lines, "\n"))
}

func (b *Bot) continueDraft(ctx context.Context, chatID, userID int64, text string, sess *Session) error {
	if text == "/cancel" {
		b.sessions.Delete(chatID)
		return b.reply(ctx, chatID, "Operation canceled.")
	}

	switch sess.State {
	case StateAwaitingCategory:
		return b.selectCategory(ctx, chatID, userID, text, sess)
	case StateAwaitingTitle:
		return b.commitDraft(ctx, chatID, userID, text, sess)
	default:
		// Unreachable unless the store is corrupted; reset the chat.
		b.sessions.Delete(chatID)
		return b.reply(ctx, chatID, "Something went wrong, please start over.")
	}
}

func (b *Bot) selectCategory(ctx context.Context, chatID, userID int64, text string, sess *Session) error {
	catID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return b.reply(ctx, chatID, "Please send a numeric category id, or /cancel.")
	}

	// The listing already filtered, but the role may have changed since;
	// check again before accepting the selection.
	cat, err := b.store.GetCategory(catID)
	if err == nil {
		err = b.guard.CheckWrite(userID, cat.BoardID)
	}
	if err != nil {
		if errors.Is(err, access.ErrNotFound) || errors.Is(err, access.ErrForbidden) {
			return b.reply(ctx, chatID, "Category not found, or you cannot create goals in it. Pick another id or /cancel.")
		}
		return err
	}

	sess.Draft.CategoryID = &catID
	sess.State = StateAwaitingTitle
	b.sessions.Set(chatID, sess)
	return b.reply(ctx, chatID, "Now send the goal title.")
}

func (b *Bot) commitDraft(ctx context.Context, chatID, userID int64, text string, sess *Session) error {
	if text == "" {
		return b.reply(ctx, chatID, "The title cannot be empty. Send a title, or /cancel.")
	}
	sess.Draft.Title = &text
	if !sess.Draft.Complete() {
		b.sessions.Delete(chatID)
		return b.reply(ctx, chatID, "Something went wrong, please start over.")
	}

	// The flow is done either way; the session never outlives the commit.
	b.sessions.Delete(chatID)

	due := time.Now().UTC().Add(goalDueIn)
	goal, err := b.store.CreateGoal(userID, *sess.Draft.CategoryID, *sess.Draft.Title, "", model.PriorityMedium, &due)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) || errors.Is(err, access.ErrForbidden) {
			return b.reply(ctx, chatID, "Access to that category was revoked, the goal was not created.")
		}
		if errors.Is(err, access.ErrValidation) {
			return b.reply(ctx, chatID, "The goal could not be created: "+err.Error())
		}
		return err
	}
	return b.reply(ctx, chatID, fmt.Sprintf("Goal #%d %q created, due %s.", goal.ID, goal.Title, goal.DueDate.Format("2006-01-02")))
}
