package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vmalykh/goalboard/internal/access"
	"github.com/vmalykh/goalboard/internal/model"
)

func TestCreateGoalRoleCheck(t *testing.T) {
	s := setupTestStore(t)
	owner := mustUser(t, s, "owner")
	writer := mustUser(t, s, "writer")
	reader := mustUser(t, s, "reader")
	outsider := mustUser(t, s, "outsider")

	board := mustBoard(t, s, "work", owner.ID)
	addParticipant(t, s, board.ID, writer.ID, model.RoleWriter)
	addParticipant(t, s, board.ID, reader.ID, model.RoleReader)
	cat := mustCategory(t, s, "inbox", board.ID, owner.ID)

	_, err := s.CreateGoal(writer.ID, cat.ID, "ok", "", model.PriorityHigh, nil)
	require.NoError(t, err)

	_, err = s.CreateGoal(reader.ID, cat.ID, "nope", "", model.PriorityLow, nil)
	require.ErrorIs(t, err, access.ErrForbidden)

	// An outsider cannot even learn the category exists.
	_, err = s.CreateGoal(outsider.ID, cat.ID, "nope", "", model.PriorityLow, nil)
	require.ErrorIs(t, err, access.ErrNotFound)

	_, err = s.CreateGoal(owner.ID, 9999, "nope", "", model.PriorityLow, nil)
	require.ErrorIs(t, err, access.ErrNotFound)

	_, err = s.CreateGoal(owner.ID, cat.ID, "", "", model.PriorityLow, nil)
	require.ErrorIs(t, err, access.ErrValidation)
}

func TestCreateGoalDefaults(t *testing.T) {
	s := setupTestStore(t)
	owner := mustUser(t, s, "owner")
	board := mustBoard(t, s, "work", owner.ID)
	cat := mustCategory(t, s, "inbox", board.ID, owner.ID)

	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	g, err := s.CreateGoal(owner.ID, cat.ID, "Buy milk", "", "", &due)
	require.NoError(t, err)
	require.Equal(t, model.StatusToDo, g.Status)
	require.Equal(t, model.PriorityMedium, g.Priority)
	require.WithinDuration(t, due, *g.DueDate, time.Second)
}

func TestListGoalsFilters(t *testing.T) {
	s := setupTestStore(t)
	owner := mustUser(t, s, "owner")
	board := mustBoard(t, s, "work", owner.ID)
	inbox := mustCategory(t, s, "inbox", board.ID, owner.ID)
	later := mustCategory(t, s, "later", board.ID, owner.ID)

	a := mustGoal(t, s, owner.ID, inbox.ID, "alpha")
	mustGoal(t, s, owner.ID, later.ID, "beta")
	g, err := s.CreateGoal(owner.ID, inbox.ID, "gamma", "", model.PriorityCritical, nil)
	require.NoError(t, err)

	all, err := s.ListGoals(owner.ID, GoalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byCat, err := s.ListGoals(owner.ID, GoalFilter{CategoryID: &inbox.ID})
	require.NoError(t, err)
	require.Len(t, byCat, 2)

	crit := model.PriorityCritical
	byPrio, err := s.ListGoals(owner.ID, GoalFilter{Priority: &crit})
	require.NoError(t, err)
	require.Len(t, byPrio, 1)
	require.Equal(t, g.ID, byPrio[0].ID)

	// A stranger sees nothing at all.
	stranger := mustUser(t, s, "stranger")
	none, err := s.ListGoals(stranger.ID, GoalFilter{})
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, s.DeleteGoal(a.ID))
	all, err = s.ListGoals(owner.ID, GoalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestListGoalsByOwnerOrder(t *testing.T) {
	s := setupTestStore(t)
	owner := mustUser(t, s, "owner")
	board := mustBoard(t, s, "work", owner.ID)
	cat := mustCategory(t, s, "inbox", board.ID, owner.ID)

	first := mustGoal(t, s, owner.ID, cat.ID, "zebra")
	second := mustGoal(t, s, owner.ID, cat.ID, "apple")

	goals, err := s.ListGoalsByOwner(owner.ID)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	// Creation order, not title order.
	require.Equal(t, first.ID, goals[0].ID)
	require.Equal(t, second.ID, goals[1].ID)
}

func TestListWritableCategories(t *testing.T) {
	s := setupTestStore(t)
	owner := mustUser(t, s, "owner")
	member := mustUser(t, s, "member")

	mine := mustBoard(t, s, "mine", owner.ID)
	shared := mustBoard(t, s, "shared", owner.ID)
	readOnly := mustBoard(t, s, "read-only", owner.ID)
	addParticipant(t, s, shared.ID, member.ID, model.RoleWriter)
	addParticipant(t, s, readOnly.ID, member.ID, model.RoleReader)

	mustCategory(t, s, "private", mine.ID, owner.ID)
	writable := mustCategory(t, s, "team", shared.ID, owner.ID)
	mustCategory(t, s, "announcements", readOnly.ID, owner.ID)
	gone := mustCategory(t, s, "old", shared.ID, owner.ID)
	require.NoError(t, s.DeleteCategory(gone.ID))

	cats, err := s.ListWritableCategories(member.ID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Equal(t, writable.ID, cats[0].ID)
}
