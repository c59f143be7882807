package card

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/zulandar/boardcore/internal/activity"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/db"
	"github.com/zulandar/boardcore/internal/models"
	"github.com/zulandar/boardcore/internal/store"
	"gorm.io/gorm"
)

const actor = "alice"

type fixture struct {
	svc  *Service
	db   *gorm.DB
	hook *test.Hook
	// ids maps card titles to ids.
	ids map[string]string
}

// newFixture seeds board b1 with lists l1 and l2, and board b2 with x1.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gormDB, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rows := []interface{}{
		&models.Board{ID: "b1", Name: "Ops"},
		&models.Board{ID: "b2", Name: "Other"},
		&models.List{ID: "l1", BoardID: "b1", Name: "Todo", Position: 0},
		&models.List{ID: "l2", BoardID: "b1", Name: "Doing", Position: 1},
		&models.List{ID: "x1", BoardID: "b2", Name: "Elsewhere", Position: 0},
	}
	for _, r := range rows {
		if err := gormDB.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}

	logger, hook := test.NewNullLogger()
	st := store.New(gormDB, store.Options{Logger: logger})
	svc := NewService(st, append([]Option{WithLogger(logger)}, opts...)...)
	return &fixture{svc: svc, db: gormDB, hook: hook, ids: make(map[string]string)}
}

func (f *fixture) create(t *testing.T, listID, title string, deps ...string) *models.Card {
	t.Helper()
	c, err := f.svc.CreateCard(context.Background(), listID, CreateFields{Title: title}, deps, actor)
	if err != nil {
		t.Fatalf("CreateCard(%s): %v", title, err)
	}
	f.ids[title] = c.ID
	return c
}

func (f *fixture) id(title string) string { return f.ids[title] }

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

// order returns the titles of listID's cards by position and fails unless
// the positions are exactly 0..n-1.
func (f *fixture) order(t *testing.T, listID string) []string {
	t.Helper()
	var cards []models.Card
	if err := f.db.Where("list_id = ?", listID).Order("position").Find(&cards).Error; err != nil {
		t.Fatalf("read list %s: %v", listID, err)
	}
	titles := make([]string, len(cards))
	for i, c := range cards {
		if c.Position != i {
			t.Fatalf("list %s: card %s at position %d, want %d", listID, c.Title, c.Position, i)
		}
		titles[i] = c.Title
	}
	return titles
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func (f *fixture) activities(t *testing.T, cardID string) []string {
	t.Helper()
	entries, err := activity.List(context.Background(), f.db, activity.Filter{CardID: cardID})
	if err != nil {
		t.Fatalf("activity.List: %v", err)
	}
	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return types
}

func TestCreateCard_Appends(t *testing.T) {
	f := newFixture(t)
	f.create(t, "l1", "A")
	f.create(t, "l1", "B")
	c := f.create(t, "l1", "C")

	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("order = %v, want [A B C]", got)
	}
	if c.Position != 2 {
		t.Errorf("Position = %d, want 2", c.Position)
	}
	if c.List == nil || c.List.Board == nil || c.List.Board.ID != "b1" {
		t.Errorf("card not joined with list and board: %+v", c.List)
	}
	if c.CreatedBy != actor || c.Status != models.StatusTodo || c.Priority != models.PriorityMedium {
		t.Errorf("card = %+v", c)
	}
	if got := f.activities(t, c.ID); !reflect.DeepEqual(got, []string{activity.TypeCreated}) {
		t.Errorf("activities = %v", got)
	}
}

func TestCreateCard_OwnedRows(t *testing.T) {
	f := newFixture(t)
	if err := f.db.Create(&models.Label{ID: "bug", BoardID: "b1", Name: "bug"}).Error; err != nil {
		t.Fatal(err)
	}
	if err := f.db.Create(&models.Label{ID: "foreign", BoardID: "b2", Name: "x"}).Error; err != nil {
		t.Fatal(err)
	}

	c, err := f.svc.CreateCard(context.Background(), "l1", CreateFields{
		Title:     "  Triage  ",
		Assignees: []string{"bob", "carol", "bob"},
		LabelIDs:  []string{"bug"},
	}, nil, actor)
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if c.Title != "Triage" {
		t.Errorf("Title = %q, want trimmed", c.Title)
	}
	if len(c.Assignees) != 2 {
		t.Errorf("assignees = %+v, want bob and carol", c.Assignees)
	}
	if len(c.Labels) != 1 || c.Labels[0].ID != "bug" {
		t.Errorf("labels = %+v", c.Labels)
	}

	_, err = f.svc.CreateCard(context.Background(), "l1", CreateFields{
		Title:    "Bad label",
		LabelIDs: []string{"foreign"},
	}, nil, actor)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("label from another board: err = %v, want ErrValidation", err)
	}
	if n := f.count(t, &models.Card{}, ""); n != 1 {
		t.Errorf("cards = %d, want 1", n)
	}
}

func TestCreateCard_UnknownList(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateCard(context.Background(), "ghost", CreateFields{Title: "A"}, nil, actor)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := f.count(t, &models.Card{}, ""); n != 0 {
		t.Errorf("cards = %d, want 0", n)
	}
	if n := f.count(t, &models.Activity{}, ""); n != 0 {
		t.Errorf("activities = %d, want 0", n)
	}
}

func TestCreateCard_Validation(t *testing.T) {
	f := newFixture(t)
	start := mustDate(t, "2026-03-10")
	due := mustDate(t, "2026-03-01")

	tests := []struct {
		name   string
		fields CreateFields
		actor  string
	}{
		{"empty title", CreateFields{Title: "   "}, actor},
		{"unknown status", CreateFields{Title: "A", Status: "blocked"}, actor},
		{"unknown priority", CreateFields{Title: "A", Priority: "asap"}, actor},
		{"due before start", CreateFields{Title: "A", StartDate: &start, DueDate: &due}, actor},
		{"missing actor", CreateFields{Title: "A"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCard(context.Background(), "l1", tt.fields, nil, tt.actor)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if n := f.count(t, &models.Card{}, ""); n != 0 {
		t.Errorf("cards = %d, want 0", n)
	}
}

// Scenario: create D depending on A.
func TestCreateCard_WithDependency(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "l1", "A")
	d := f.create(t, "l1", "D", a.ID)

	if got := d.DependencyIDs(); !reflect.DeepEqual(got, []string{a.ID}) {
		t.Errorf("D dependencies = %v, want [%s]", got, a.ID)
	}
}

func TestCreateCard_MissingDependencyWritesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "l1", "A")

	_, err := f.svc.CreateCard(context.Background(), "l1", CreateFields{Title: "B"}, []string{a.ID, "ghost"}, actor)
	if !errors.Is(err, apperr.ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Error("missing dependency should match ErrNotFound")
	}
	if ids := apperr.IDs(err); !reflect.DeepEqual(ids, []string{"ghost"}) {
		t.Errorf("ids = %v, want [ghost]", ids)
	}

	if n := f.count(t, &models.Card{}, ""); n != 1 {
		t.Errorf("cards = %d, want 1", n)
	}
	if n := f.count(t, &models.CardDep{}, ""); n != 0 {
		t.Errorf("edges = %d, want 0", n)
	}
	if n := f.count(t, &models.Activity{}, ""); n != 1 {
		t.Errorf("activities = %d, want 1", n)
	}
	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("order = %v", got)
	}
}

func TestCreateCard_CycleWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.svc.newID = func() string { return "fixed" }

	_, err := f.svc.CreateCard(context.Background(), "l1", CreateFields{Title: "Loop"}, []string{"fixed"}, actor)
	if !errors.Is(err, apperr.ErrCircularDependency) {
		t.Fatalf("err = %v, want ErrCircularDependency", err)
	}
	if n := f.count(t, &models.Card{}, ""); n != 0 {
		t.Errorf("cards = %d, want 0", n)
	}
	if n := f.count(t, &models.Activity{}, ""); n != 0 {
		t.Errorf("activities = %d, want 0", n)
	}
}

// Scenario: after D depends on A, A may not depend on D.
func TestUpdateCard_CycleRejected(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "l1", "A")
	d := f.create(t, "l1", "D", a.ID)

	title := "renamed"
	deps := []string{d.ID}
	_, _, err := f.svc.UpdateCard(context.Background(), a.ID, UpdateFields{Title: &title, Dependencies: &deps}, actor)
	if !errors.Is(err, apperr.ErrCircularDependency) {
		t.Fatalf("err = %v, want ErrCircularDependency", err)
	}
	if got := apperr.IDs(err); !reflect.DeepEqual(got, []string{a.ID, d.ID, a.ID}) {
		t.Errorf("cycle = %v, want [A D A]", got)
	}

	got, err := f.svc.GetCard(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Title != "A" {
		t.Errorf("title = %q, partial update leaked", got.Title)
	}
	if len(got.Dependencies) != 0 {
		t.Errorf("A dependencies = %v, want none", got.DependencyIDs())
	}
	if acts := f.activities(t, a.ID); len(acts) != 1 {
		t.Errorf("activities = %v, want only created", acts)
	}
}

func TestUpdateCard_TransitiveCycle(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "l1", "A")
	b := f.create(t, "l1", "B", a.ID)
	c := f.create(t, "l2", "C", b.ID)

	deps := []string{c.ID}
	_, _, err := f.svc.UpdateCard(context.Background(), a.ID, UpdateFields{Dependencies: &deps}, actor)
	if !errors.Is(err, apperr.ErrCircularDependency) {
		t.Fatalf("err = %v, want ErrCircularDependency", err)
	}
	if got := apperr.IDs(err); !reflect.DeepEqual(got, []string{a.ID, c.ID, b.ID, a.ID}) {
		t.Errorf("cycle = %v", got)
	}

	// Replacing with an unrelated card is fine, and clearing works.
	other := f.create(t, "l2", "Other")
	deps = []string{other.ID}
	updated, _, err := f.svc.UpdateCard(context.Background(), a.ID, UpdateFields{Dependencies: &deps}, actor)
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if got := updated.DependencyIDs(); !reflect.DeepEqual(got, []string{other.ID}) {
		t.Errorf("dependencies = %v", got)
	}
	none := []string{}
	updated, _, err = f.svc.UpdateCard(context.Background(), a.ID, UpdateFields{Dependencies: &none}, actor)
	if err != nil {
		t.Fatalf("clear dependencies: %v", err)
	}
	if len(updated.Dependencies) != 0 {
		t.Errorf("dependencies not cleared: %v", updated.DependencyIDs())
	}
}

// Scenario: deleting B from [A B C] leaves [A C].
func TestDeleteCard_Reindexes(t *testing.T) {
	f := newFixture(t)
	f.create(t, "l1", "A")
	b := f.create(t, "l1", "B")
	f.create(t, "l1", "C")
	d := f.create(t, "l2", "D", b.ID)

	owned := []interface{}{
		&models.Comment{CardID: b.ID, AuthorID: "bob", Body: "hi"},
		&models.SubTask{CardID: b.ID, Title: "step"},
		&models.TimeLog{CardID: b.ID, UserID: "bob", Minutes: 30},
		&models.CustomField{CardID: b.ID, Name: "env", Value: "prod"},
		&models.CardAssignee{CardID: b.ID, UserID: "bob"},
	}
	for _, r := range owned {
		if err := f.db.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}

	boardID, err := f.svc.DeleteCard(context.Background(), b.ID, actor)
	if err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if boardID != "b1" {
		t.Errorf("board = %q, want b1", boardID)
	}
	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("order = %v, want [A C]", got)
	}

	for _, m := range []interface{}{&models.Comment{}, &models.SubTask{}, &models.TimeLog{}, &models.CustomField{}, &models.CardAssignee{}} {
		if n := f.count(t, m, "card_id = ?", b.ID); n != 0 {
			t.Errorf("%T rows left: %d", m, n)
		}
	}
	if n := f.count(t, &models.CardDep{}, "depends_on_id = ?", b.ID); n != 0 {
		t.Errorf("edges into deleted card: %d", n)
	}
	dd, err := f.svc.GetCard(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetCard(D): %v", err)
	}
	if len(dd.Dependencies) != 0 {
		t.Errorf("D still depends on %v", dd.DependencyIDs())
	}
	if got := f.activities(t, b.ID); !reflect.DeepEqual(got, []string{activity.TypeDeleted, activity.TypeCreated}) {
		t.Errorf("activities = %v, want trail kept", got)
	}
}

func TestDeleteCard_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.DeleteCard(context.Background(), "ghost", actor)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := f.count(t, &models.Activity{}, ""); n != 0 {
		t.Errorf("activities = %d, want 0", n)
	}
}

// Scenario: move C from a 3-card list to the front of a 2-card list.
func TestUpdateCard_MoveToPosition(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"A", "B", "C"} {
		f.create(t, "l1", title)
	}
	f.create(t, "l2", "X")
	f.create(t, "l2", "Y")

	dst, pos := "l2", 0
	c, boardID, err := f.svc.UpdateCard(context.Background(), f.id("C"), UpdateFields{ListID: &dst, Position: &pos}, actor)
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if boardID != "b1" {
		t.Errorf("board = %q, want b1", boardID)
	}
	if c.ListID != "l2" || c.Position != 0 {
		t.Errorf("card at %s/%d, want l2/0", c.ListID, c.Position)
	}
	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("l1 = %v, want [A B]", got)
	}
	if got := f.order(t, "l2"); !reflect.DeepEqual(got, []string{"C", "X", "Y"}) {
		t.Errorf("l2 = %v, want [C X Y]", got)
	}

	entries, err := activity.List(context.Background(), f.db, activity.Filter{CardID: c.ID, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Type != activity.TypeMoved || entries[0].Details != "l1 -> l2" || entries[0].BoardID != "b1" {
		t.Errorf("latest activity = %+v", entries[0])
	}
}

func TestUpdateCard_MoveAppends(t *testing.T) {
	f := newFixture(t)
	f.create(t, "l1", "A")
	f.create(t, "l1", "B")
	f.create(t, "l2", "X")

	dst := "l2"
	if _, _, err := f.svc.UpdateCard(context.Background(), f.id("A"), UpdateFields{ListID: &dst}, actor); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("l1 = %v", got)
	}
	if got := f.order(t, "l2"); !reflect.DeepEqual(got, []string{"X", "A"}) {
		t.Errorf("l2 = %v", got)
	}
}

func TestUpdateCard_Reorder(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"A", "B", "C", "D"} {
		f.create(t, "l1", title)
	}

	tests := []struct {
		card string
		pos  int
		want []string
	}{
		{"A", 2, []string{"B", "C", "A", "D"}},
		{"D", 0, []string{"D", "B", "C", "A"}},
		{"B", 99, []string{"D", "C", "A", "B"}},
		{"C", 1, []string{"D", "C", "A", "B"}},
	}
	for _, tt := range tests {
		pos := tt.pos
		if _, _, err := f.svc.UpdateCard(context.Background(), f.id(tt.card), UpdateFields{Position: &pos}, actor); err != nil {
			t.Fatalf("move %s to %d: %v", tt.card, tt.pos, err)
		}
		if got := f.order(t, "l1"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("after moving %s to %d: order = %v, want %v", tt.card, tt.pos, got, tt.want)
		}
	}
}

func TestUpdateCard_Fields(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "l1", "A")
	f.create(t, "l1", "B")

	title, status, prio := "A2", models.StatusInProgress, models.PriorityUrgent
	updated, boardID, err := f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{
		Title:    &title,
		Status:   &status,
		Priority: &prio,
	}, actor)
	if err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}
	if boardID != "b1" {
		t.Errorf("board = %q", boardID)
	}
	if updated.Title != "A2" || updated.Status != status || updated.Priority != prio {
		t.Errorf("card = %+v", updated)
	}
	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A2", "B"}) {
		t.Errorf("order = %v", got)
	}

	entries, err := activity.List(context.Background(), f.db, activity.Filter{CardID: c.ID, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Type != activity.TypeUpdated || entries[0].Details != "title, status, priority" {
		t.Errorf("latest activity = %+v", entries[0])
	}
}

func TestUpdateCard_ClearDates(t *testing.T) {
	f := newFixture(t)
	start, due := mustDate(t, "2026-03-01"), mustDate(t, "2026-03-10")
	c, err := f.svc.CreateCard(context.Background(), "l1", CreateFields{
		Title:     "A",
		StartDate: &start,
		DueDate:   &due,
	}, nil, actor)
	if err != nil {
		t.Fatal(err)
	}

	updated, _, err := f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{ClearDueDate: true}, actor)
	if err != nil {
		t.Fatalf("clear due: %v", err)
	}
	if updated.DueDate != nil || updated.StartDate == nil || !updated.StartDate.Equal(start) {
		t.Errorf("after clearing due: start %v due %v", updated.StartDate, updated.DueDate)
	}

	// Without a due date any start is valid.
	later := mustDate(t, "2026-04-01")
	updated, _, err = f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{StartDate: &later}, actor)
	if err != nil {
		t.Fatalf("move start: %v", err)
	}
	if !updated.StartDate.Equal(later) {
		t.Errorf("start = %v", updated.StartDate)
	}

	updated, _, err = f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{ClearStartDate: true}, actor)
	if err != nil {
		t.Fatalf("clear start: %v", err)
	}
	if updated.StartDate != nil || updated.DueDate != nil {
		t.Errorf("dates not cleared: start %v due %v", updated.StartDate, updated.DueDate)
	}

	var stored models.Card
	if err := f.db.Where("id = ?", c.ID).Take(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if stored.StartDate != nil || stored.DueDate != nil {
		t.Errorf("stored dates: start %v due %v", stored.StartDate, stored.DueDate)
	}

	entries, err := activity.List(context.Background(), f.db, activity.Filter{CardID: c.ID, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Details != "start date" {
		t.Errorf("latest activity = %+v", entries[0])
	}

	_, _, err = f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{DueDate: &due, ClearDueDate: true}, actor)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("set and clear: err = %v, want ErrValidation", err)
	}
}

func TestUpdateCard_Rejected(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "l1", "A")
	bad := "blocked"
	ghost := "ghost"
	other := "x1"
	empty := ""

	tests := []struct {
		name   string
		fields UpdateFields
		want   error
	}{
		{"nothing to update", UpdateFields{}, apperr.ErrValidation},
		{"unknown status", UpdateFields{Status: &bad}, apperr.ErrValidation},
		{"empty list id", UpdateFields{ListID: &empty}, apperr.ErrValidation},
		{"unknown list", UpdateFields{ListID: &ghost}, apperr.ErrNotFound},
		{"other board", UpdateFields{ListID: &other}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.UpdateCard(context.Background(), c.ID, tt.fields, actor)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	_, _, err := f.svc.UpdateCard(context.Background(), "ghost", UpdateFields{Status: &bad}, actor)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("input is validated before lookup: err = %v", err)
	}
	done := models.StatusDone
	_, _, err = f.svc.UpdateCard(context.Background(), "ghost", UpdateFields{Status: &done}, actor)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown card: err = %v, want ErrNotFound", err)
	}

	if got := f.order(t, "l1"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("order = %v", got)
	}
}

func TestUpdateProgress(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, "l1", "A")

	steps := []struct {
		value int
		ok    bool
		after int
	}{
		{40, true, 40},
		{40, true, 40},
		{30, false, 40},
		{101, false, 40},
		{-1, false, 40},
		{100, true, 100},
		{0, false, 100},
	}
	for _, s := range steps {
		_, err := f.svc.UpdateProgress(context.Background(), c.ID, s.value, actor)
		if s.ok && err != nil {
			t.Errorf("UpdateProgress(%d): %v", s.value, err)
		}
		if !s.ok && !errors.Is(err, apperr.ErrInvalidProgress) {
			t.Errorf("UpdateProgress(%d) = %v, want ErrInvalidProgress", s.value, err)
		}
		var got models.Card
		if err := f.db.First(&got, "id = ?", c.ID).Error; err != nil {
			t.Fatal(err)
		}
		if got.Progress != s.after {
			t.Errorf("after %d: progress = %d, want %d", s.value, got.Progress, s.after)
		}
	}

	acts := f.activities(t, c.ID)
	var progress int
	for _, a := range acts {
		if a == activity.TypeProgressUpdated {
			progress++
		}
	}
	if progress != 3 {
		t.Errorf("progress activities = %d, want 3", progress)
	}

	lower := 10
	_, _, err := f.svc.UpdateCard(context.Background(), c.ID, UpdateFields{Progress: &lower}, actor)
	if !errors.Is(err, apperr.ErrInvalidProgress) {
		t.Errorf("UpdateCard lowering progress: err = %v", err)
	}

	if _, err := f.svc.UpdateProgress(context.Background(), "ghost", 50, actor); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown card: err = %v", err)
	}
}

func TestInvariantViolationAborts(t *testing.T) {
	f := newFixture(t)
	f.create(t, "l1", "A")
	b := f.create(t, "l1", "B")
	if err := f.db.Model(&models.Card{}).Where("id = ?", b.ID).Update("position", 5).Error; err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.CreateCard(context.Background(), "l1", CreateFields{Title: "C"}, nil, actor)
	if !errors.Is(err, apperr.ErrInvariantViolation) {
		t.Fatalf("err = %v, want ErrInvariantViolation", err)
	}
	if apperr.IsDomain(err) {
		t.Error("invariant violation reported as domain error")
	}
	if n := f.count(t, &models.Card{}, ""); n != 2 {
		t.Errorf("cards = %d, want 2", n)
	}

	var alerted bool
	for _, e := range f.hook.AllEntries() {
		if e.Data["alert"] == true && e.Data["list_id"] == "l1" {
			alerted = true
		}
	}
	if !alerted {
		t.Error("no alert logged for broken list")
	}

	var stored models.Card
	if err := f.db.First(&stored, "id = ?", b.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Position != 5 {
		t.Errorf("broken position silently repaired to %d", stored.Position)
	}
}

func TestNormalizeIDs(t *testing.T) {
	got := normalizeIDs([]string{"b", " a ", "", "b", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeIDs = %v, want %v", got, want)
	}
	if !sort.StringsAreSorted(got) {
		t.Error("not sorted")
	}
}
