package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestCard_Fields(t *testing.T) {
	typ := reflect.TypeOf(Card{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "ListID", "not null")
	assertGormTag(t, typ, "ListID", "index:idx_list_position")
	assertGormTag(t, typ, "Position", "index:idx_list_position")
	assertGormTag(t, typ, "Title", "size:255")
	assertGormTag(t, typ, "Status", "default:todo")
	assertGormTag(t, typ, "Priority", "default:medium")
	assertGormTag(t, typ, "Progress", "default:0")
	assertGormTag(t, typ, "Labels", "many2many:card_labels")

	assertFieldType(t, typ, "StartDate", "*time.Time")
	assertFieldType(t, typ, "DueDate", "*time.Time")
	assertFieldType(t, typ, "List", "*models.List")
	assertFieldType(t, typ, "Dependencies", "[]models.CardDep")
}

func TestCardDep_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(CardDep{})
	assertGormTag(t, typ, "CardID", "primaryKey")
	assertGormTag(t, typ, "DependsOnID", "primaryKey")
	// Dependents are looked up by DependsOnID when a card is deleted.
	assertGormTag(t, typ, "DependsOnID", "index")
}

func TestList_Fields(t *testing.T) {
	typ := reflect.TypeOf(List{})
	assertGormTag(t, typ, "BoardID", "index:idx_board_position")
	assertGormTag(t, typ, "Position", "index:idx_board_position")
	assertGormTag(t, typ, "Name", "not null")
	assertFieldType(t, typ, "Board", "*models.Board")
	assertFieldType(t, typ, "Cards", "[]models.Card")
}

func TestBoardMember_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(BoardMember{})
	assertGormTag(t, typ, "BoardID", "primaryKey")
	assertGormTag(t, typ, "UserID", "primaryKey")
	assertGormTag(t, typ, "Role", "default:member")
}

func TestOwnedRows_IndexedByCard(t *testing.T) {
	for _, v := range []interface{}{Attachment{}, Comment{}, SubTask{}, TimeLog{}} {
		assertGormTag(t, reflect.TypeOf(v), "CardID", "index")
	}
	assertGormTag(t, reflect.TypeOf(CustomField{}), "CardID", "uniqueIndex:idx_card_field")
	assertGormTag(t, reflect.TypeOf(CustomField{}), "Name", "uniqueIndex:idx_card_field")
}

func TestActivity_Fields(t *testing.T) {
	typ := reflect.TypeOf(Activity{})
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "ActorID", "not null")
	assertGormTag(t, typ, "Type", "not null")
	assertGormTag(t, typ, "Details", "type:text")
}

func TestCard_DependencyIDs(t *testing.T) {
	c := Card{Dependencies: []CardDep{
		{CardID: "c", DependsOnID: "a"},
		{CardID: "c", DependsOnID: "b"},
	}}
	if got := c.DependencyIDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("DependencyIDs() = %v", got)
	}
	if got := (&Card{}).DependencyIDs(); len(got) != 0 {
		t.Errorf("empty card DependencyIDs() = %v", got)
	}
}
