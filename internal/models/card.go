package models

import "time"

// Card statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Card priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Card is a unit of work belonging to a list. Position is contiguous and
// zero-based among the cards of one list.
type Card struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ListID      string     `gorm:"size:36;not null;index:idx_list_position" json:"list_id"`
	Position    int        `gorm:"not null;default:0;index:idx_list_position" json:"position"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:16;default:todo;index" json:"status"`
	Priority    string     `gorm:"size:16;default:medium" json:"priority"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `gorm:"size:64" json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	List         *List          `gorm:"foreignKey:ListID" json:"list,omitempty"`
	Dependencies []CardDep      `gorm:"foreignKey:CardID" json:"dependencies,omitempty"`
	Assignees    []CardAssignee `gorm:"foreignKey:CardID" json:"assignees,omitempty"`
	Labels       []Label        `gorm:"many2many:card_labels" json:"labels,omitempty"`
	Attachments  []Attachment   `gorm:"foreignKey:CardID" json:"attachments,omitempty"`
	Comments     []Comment      `gorm:"foreignKey:CardID" json:"comments,omitempty"`
	SubTasks     []SubTask      `gorm:"foreignKey:CardID" json:"sub_tasks,omitempty"`
	TimeLogs     []TimeLog      `gorm:"foreignKey:CardID" json:"time_logs,omitempty"`
	CustomFields []CustomField  `gorm:"foreignKey:CardID" json:"custom_fields,omitempty"`
}

// DependencyIDs returns the ids of the cards this card depends on.
func (c *Card) DependencyIDs() []string {
	ids := make([]string, len(c.Dependencies))
	for i, d := range c.Dependencies {
		ids[i] = d.DependsOnID
	}
	return ids
}

// CardDep is a directed edge: CardID cannot complete before DependsOnID.
type CardDep struct {
	CardID      string    `gorm:"primaryKey;size:36" json:"card_id"`
	DependsOnID string    `gorm:"primaryKey;size:36;index" json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CardAssignee links a user to a card.
type CardAssignee struct {
	CardID string `gorm:"primaryKey;size:36" json:"card_id"`
	UserID string `gorm:"primaryKey;size:64" json:"user_id"`
}

// Attachment holds metadata for a file stored by the attachment service.
type Attachment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID     string    `gorm:"size:36;index" json:"card_id"`
	FileName   string    `gorm:"size:255" json:"file_name"`
	StorageKey string    `gorm:"size:255" json:"storage_key"`
	UploadedBy string    `gorm:"size:64" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Comment is a discussion entry on a card.
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID    string    `gorm:"size:36;index" json:"card_id"`
	AuthorID  string    `gorm:"size:64" json:"author_id"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SubTask is a checklist item owned by a card.
type SubTask struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID    string    `gorm:"size:36;index" json:"card_id"`
	Title     string    `gorm:"size:255" json:"title"`
	Done      bool      `gorm:"default:false" json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// TimeLog records time spent on a card.
type TimeLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID    string    `gorm:"size:36;index" json:"card_id"`
	UserID    string    `gorm:"size:64" json:"user_id"`
	Minutes   int       `json:"minutes"`
	Note      string    `gorm:"type:text" json:"note"`
	LoggedAt  time.Time `json:"logged_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomField is a free-form key/value attached to a card.
type CustomField struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	CardID string `gorm:"size:36;uniqueIndex:idx_card_field" json:"card_id"`
	Name   string `gorm:"size:64;uniqueIndex:idx_card_field" json:"name"`
	Value  string `gorm:"type:text" json:"value"`
}
