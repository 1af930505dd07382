// internal/catalog/domain.go
package catalog

import "time"

// BookID identifies a Book. Book and user identifiers come from separate sequences and may
// overlap numerically, so they are kept as distinct types.
type BookID int64

// Book represents a single lendable title. There is exactly one copy per BookID.
type Book struct {
	ID        BookID `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	Available bool   `json:"available"`
}

// LoanedBook is a book on loan together with the date it is due back.
type LoanedBook struct {
	Book
	DueDate time.Time `json:"due_date"`
}

// BookDraft carries the caller-supplied fields of a book that does not exist yet.
type BookDraft struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// BookAddedEventType names the journal event written when a book enters the catalog.
const BookAddedEventType = "BookAdded"

// BookAddedEvent is journaled when a new book is added.
type BookAddedEvent struct {
	ID     BookID `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}
