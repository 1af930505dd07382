// internal/catalog/service.go
package catalog

// Store defines the catalog of books and their availability.
type Store interface {
	Add(title, author, isbn string) Book
	Get(id BookID) (Book, error)
	ListAll() []Book
	ListAvailable() []Book
	SetAvailability(id BookID, available bool) error

	// Restore inserts a book that already has an identifier, e.g. during journal replay.
	Restore(b Book) error
	// Remove deletes a book. It exists to undo an Add whose unit of work failed;
	// books are never retired.
	Remove(id BookID) error
}
