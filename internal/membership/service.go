// internal/membership/service.go
package membership

// Store defines the set of registered users.
type Store interface {
	Add(name, email, password string, role Role) (User, error)
	Get(id UserID) (User, error)
	ListAll() []User

	// Restore inserts a user that already has an identifier, e.g. during journal replay.
	Restore(u User) error
	// Remove deletes a user. It exists to undo an Add whose unit of work failed.
	Remove(id UserID) error
}
