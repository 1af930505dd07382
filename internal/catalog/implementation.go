// internal/catalog/implementation.go
package catalog

import (
	"fmt"
	"slices"
	"sync"

	"libraledger/internal/sequence"
	"libraledger/internal/store"
)

// memoryStore implements the Store interface.
type memoryStore struct {
	mu    sync.RWMutex
	ids   *sequence.Generator
	books map[BookID]*Book
	order []BookID
}

// NewStore creates an empty in-memory catalog drawing identifiers from ids.
func NewStore(ids *sequence.Generator) Store {
	return &memoryStore{
		ids:   ids,
		books: make(map[BookID]*Book),
	}
}

// Add creates a book that is on the shelf.
func (s *memoryStore) Add(title, author, isbn string) Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &Book{
		ID:        BookID(s.ids.Next()),
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		Available: true,
	}
	s.books[b.ID] = b
	s.order = append(s.order, b.ID)
	return *b
}

// Get returns a copy of the book with the given ID.
func (s *memoryStore) Get(id BookID) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, fmt.Errorf("%w: id %d", store.ErrBookNotFound, id)
	}
	return *b, nil
}

func (s *memoryStore) ListAll() []Book {
	return s.list(func(*Book) bool { return true })
}

func (s *memoryStore) ListAvailable() []Book {
	return s.list(func(b *Book) bool { return b.Available })
}

func (s *memoryStore) list(keep func(*Book) bool) []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]Book, 0, len(s.order))
	for _, id := range s.order {
		if b := s.books[id]; keep(b) {
			books = append(books, *b)
		}
	}
	return books
}

// SetAvailability flips the shelf flag. Only the lending service calls it.
func (s *memoryStore) SetAvailability(id BookID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return fmt.Errorf("%w: id %d", store.ErrBookNotFound, id)
	}
	b.Available = available
	return nil
}

func (s *memoryStore) Restore(b Book) error {
	if b.ID <= 0 {
		return fmt.Errorf("%w: book id must be positive", store.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[b.ID]; exists {
		return fmt.Errorf("book %d: %w", b.ID, store.ErrDuplicate)
	}
	restored := b
	s.books[b.ID] = &restored
	s.order = append(s.order, b.ID)
	s.ids.Observe(int64(b.ID))
	return nil
}

func (s *memoryStore) Remove(id BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return fmt.Errorf("%w: id %d", store.ErrBookNotFound, id)
	}
	delete(s.books, id)
	s.order = slices.DeleteFunc(s.order, func(other BookID) bool { return other == id })
	return nil
}
