// Package registry keeps the in-memory status of every book across all accounts and
// publishes a change event whenever a book's status changes or it is removed.
package registry

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// ErrNotFound is returned when a book ID is not registered.
var ErrNotFound = errors.New("book not registered")

// EventKind distinguishes registry events.
type EventKind int

const (
	EventBookChanged EventKind = iota
	EventBookRemoved
)

func (k EventKind) String() string {
	if k == EventBookRemoved {
		return "book_removed"
	}
	return "book_changed"
}

// Event is published on every registry change.
type Event struct {
	Kind   EventKind
	BookID string
	Status Status
}

// Record is a registered book with its current status.
type Record struct {
	Book   Book   `json:"book"`
	Status Status `json:"status"`

	// settled is the last status not set by an in-flight operation.
	settled Status
}

// Registry maps book IDs to their status.
type Registry struct {
	mu          sync.Mutex
	records     map[string]Record    // guarded by mu
	subscribers map[int]chan<- Event // guarded by mu
	nextSub     int                  // guarded by mu
}

func New() *Registry {
	return &Registry{
		records:     make(map[string]Record),
		subscribers: make(map[int]chan<- Event),
	}
}

// Update registers or replaces book with the status derived from it.
func (r *Registry) Update(book Book) Status {
	status := StatusFromBook(book)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[book.ID] = Record{Book: book, Status: status, settled: status}
	r.publishLocked(Event{Kind: EventBookChanged, BookID: book.ID, Status: status})
	return status
}

// UpdateStatus sets the status of a registered book without touching its metadata.
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Status = status
	if !status.Transient() {
		rec.settled = status
	}
	r.records[id] = rec
	r.publishLocked(Event{Kind: EventBookChanged, BookID: id, Status: status})
	return nil
}

// Restore returns a book to its last status not set by an in-flight operation.
func (r *Registry) Restore(id string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Status = rec.settled
	r.records[id] = rec
	r.publishLocked(Event{Kind: EventBookChanged, BookID: id, Status: rec.Status})
	return rec.Status, nil
}

// Remove unregisters a book, reporting whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	delete(r.records, id)
	r.publishLocked(Event{Kind: EventBookRemoved, BookID: id, Status: rec.Status})
	return true
}

// Book looks up a registered book.
func (r *Registry) Book(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// BookOrError looks up a book that callers expect to be registered.
func (r *Registry) BookOrError(id string) (Record, error) {
	rec, ok := r.Book(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// Books returns every registered book ordered by ID.
func (r *Registry) Books() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Book.ID < out[j].Book.ID })
	return out
}

// BooksForAccount returns the registered books of one account ordered by ID.
func (r *Registry) BooksForAccount(accountID int) []Record {
	var out []Record
	for _, rec := range r.Books() {
		if rec.Book.AccountID == accountID {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Subscribe returns a channel receiving every subsequent event and a function that
// ends the subscription and closes the channel. Events are dropped for a subscriber
// whose buffer is full.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// publishLocked delivers e to every subscriber. Callers hold mu.
func (r *Registry) publishLocked(e Event) {
	for id, ch := range r.subscribers {
		select {
		case ch <- e:
		default:
			log.Printf("[REGISTRY] subscriber %d is full, dropped %s for %s", id, e.Kind, e.BookID)
		}
	}
}
