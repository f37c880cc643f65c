package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patron/internal/accounts"
	"github.com/mrlokans/patron/internal/profiles"
	"github.com/mrlokans/patron/internal/registry"
	"github.com/mrlokans/patron/internal/tasks"
)

// BooksController exposes the book registry and the per-book operations.
type BooksController struct {
	ops   AccountOperations
	books BookLister
	queue TaskQueue
}

// NewBooksController creates a BooksController. queue may be nil, in which case
// revokes and downloads run inside the request.
func NewBooksController(ops AccountOperations, books BookLister, queue TaskQueue) *BooksController {
	return &BooksController{ops: ops, books: books, queue: queue}
}

// GetAllBooks handles GET /api/books
// ?account=<id> restricts the list to one account.
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	var records []registry.Record
	if raw := c.Query("account"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "invalid account")
			return
		}
		records = bc.books.BooksForAccount(id)
	} else {
		records = bc.books.Books()
	}
	if records == nil {
		records = []registry.Record{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": records, "count": len(records)})
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	rec, ok := bc.record(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, rec)
}

// RevokeBook handles POST /api/books/:id/revoke
func (bc *BooksController) RevokeBook(c *gin.Context) {
	p, account, rec, ok := bc.resolve(c)
	if !ok {
		return
	}
	if bc.queue != nil {
		enqueueTask(c, bc.queue, tasks.RevokeBookTask{BookTask: bookTask(p, account, rec)}, "revoke enqueued")
		return
	}
	if err := bc.ops.BookRevoke(c.Request.Context(), account, rec.Book.ID); err != nil {
		respondFailure(c, err, "revoke")
		return
	}
	bc.respondBook(c, rec.Book.ID)
}

// DismissRevokeFailure handles POST /api/books/:id/dismiss
func (bc *BooksController) DismissRevokeFailure(c *gin.Context) {
	_, account, rec, ok := bc.resolve(c)
	if !ok {
		return
	}
	if err := bc.ops.BookRevokeFailedDismiss(account, rec.Book.ID); err != nil {
		respondFailure(c, err, "dismiss revoke failure")
		return
	}
	bc.respondBook(c, rec.Book.ID)
}

// DeleteBook handles DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	_, account, rec, ok := bc.resolve(c)
	if !ok {
		return
	}
	if err := bc.ops.BookDelete(account, rec.Book.ID); err != nil {
		respondFailure(c, err, "delete book")
		return
	}
	respondSuccess(c, "book deleted")
}

// DownloadBook handles POST /api/books/:id/download
func (bc *BooksController) DownloadBook(c *gin.Context) {
	p, account, rec, ok := bc.resolve(c)
	if !ok {
		return
	}
	if bc.queue != nil {
		enqueueTask(c, bc.queue, tasks.DownloadBookTask{BookTask: bookTask(p, account, rec)}, "download enqueued")
		return
	}
	if err := bc.ops.BookDownload(c.Request.Context(), account, rec.Book.ID); err != nil {
		respondFailure(c, err, "download")
		return
	}
	bc.respondBook(c, rec.Book.ID)
}

func (bc *BooksController) record(c *gin.Context) (registry.Record, bool) {
	rec, err := bc.books.BookOrError(c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		respondNotFound(c, "book")
		return rec, false
	}
	if err != nil {
		respondInternalError(c, err, "book lookup")
		return rec, false
	}
	return rec, true
}

// resolve finds the book and the current profile's account holding it.
func (bc *BooksController) resolve(c *gin.Context) (*profiles.Profile, *accounts.Account, registry.Record, bool) {
	rec, ok := bc.record(c)
	if !ok {
		return nil, nil, rec, false
	}
	p, account, err := bc.ops.CurrentAccount(accounts.ID(rec.Book.AccountID))
	if err != nil {
		respondFailure(c, err, "resolve account")
		return nil, nil, rec, false
	}
	return p, account, rec, true
}

// respondBook responds with the book's record, or a message if it left the registry.
func (bc *BooksController) respondBook(c *gin.Context, id string) {
	rec, err := bc.books.BookOrError(id)
	if err != nil {
		respondSuccess(c, "book no longer held")
		return
	}
	c.IndentedJSON(http.StatusOK, rec)
}

func bookTask(p *profiles.Profile, account *accounts.Account, rec registry.Record) tasks.BookTask {
	return tasks.BookTask{ProfileID: int(p.ID()), AccountID: int(account.ID()), BookID: rec.Book.ID}
}
