// Package bridge connects a single-threaded UI loop to background network
// round trips. Each user action gets a sequence number and a worker
// goroutine; workers push their outcome onto a Queue, and the UI drains the
// queue on a timer with Poll, applying only the newest result per category.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/remote"
	"github.com/wesm/regcat/internal/wire"
)

// Error dialog titles.
const (
	TitleServerError = "Server Error"
	TitleError       = "Error"
)

// Gateway performs one blocking round trip per call.
type Gateway interface {
	Search(ctx context.Context, criteria query.SearchCriteria) ([]query.ClassSummary, error)
	Detail(ctx context.Context, classID int64) (*query.ClassDetail, error)
}

// Presenter receives the results Poll decides to apply. All calls happen on
// the goroutine that calls Poll.
type Presenter interface {
	ShowSummaries(rows []query.ClassSummary)
	ShowDetail(detail *query.ClassDetail)
	ShowError(title, message string)
}

// Category separates sequence spaces. A detail never supersedes a search.
type Category int

const (
	CategorySearch Category = iota
	CategoryDetail
)

func (c Category) String() string {
	if c == CategoryDetail {
		return "detail"
	}
	return "search"
}

// Item is the outcome of one worker's round trip.
type Item struct {
	Category  Category
	Seq       uint64
	Summaries []query.ClassSummary
	Detail    *query.ClassDetail
	Err       error
}

// Bridge issues requests from the UI loop and applies their results.
type Bridge struct {
	ctx     context.Context
	gateway Gateway
	logger  *slog.Logger
	queue   Queue
	wg      sync.WaitGroup

	// Written by the UI loop, read by Poll on the same loop.
	searchSeq uint64
	detailSeq uint64

	// stale flag of the newest search worker; replaced on each Search.
	searchStale *atomic.Bool
}

// New creates a bridge. Workers run under ctx; cancelling it aborts every
// in-flight round trip, which is how the caller shuts the bridge down.
func New(ctx context.Context, gw Gateway, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{ctx: ctx, gateway: gw, logger: logger}
}

// Search starts a search round trip and returns its sequence number. The
// previous search worker is flagged stale so it skips enqueueing if it has
// not done so yet.
func (b *Bridge) Search(criteria query.SearchCriteria) uint64 {
	b.searchSeq++
	seq := b.searchSeq

	if b.searchStale != nil {
		b.searchStale.Store(true)
	}
	stale := new(atomic.Bool)
	b.searchStale = stale

	b.spawn(CategorySearch, seq, stale, func(ctx context.Context, it *Item) error {
		rows, err := b.gateway.Search(ctx, criteria)
		it.Summaries = rows
		return err
	})
	return seq
}

// Detail starts a detail round trip and returns its sequence number.
func (b *Bridge) Detail(classID int64) uint64 {
	b.detailSeq++
	seq := b.detailSeq

	b.spawn(CategoryDetail, seq, nil, func(ctx context.Context, it *Item) error {
		d, err := b.gateway.Detail(ctx, classID)
		it.Detail = d
		return err
	})
	return seq
}

func (b *Bridge) spawn(cat Category, seq uint64, stale *atomic.Bool, run func(context.Context, *Item) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		it := Item{Category: cat, Seq: seq}
		func() {
			defer func() {
				if r := recover(); r != nil {
					it.Err = fmt.Errorf("%s worker panic: %v", cat, r)
				}
			}()
			it.Err = run(b.ctx, &it)
		}()
		if stale != nil && stale.Load() {
			b.logger.Debug("dropping stale result", "category", cat.String(), "seq", seq)
			return
		}
		b.queue.Put(it)
	}()
}

// Poll drains every queued item and applies the ones that are still current
// to p. It never blocks and returns the number of items applied. Poll must
// be called from the same goroutine that issues Search and Detail.
func (b *Bridge) Poll(p Presenter) int {
	applied := 0
	for {
		it, ok := b.queue.Get()
		if !ok {
			return applied
		}
		if it.Seq != b.latest(it.Category) {
			b.logger.Debug("discarding superseded result", "category", it.Category.String(), "seq", it.Seq)
			continue
		}
		b.apply(p, it)
		applied++
	}
}

func (b *Bridge) latest(c Category) uint64 {
	if c == CategoryDetail {
		return b.detailSeq
	}
	return b.searchSeq
}

func (b *Bridge) apply(p Presenter, it Item) {
	if it.Err != nil {
		title, msg := ErrorTitle(it.Err)
		b.logger.Debug("request failed", "category", it.Category.String(), "seq", it.Seq, "error", it.Err)
		p.ShowError(title, msg)
		return
	}
	switch it.Category {
	case CategorySearch:
		p.ShowSummaries(it.Summaries)
	case CategoryDetail:
		p.ShowDetail(it.Detail)
	}
}

// Wait blocks until every spawned worker has finished.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// ErrorTitle picks the dialog title and message for a failed round trip.
// Failures the server answered on purpose, such as an unknown class id, are
// plain errors. The generic service failure and anything that kept the
// round trip from completing are server errors.
func ErrorTitle(err error) (title, message string) {
	var re *remote.RemoteError
	if errors.As(err, &re) {
		if re.Kind == wire.KindServiceError || re.Message == wire.ServiceErrorMessage {
			return TitleServerError, re.Message
		}
		return TitleError, re.Message
	}
	return TitleServerError, err.Error()
}
