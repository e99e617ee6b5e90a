package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
)

const DefaultPageSize = 20

var (
	ErrReservationNotLoaded = errors.New("reservation is not loaded")
	ErrInvalidPage          = errors.New("page must be >= 1")
	ErrClosed               = errors.New("feed is closed")
)

// PageFetcher executes one paged query against the reservation list.
type PageFetcher interface {
	FetchPage(ctx context.Context, q models.PageQuery) (*models.Page, error)
}

// StatusUpdater changes the status of one reservation on the server.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error)
}

// EventPublisher receives feed notifications (errors for the toast, updates for re-render).
type EventPublisher interface {
	PublishJSON(evType string, payload interface{}) error
}

// Config tunes a Controller.
type Config struct {
	PageSize       int
	DebounceWindow time.Duration
	// Location decides which calendar day a reservation belongs to.
	Location *time.Location
	// Now is used for the "today" counters.
	Now func() time.Time
}

// Snapshot is everything a render pass needs, taken atomically.
type Snapshot struct {
	Items  []FlatItem
	Stats  models.Stats
	Page   models.PageState
	Filter models.FilterCriteria
	Err    string
}

// Controller owns the feed of one screen session: filter, page cursor,
// loaded records and loading state. All writes go through Load, LoadMore,
// Refresh, SetFilter and UpdateStatus.
//
// Every reset bumps a generation counter. A load remembers the generation it
// was issued under and its response is dropped if the generation moved on,
// so a page requested for an old filter never lands in the new dataset.
type Controller struct {
	fetcher  PageFetcher
	updater  StatusUpdater
	events   EventPublisher
	logger   *zerolog.Logger
	loc      *time.Location
	now      func() time.Time
	debounce *Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	records    []models.Reservation
	filter     models.FilterCriteria
	page       models.PageState
	gen        uint64
	loadingGen uint64
	cancelLoad context.CancelFunc
	applied    bool
	closed     bool
	lastErr    string
}

// NewController creates a controller. events and logger may be nil.
func NewController(fetcher PageFetcher, updater StatusUpdater, pub EventPublisher, cfg Config, logger *zerolog.Logger) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:  fetcher,
		updater:  updater,
		events:   pub,
		logger:   logger,
		loc:      cfg.Location,
		now:      cfg.Now,
		debounce: NewDebouncer(cfg.DebounceWindow),
		ctx:      ctx,
		cancel:   cancel,
		page:     models.PageState{PageSize: cfg.PageSize},
	}
}

// Start applies the initial filter and loads the first page right away.
func (c *Controller) Start(ctx context.Context) error {
	return c.SetFilter(ctx, models.FilterPatch{})
}

// Close tears the session down: the pending filter reload is dropped and
// the in-flight request is cancelled.
func (c *Controller) Close() {
	c.debounce.Stop()

	c.mu.Lock()
	c.closed = true
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.mu.Unlock()

	c.cancel()
}

// Load fetches page and merges it into the feed, replacing the dataset when
// reset is true. It is a no-op while a load of the current generation is in
// flight. A failed fetch leaves the dataset and the page cursor untouched.
func (c *Controller) Load(ctx context.Context, page int, reset bool) error {
	return c.load(ctx, page, reset, false)
}

// LoadMore appends the next page if there is one and nothing is loading.
// It also waits out a pending filter reload, since the next page of the old
// filter no longer belongs to the feed.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.page.HasNextPage || c.page.IsLoading || c.debounce.Pending() {
		c.mu.Unlock()
		return nil
	}
	next := c.page.CurrentPage + 1
	c.mu.Unlock()

	return c.load(ctx, next, false, false)
}

// Refresh reloads the first page from the server and replaces the dataset.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.load(ctx, 1, true, true)
}

// SetFilter merges patch into the filter and schedules a debounced reset.
// The first filter application after construction loads immediately.
func (c *Controller) SetFilter(ctx context.Context, patch models.FilterPatch) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.filter = patch.Apply(c.filter)
	c.gen++
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	first := !c.applied
	c.applied = true
	c.mu.Unlock()

	if first {
		return c.load(ctx, 1, true, false)
	}
	if c.debounce.Schedule(c.reloadForFilter) {
		metrics.IncDebounceCoalesced()
	}
	return nil
}

func (c *Controller) reloadForFilter() {
	if err := c.load(c.ctx, 1, true, false); err != nil {
		c.logger.Debug().Err(err).Msg("filter reload failed")
	}
}

func (c *Controller) load(ctx context.Context, page int, reset, fresh bool) error {
	if page < 1 {
		return fmt.Errorf("load page %d: %w", page, ErrInvalidPage)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.page.IsLoading && c.loadingGen == c.gen {
		c.mu.Unlock()
		return nil
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	if reset {
		c.gen++
		c.debounce.Cancel()
	}
	gen := c.gen
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.loadingGen = gen
	c.page.IsLoading = true
	q := models.PageQuery{
		Page:     page,
		PageSize: c.page.PageSize,
		Search:   c.filter.SearchQuery,
		Date:     copyTime(c.filter.SelectedDate),
		Fresh:    fresh,
	}
	c.mu.Unlock()
	defer cancel()

	resp, err := c.fetcher.FetchPage(loadCtx, q)

	c.mu.Lock()
	if c.closed {
		c.page.IsLoading = false
		c.cancelLoad = nil
		c.mu.Unlock()
		c.logger.Debug().Int("page", page).Msg("dropping page response after close")
		return ErrClosed
	}
	if gen != c.gen {
		if c.loadingGen == gen {
			c.page.IsLoading = false
			c.cancelLoad = nil
		}
		current := c.gen
		c.mu.Unlock()

		metrics.IncStaleResponse()
		c.logger.Debug().
			Uint64("issued_gen", gen).
			Uint64("current_gen", current).
			Int("page", page).
			Msg("discarding stale page response")
		return nil
	}

	c.page.IsLoading = false
	c.cancelLoad = nil

	if err == nil && resp == nil {
		err = errors.New("empty page response")
	}
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()

		metrics.IncPageFetch("error")
		c.logger.Error().Err(err).Int("page", page).Bool("reset", reset).Msg("failed to load reservations")
		c.publish(events.TypeFeedError, events.FeedError{Op: "load", Message: err.Error()})
		return fmt.Errorf("load page %d: %w", page, err)
	}

	prior := c.records
	if reset {
		prior = nil
	}
	merged := MergeByDate(prior, resp.Records, c.loc)
	c.records = merged.Records
	c.page.Total = resp.Total
	c.page.CurrentPage = page
	c.page.HasNextPage = page*c.page.PageSize < resp.Total
	c.lastErr = ""
	updated := events.FeedUpdated{
		Generation:  gen,
		CurrentPage: page,
		Total:       resp.Total,
		Loaded:      len(c.records),
	}
	c.mu.Unlock()

	metrics.IncPageFetch("ok")
	if len(merged.Skipped) > 0 {
		metrics.AddMalformedRecords(len(merged.Skipped))
		for _, s := range merged.Skipped {
			c.logger.Warn().Err(s.Err).Str("id", s.Record.ID).Int("page", page).Msg("skipping malformed reservation")
		}
	}
	c.logger.Debug().
		Int("page", page).
		Bool("reset", reset).
		Int("received", len(resp.Records)).
		Int("loaded", updated.Loaded).
		Int("total", resp.Total).
		Msg("reservations page merged")
	c.publish(events.TypeFeedUpdated, updated)
	return nil
}

// UpdateStatus changes the status of a loaded reservation through the
// status endpoint and, on success, overwrites only that record's status.
// Ordering and grouping are unaffected.
func (c *Controller) UpdateStatus(ctx context.Context, id string, status models.ReservationStatus) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return c.failUpdate(id, fmt.Errorf("%s: %w", id, ErrReservationNotLoaded))
	}
	current := c.records[idx].Status
	c.mu.Unlock()

	if err := models.CheckTransition(current, status); err != nil {
		return c.failUpdate(id, err)
	}

	if _, err := c.updater.UpdateStatus(ctx, id, status); err != nil {
		return c.failUpdate(id, fmt.Errorf("update status of %s: %w", id, err))
	}

	c.mu.Lock()
	if idx := c.indexOf(id); idx >= 0 {
		c.records[idx].Status = status
	}
	c.lastErr = ""
	updated := events.FeedUpdated{
		Generation:  c.gen,
		CurrentPage: c.page.CurrentPage,
		Total:       c.page.Total,
		Loaded:      len(c.records),
	}
	c.mu.Unlock()

	metrics.IncStatusUpdate("ok")
	c.logger.Info().Str("id", id).Str("status", status.String()).Msg("reservation status updated")
	c.publish(events.TypeStatusChanged, events.StatusChanged{ID: id, Status: int(status)})
	c.publish(events.TypeFeedUpdated, updated)
	return nil
}

func (c *Controller) failUpdate(id string, err error) error {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()

	metrics.IncStatusUpdate("error")
	c.logger.Error().Err(err).Str("id", id).Msg("failed to update reservation status")
	c.publish(events.TypeFeedError, events.FeedError{Op: "update_status", Message: err.Error()})
	return err
}

func (c *Controller) indexOf(id string) int {
	for i := range c.records {
		if c.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) publish(evType string, payload interface{}) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(evType, payload); err != nil {
		c.logger.Error().Err(err).Str("type", evType).Msg("failed to publish feed event")
	}
}

// Snapshot returns the render state in one consistent read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	records := c.copyRecordsLocked()
	snap := Snapshot{
		Page:   c.page,
		Filter: c.filterLocked(),
		Err:    c.lastErr,
	}
	c.mu.Unlock()

	snap.Items = Flatten(records, c.loc)
	snap.Stats = ComputeStats(records, c.now(), c.loc)
	return snap
}

// FlatData returns the header/row list for rendering.
func (c *Controller) FlatData() []FlatItem {
	return Flatten(c.Records(), c.loc)
}

// Stats returns counters over the loaded records only.
func (c *Controller) Stats() models.Stats {
	return ComputeStats(c.Records(), c.now(), c.loc)
}

// Records returns a copy of the loaded dataset in feed order.
func (c *Controller) Records() []models.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyRecordsLocked()
}

func (c *Controller) PageState() models.PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) Filter() models.FilterCriteria {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterLocked()
}

// Err returns the message of the most recent failed operation, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.IsLoading
}

func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.CurrentPage
}

// Generation returns the current reset generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) copyRecordsLocked() []models.Reservation {
	return append([]models.Reservation(nil), c.records...)
}

func (c *Controller) filterLocked() models.FilterCriteria {
	f := c.filter
	f.SelectedDate = copyTime(f.SelectedDate)
	return f
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
