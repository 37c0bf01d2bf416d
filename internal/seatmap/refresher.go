package seatmap

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/cinema-seat-checkout/internal/clock"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/model"
	"github.com/iliyamo/cinema-seat-checkout/internal/schedule"
)

// Source fetches seat-map snapshots.
type Source interface {
	SeatMap(ctx context.Context, showtimeID int64) ([]model.Seat, error)
}

// Refresher polls the seat map of one showtime and reconciles the board.
type Refresher struct {
	src        Source
	board      *Board
	showtimeID int64
	timeout    time.Duration
	log        *logger.Logger

	interval *schedule.Interval
	group    singleflight.Group

	mu      sync.Mutex
	stopped bool
}

// NewRefresher builds a stopped refresher ticking every period.
func NewRefresher(src Source, board *Board, showtimeID int64, clk clock.Clock, period time.Duration, log *logger.Logger) *Refresher {
	r := &Refresher{
		src:        src,
		board:      board,
		showtimeID: showtimeID,
		timeout:    period,
		log:        logger.Or(log).WithComponent("seatmap"),
	}
	if r.timeout <= 0 {
		r.timeout = 3 * time.Second
	}
	r.interval = schedule.NewInterval(clk, period, r.tick)
	return r
}

// Start begins polling.
func (r *Refresher) Start() { r.interval.Start() }

// Pause suspends polling while the page is hidden.
func (r *Refresher) Pause() { r.interval.Pause() }

// Resume restarts polling after Pause.
func (r *Refresher) Resume() { r.interval.Resume() }

// Stop ends polling for good; late responses are discarded.
func (r *Refresher) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.interval.Stop()
}

// Refresh fetches and reconciles now.  Concurrent calls share one fetch.
func (r *Refresher) Refresh(ctx context.Context) error {
	key := strconv.FormatInt(r.showtimeID, 10)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.src.SeatMap(ctx, r.showtimeID)
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return nil
	}
	r.board.Reconcile(v.([]model.Seat))
	return nil
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.Refresh(ctx); err != nil {
		r.log.Debug("seat map refresh skipped", "showtime_id", r.showtimeID, "error", err)
	}
}
