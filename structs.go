package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/clients/stream_client"
	"github.com/gookit/color"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	_ "github.com/go-sql-driver/mysql"
)

var errFeedNil = errors.New("stream feed nil")

// Monitor keeps one relay subscription alive and hands every observed
// transaction to its sink.
type Monitor struct {
	feed ingest.Feed

	// reconnects are paced so a relay refusing us is not hammered
	reconnectLimiter *rate.Limiter
	recvTimeout      time.Duration
	metrics          *ingest.Metrics

	// dbConnection is optional; when set every sighting is recorded
	dbConnection *sql.DB

	// dumpEvents spew-dumps each event, for debugging
	dumpEvents bool

	attempts uint64
}

type monitorConfig struct {
	reconnectEvery time.Duration
	recvTimeout    time.Duration
	metrics        *ingest.Metrics
	db             *sql.DB
	dumpEvents     bool
}

// NewMonitor creates a monitor over feed.
func NewMonitor(feed ingest.Feed, cfg monitorConfig) (*Monitor, error) {
	if feed == nil {
		return nil, errFeedNil
	}

	if cfg.reconnectEvery <= 0 {
		cfg.reconnectEvery = time.Second
	}

	return &Monitor{
		feed:             feed,
		reconnectLimiter: rate.NewLimiter(rate.Every(cfg.reconnectEvery), 1),
		recvTimeout:      cfg.recvTimeout,
		metrics:          cfg.metrics,
		dbConnection:     cfg.db,
		dumpEvents:       cfg.dumpEvents,
	}, nil
}

func (m *Monitor) status(msg interface{}) {
	log.Println("Monitor", fmt.Sprintf("%v", msg))
}

func (m *Monitor) statusy(msg interface{}) {
	log.Println(color.Yellow.Sprint("Monitor (Y)"), fmt.Sprintf("%v", msg))
}

func (m *Monitor) statusg(msg interface{}) {
	log.Println(color.Green.Sprint("Monitor (G)"), fmt.Sprintf("%v", msg))
}

func (m *Monitor) statusr(msg interface{}) {
	log.Println(color.Red.Sprint("Monitor (R)"), fmt.Sprintf("%v", msg))
}

// compile-time check that the nextblock client plugs into the loop
var _ ingest.Feed = (*stream_client.Client)(nil)
