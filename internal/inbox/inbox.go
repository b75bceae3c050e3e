package inbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/transfer"
	"github.com/MimeLyc/study-assistant/pkg/file"
	"github.com/MimeLyc/study-assistant/pkg/icron"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

// KeyPrefix marks inbox bookkeeping keys: inbox:<path> -> job identifier.
const KeyPrefix = "inbox:"

type Submitter interface {
	Submit(ctx context.Context, files []transfer.File) (*jobs.SubmitReceipt, error)
}

type Tracker interface {
	Track(id, source string) (*jobs.TrackedJob, bool)
}

type Config struct {
	Dir         string
	CronExpr    string
	Concurrency int
	Debounce    time.Duration
}

// Inbox submits PDFs dropped into a folder, one job per file, on a cron
// schedule and optionally on filesystem events.
type Inbox struct {
	cfg       Config
	submitter Submitter
	tracker   Tracker
	store     jobs.Store
	cron      *cron.Cron

	group singleflight.Group

	mu       sync.RWMutex
	cronExpr string
	entryID  cron.EntryID
	watching bool
	since    time.Time
	lastScan *ScanReport
}

// ScanReport summarizes one scan.
type ScanReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Found      int       `json:"found"`
	Submitted  int       `json:"submitted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// Status is the inbox state reported by the web shell.
type Status struct {
	Dir      string             `json:"dir"`
	CronExpr string             `json:"cron_expr"`
	Watching bool               `json:"watching"`
	Trigger  *icron.TriggerInfo `json:"trigger,omitempty"`
	LastScan *ScanReport        `json:"last_scan,omitempty"`
}

func New(cfg Config, submitter Submitter, tracker Tracker, store jobs.Store, c *cron.Cron) (*Inbox, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("inbox dir is required")
	}
	if _, err := icron.Parser.Parse(cfg.CronExpr); err != nil {
		return nil, fmt.Errorf("invalid inbox cron: %w", err)
	}
	if submitter == nil || store == nil {
		return nil, fmt.Errorf("inbox needs a submitter and a store")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &Inbox{
		cfg:       cfg,
		submitter: submitter,
		tracker:   tracker,
		store:     store,
		cron:      c,
		cronExpr:  cfg.CronExpr,
	}, nil
}

// Schedule registers the periodic scan on the cron engine.
func (i *Inbox) Schedule(ctx context.Context) error {
	if i.cron == nil {
		return fmt.Errorf("no cron engine configured")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.scheduleLocked(ctx, i.cronExpr)
}

// Reschedule replaces the scan schedule with expr.
func (i *Inbox) Reschedule(ctx context.Context, expr string) error {
	if _, err := icron.Parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid inbox cron: %w", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if expr == i.cronExpr && i.entryID != 0 {
		return nil
	}
	if i.cron == nil {
		i.cronExpr = expr
		return nil
	}
	if i.entryID != 0 {
		i.cron.Remove(i.entryID)
		i.entryID = 0
	}
	return i.scheduleLocked(ctx, expr)
}

func (i *Inbox) scheduleLocked(ctx context.Context, expr string) error {
	id, err := i.cron.AddFunc(expr, func() {
		if _, err := i.Scan(ctx); err != nil {
			log.Error("Inbox scan of %s failed: %v", i.cfg.Dir, err)
		}
	})
	if err != nil {
		return err
	}
	i.entryID = id
	i.cronExpr = expr
	log.Info("Inbox %s scheduled with %q", i.cfg.Dir, expr)
	return nil
}

// Scan submits every new PDF in the inbox folder. Concurrent calls share
// one run.
func (i *Inbox) Scan(ctx context.Context) (ScanReport, error) {
	v, err, _ := i.group.Do("scan", func() (any, error) {
		return i.scan(ctx)
	})
	if err != nil {
		return ScanReport{}, err
	}
	return v.(ScanReport), nil
}

func (i *Inbox) scan(ctx context.Context) (ScanReport, error) {
	i.mu.RLock()
	since := i.since
	i.mu.RUnlock()

	report := ScanReport{StartedAt: time.Now()}
	paths, err := file.FindPDFsAfter(i.cfg.Dir, since)
	if err != nil {
		return report, fmt.Errorf("find pdfs in %s: %w", i.cfg.Dir, err)
	}
	report.Found = len(paths)

	var (
		mu      sync.Mutex
		pending []string
	)
	for _, path := range paths {
		if _, ok, err := i.store.Get(ctx, KeyPrefix+path); err != nil {
			return report, err
		} else if ok {
			report.Skipped++
			continue
		}
		pending = append(pending, path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Concurrency)
	for _, path := range pending {
		g.Go(func() error {
			id, err := i.submit(gctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", path, err))
				log.Warn("Inbox failed to submit %s: %v", path, err)
				return nil
			}
			report.Submitted++
			log.Info("Inbox submitted %s as job %s", path, id)
			return nil
		})
	}
	_ = g.Wait()
	report.FinishedAt = time.Now()

	i.mu.Lock()
	// failed files stay eligible for the next scan
	if report.Failed == 0 {
		i.since = report.StartedAt
	}
	snapshot := report
	i.lastScan = &snapshot
	i.mu.Unlock()

	return report, ctx.Err()
}

func (i *Inbox) submit(ctx context.Context, path string) (string, error) {
	files, err := transfer.LoadFiles(ctx, path)
	if err != nil {
		return "", err
	}
	receipt, err := i.submitter.Submit(ctx, files)
	if err != nil {
		return "", err
	}
	if err := i.store.Put(ctx, KeyPrefix+path, receipt.UUID); err != nil {
		return receipt.UUID, fmt.Errorf("record submission: %w", err)
	}
	if i.tracker != nil {
		i.tracker.Track(receipt.UUID, jobs.SourceInbox)
	}
	return receipt.UUID, nil
}

func (i *Inbox) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()

	status := Status{
		Dir:      i.cfg.Dir,
		CronExpr: i.cronExpr,
		Watching: i.watching,
	}
	if info, err := icron.GetTriggerInfo(i.cronExpr, time.Now()); err == nil {
		status.Trigger = info
	}
	if i.lastScan != nil {
		report := *i.lastScan
		status.LastScan = &report
	}
	return status
}
