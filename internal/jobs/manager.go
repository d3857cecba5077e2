package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/gwlsn/fetchray/internal/config"
	"github.com/gwlsn/fetchray/internal/engine"
	"github.com/gwlsn/fetchray/internal/logger"
	"github.com/gwlsn/fetchray/internal/util"
)

// History records finished jobs.
// This interface is implemented by internal/store.SQLiteStore.
type History interface {
	RecordFinished(job *Job) error
}

// SubmitRequest is a request to start a download.
type SubmitRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
	Title    string `json:"title"`
}

// Manager validates requests, runs one goroutine per job against the
// engine, and writes every job to a terminal state.
type Manager struct {
	registry *Registry
	engine   engine.Engine
	cfg      *config.Config
	policy   Policy
	cookies  *engine.CookieJar
	history  History

	// Probe dedupe and throttling
	probes  singleflight.Group
	limiter *rate.Limiter

	// Concurrency cap on engine sessions
	slots chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool // set by Shutdown; no new jobs after that
}

// NewManager creates a manager. history may be nil.
func NewManager(registry *Registry, eng engine.Engine, cfg *config.Config, history History) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	limit := rate.Inf
	if cfg.ProbeRate > 0 {
		limit = rate.Limit(cfg.ProbeRate)
	}
	burst := cfg.ProbeBurst
	if burst < 1 {
		burst = 1
	}

	slots := cfg.MaxConcurrent
	if slots < 1 {
		slots = 1
	}

	return &Manager{
		registry: registry,
		engine:   eng,
		cfg:      cfg,
		policy:   PolicyFromConfig(cfg),
		cookies:  engine.CookieJarFromConfig(cfg),
		history:  history,
		limiter:  rate.NewLimiter(limit, burst),
		slots:    make(chan struct{}, slots),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Registry returns the registry the manager writes to.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// validateURL checks that rawURL is an absolute http(s) URL.
func validateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", validationError("please enter a valid video URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", validationError(fmt.Sprintf("not a valid http(s) URL: %q", rawURL))
	}
	return rawURL, nil
}

// Probe returns media info for a URL. Concurrent probes of the same URL
// share one engine call; all probes are rate limited.
func (m *Manager) Probe(ctx context.Context, rawURL string) (*engine.MediaInfo, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if m.ctx.Err() != nil {
		return nil, errShuttingDown
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: probe throttled: %v", ErrInternal, err)
	}

	ch := m.probes.DoChan(target, func() (interface{}, error) {
		// Detached from the first caller so a cancelled request doesn't fail the others
		probeCtx, cancel := context.WithTimeout(m.ctx, m.cfg.ProbeTimeout.Std())
		defer cancel()

		start := time.Now()
		info, err := m.engine.Probe(probeCtx, target, engine.ProbeOptions{CookieFile: m.cookies.FileFor(target)})
		if err != nil {
			logger.Warn("Probe failed", "url", target, "error", err)
			return nil, &EngineError{Op: "probe", Err: err}
		}
		logger.Debug("Probe finished", "url", target, "formats", len(info.Formats), "elapsed", util.FormatDuration(time.Since(start)))
		return info, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*engine.MediaInfo), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit validates a request against a fresh probe and starts the job.
// Validation failures return before anything is registered.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if m.isClosed() {
		return nil, errShuttingDown
	}
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.FormatID) == "" {
		return nil, validationError("missing URL or format_id")
	}
	info, err := m.Probe(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if _, ok := engine.FormatIDs(info)[req.FormatID]; !ok {
		return nil, ErrFormatUnavailable
	}

	plan := m.policy.Plan(req.FormatID, info)
	title := resolveTitle(req.Title, info.Title)
	target := strings.TrimSpace(req.URL)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errShuttingDown
	}
	if m.registry.hasActiveTitle(title) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w %q", ErrTitleInUse, title)
	}
	e := m.registry.create(Spec{
		URL:       target,
		FormatID:  req.FormatID,
		Title:     title,
		AudioOnly: plan.AudioOnly,
	})
	m.wg.Add(1)
	m.mu.Unlock()

	fetch := &engine.FetchRequest{
		URL:             target,
		Format:          plan.Selector,
		OutputDir:       m.cfg.DownloadDir,
		BaseName:        title,
		TargetExt:       plan.TargetExt,
		Retries:         m.cfg.Retries,
		FragmentRetries: m.cfg.FragmentRetries,
		CookieFile:      m.cookies.FileFor(target),
		Post:            plan.Post,
	}

	logger.Info("Job queued",
		"job_id", e.job.ID,
		"url", target,
		"format_id", req.FormatID,
		"selector", plan.Selector,
		"audio_only", plan.AudioOnly)

	go m.run(e, fetch)

	return e.snapshot(), nil
}

// run drives one job from slot acquisition to its terminal write.
func (m *Manager) run(e *entry, req *engine.FetchRequest) {
	defer m.wg.Done()
	log := logger.With("job_id", e.job.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
			m.finalize(e, nil, internalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	// Wait for a free slot; a stop while waiting ends the job here
	select {
	case m.slots <- struct{}{}:
	case <-e.ctrl.Done():
		m.finalize(e, nil, nil)
		return
	case <-m.ctx.Done():
		e.ctrl.Stop()
		m.finalize(e, nil, nil)
		return
	}
	defer func() { <-m.slots }()

	jobCtx, jobCancel := context.WithCancel(m.ctx)
	defer jobCancel()

	if stopped := e.ctrl.Attach(SessionFunc(jobCancel)); stopped {
		m.finalize(e, nil, nil)
		return
	}
	defer e.ctrl.Detach()

	e.markStarted()
	log.Info("Job started", "output", req.OutputTemplate())

	res, err := m.engine.Fetch(jobCtx, req, m.forwarder(e))
	m.finalize(e, res, err)
}

// forwarder returns the progress callback for a job. While the controller
// is paused or stopped the event is dropped, so fields freeze in place.
func (m *Manager) forwarder(e *entry) engine.ProgressFunc {
	return func(ev engine.ProgressEvent) {
		if e.ctrl.Stopped() || e.ctrl.Paused() {
			return
		}
		switch ev.Status {
		case engine.ProgressDownloading:
			e.sink.Update(func(s *Status) {
				s.State = StateDownloading
				s.Percent = fmt.Sprintf("%.1f%%", ev.Percent())
				s.Speed = util.FormatRate(ev.Speed)
				s.ETA = util.FormatETA(ev.ETA)
				s.DownloadedBytes, s.TotalBytes = consistentBytes(ev.DownloadedBytes, ev.TotalBytes)
			})
		case engine.ProgressFinished:
			// Transfer done; postprocessing may still run, so not completed yet
			e.sink.Update(func(s *Status) {
				s.State = StateDownloading
				s.Percent = "100%"
				s.ETA = util.FormatETA(0)
				if ev.TotalBytes > 0 {
					s.DownloadedBytes, s.TotalBytes = consistentBytes(ev.TotalBytes, ev.TotalBytes)
				}
			})
		case engine.ProgressError:
			// The Fetch return value decides the terminal state
			logger.Debug("Engine reported error", "job_id", e.job.ID, "message", ev.Message)
		}
	}
}

// consistentBytes keeps downloaded <= total whenever the total is known.
func consistentBytes(downloaded, total int64) (int64, int64) {
	if total > 0 && downloaded > total {
		total = downloaded
	}
	return downloaded, total
}

// finalize writes the terminal status. A stop always wins over the engine
// result; otherwise an error ends in error and success in completed.
func (m *Manager) finalize(e *entry, res *engine.FetchResult, err error) {
	log := logger.With("job_id", e.job.ID)

	switch {
	case e.ctrl.Stopped():
		e.sink.Finish(StateStopped, nil)
		log.Info("Job stopped")
	case err != nil:
		if !errors.Is(err, ErrInternal) {
			err = &EngineError{Op: "fetch", Err: err}
		}
		e.sink.Finish(StateError, func(s *Status) {
			s.Error = err.Error()
		})
		log.Error("Job failed", "error", err)
	case res == nil || res.Path == "":
		e.sink.Finish(StateError, func(s *Status) {
			s.Error = "engine returned no output file"
		})
		log.Error("Job failed", "error", "no output file")
	default:
		e.sink.Finish(StateCompleted, func(s *Status) {
			s.Percent = "100%"
			s.ETA = util.FormatETA(0)
			s.FinalPath = res.Path
			s.Filename = filepath.Base(res.Path)
			s.FileSize = res.Size
		})
		log.Info("Job completed", "file", filepath.Base(res.Path), "size", util.FormatBytes(res.Size))
	}

	if m.history != nil && m.cfg.History {
		if err := m.history.RecordFinished(e.snapshot()); err != nil {
			log.Warn("Failed to record history", "error", err)
		}
	}
}

// Pause soft-pauses a job. Pausing a finished job is a no-op.
func (m *Manager) Pause(id string) (*Job, error) {
	e, err := m.registry.lookup(id)
	if err != nil {
		return nil, err
	}
	if !e.sink.Read().State.IsTerminal() && e.ctrl.Pause() {
		e.sink.Pause()
		logger.Info("Job paused", "job_id", id)
	}
	return e.snapshot(), nil
}

// Resume resumes a paused job. Resuming a stopped job is a no-op.
func (m *Manager) Resume(id string) (*Job, error) {
	e, err := m.registry.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.ctrl.Resume() {
		e.sink.Resume()
		logger.Info("Job resumed", "job_id", id)
	}
	return e.snapshot(), nil
}

// Stop interrupts a job. Stopping a finished job is a no-op.
func (m *Manager) Stop(id string) (*Job, error) {
	e, err := m.registry.lookup(id)
	if err != nil {
		return nil, err
	}
	if !e.sink.Read().State.IsTerminal() && e.ctrl.Stop() {
		e.sink.Finish(StateStopped, nil)
		logger.Info("Job stop requested", "job_id", id)
	}
	return e.snapshot(), nil
}

// Control applies a named action: pause, resume, or stop.
func (m *Manager) Control(id, action string) (*Job, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "pause":
		return m.Pause(id)
	case "resume":
		return m.Resume(id)
	case "stop":
		return m.Stop(id)
	default:
		if _, err := m.registry.lookup(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w %q", ErrInvalidAction, action)
	}
}

// Remove stops the job if it is still active and drops its record.
func (m *Manager) Remove(id string) error {
	if _, err := m.Stop(id); err != nil {
		return err
	}
	return m.registry.Remove(id)
}

// Artifact returns the finished file of a completed job.
func (m *Manager) Artifact(id string) (path string, name string, err error) {
	e, err := m.registry.lookup(id)
	if err != nil {
		return "", "", err
	}
	st := e.sink.Read()
	if st.State != StateCompleted {
		return "", "", ErrNotCompleted
	}
	if st.FinalPath == "" {
		return "", "", ErrArtifactMissing
	}
	info, err := os.Stat(st.FinalPath)
	if err != nil || !info.Mode().IsRegular() {
		return "", "", ErrArtifactMissing
	}
	return st.FinalPath, filepath.Base(st.FinalPath), nil
}

// Shutdown stops every active job and waits for their goroutines, or
// until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	for _, e := range m.registry.entries() {
		if !e.sink.Read().State.IsTerminal() && e.ctrl.Stop() {
			e.sink.Finish(StateStopped, nil)
		}
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
