package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pixelpick/internal/config"
	"pixelpick/internal/coords"
	"pixelpick/internal/grpcserver"
	"pixelpick/internal/logging"
	"pixelpick/internal/raster"
	"pixelpick/internal/report"
	"pixelpick/internal/sample"
	"pixelpick/internal/sampler"
	"pixelpick/internal/server"
	"pixelpick/internal/storage"
	"pixelpick/internal/watch"
)

type httpServeFunc func(ctx context.Context, srv *server.Server) error

type grpcServeFunc func(ctx context.Context, srv *grpcserver.Server, addr string) error

func defaultServeHTTP(ctx context.Context, srv *server.Server) error {
	return srv.Start(ctx)
}

func defaultServeGRPC(ctx context.Context, srv *grpcserver.Server, addr string) error {
	return srv.Start(ctx, addr)
}

// Root wires CLI commands to the picker engine.
type Root struct {
	cfg       *config.Config
	log       *slog.Logger
	serveHTTP httpServeFunc
	serveGRPC grpcServeFunc
}

// NewRoot constructs the CLI root.
func NewRoot(cfg *config.Config, logger *slog.Logger) *Root {
	if logger == nil {
		logger = slog.Default()
	}
	return &Root{
		cfg:       cfg,
		log:       logger,
		serveHTTP: defaultServeHTTP,
		serveGRPC: defaultServeGRPC,
	}
}

// session is the validated input of one picker run.
type session struct {
	runID        string
	templatePath string
	template     *raster.Raster
	origin       coords.Origin
}

// prepare fills missing template and origin from in, then validates both.
// Nothing is started until it succeeds.
func (r *Root) prepare(in *bufio.Reader, out io.Writer) (*session, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(r.cfg.Picker.TemplatePath) == "" {
		r.cfg.Picker.TemplatePath = prompt(in, out, "Template path (local PNG): ")
	}
	path := trimPath(r.cfg.Picker.TemplatePath)
	if path == "" {
		return nil, fmt.Errorf("template not found: no path given")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}

	if strings.TrimSpace(r.cfg.Picker.Origin) == "" {
		r.cfg.Picker.Origin = prompt(in, out, "Origin (tileX,tileY,pxX,pyY): ")
	}
	origin, err := coords.ParseOrigin(r.cfg.Picker.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}

	tmpl, err := raster.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	return &session{
		runID:        uuid.NewString(),
		templatePath: path,
		template:     tmpl,
		origin:       origin,
	}, nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// trimPath strips whitespace and the quotes a shell drag-and-drop adds.
func trimPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), `"'`)
}

func (r *Root) printBanner(out io.Writer, s *session) {
	fmt.Fprintf(out, "Template size: %d x %d\n", s.template.Width(), s.template.Height())
	fmt.Fprintf(out, "Origin: %s\n", s.origin)
	fmt.Fprintf(out, "Listening: http://%s/coords\n", r.cfg.ListenAddr())
	if addr := r.cfg.GRPCAddr(); addr != "" {
		fmt.Fprintf(out, "gRPC: %s\n", addr)
	}
	fmt.Fprintf(out, "Poll interval: %d ms\n", r.cfg.Picker.PollMs)
	if r.cfg.Picker.TileUnit > 0 {
		fmt.Fprintf(out, "Tile unit: %d (pinned)\n", r.cfg.Picker.TileUnit)
	}
	fmt.Fprintln(out, "Enable the userscript and open the map page.")
	fmt.Fprintln(out)
}

type engineStatus struct {
	RunID    string                `json:"run_id"`
	Template templateStatus        `json:"template"`
	Origin   coords.Origin         `json:"origin"`
	Sampler  sampler.Stats         `json:"sampler"`
	Store    sample.Stats          `json:"store"`
	GRPC     *grpcserver.Stats     `json:"grpc,omitempty"`
	Journal  *storage.JournalStats `json:"journal,omitempty"`
}

type templateStatus struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// runPicker starts ingress, the sampling loop and the optional journal and
// watcher, and blocks until ctx is cancelled or one of them fails.
func (r *Root) runPicker(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "pixelpick: browser map cursor -> template pixel color")
	fmt.Fprintln(out)

	s, err := r.prepare(bufio.NewReader(in), out)
	if err != nil {
		return err
	}
	r.printBanner(out, s)
	logging.LogStartup(r.log, s.runID, s.templatePath, s.template.Width(), s.template.Height(),
		s.origin.String(), r.cfg.PollInterval(), r.cfg.ListenAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	holder := raster.NewHolder(s.template)
	store := sample.NewStore()
	events := report.NewBroadcaster(r.log)
	sinks := report.Multi{report.NewConsole(out), report.NewLogger(r.log), events}

	var (
		db      *storage.Store
		journal *storage.Journal
	)
	if path := r.cfg.Journal.Path; path != "" {
		db, err = storage.New(path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		if err := db.RecordRunStart(storage.RunRecord{
			ID:             s.runID,
			TemplatePath:   s.templatePath,
			TemplateWidth:  s.template.Width(),
			TemplateHeight: s.template.Height(),
			Origin:         s.origin.String(),
			IntervalMs:     r.cfg.Picker.PollMs,
			StartedAt:      time.Now(),
		}); err != nil {
			r.log.Warn("journal run start failed", "error", err)
		}
		journal = storage.NewJournal(db, r.log)
		sinks = append(sinks, journal)
	}

	loop := sampler.New(store, coords.Mapper{Origin: s.origin, Unit: r.cfg.Picker.TileUnit}, holder, sinks, sampler.Options{
		Interval: r.cfg.PollInterval(),
		RunID:    s.runID,
		Logger:   r.log,
	})

	var grpcSrv *grpcserver.Server
	if r.cfg.GRPCAddr() != "" {
		grpcSrv = grpcserver.New(grpcserver.Options{Store: store, Events: events, Logger: r.log})
	}

	status := func() any {
		cur := holder.Current()
		st := engineStatus{
			RunID:    s.runID,
			Template: templateStatus{Path: s.templatePath, Width: cur.Width(), Height: cur.Height()},
			Origin:   s.origin,
			Sampler:  loop.Stats(),
			Store:    store.Stats(),
		}
		if grpcSrv != nil {
			gs := grpcSrv.Stats()
			st.GRPC = &gs
		}
		if journal != nil {
			js := journal.Stats()
			st.Journal = &js
		}
		return st
	}
	httpSrv := server.New(server.Options{
		Addr:   r.cfg.ListenAddr(),
		Store:  store,
		Events: events,
		Status: status,
		Logger: r.log,
	})

	var (
		wg    sync.WaitGroup
		errCh = make(chan error, 5)
	)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	spawn("http", func() error { return r.serveHTTP(ctx, httpSrv) })
	if grpcSrv != nil {
		addr := r.cfg.GRPCAddr()
		spawn("grpc", func() error { return r.serveGRPC(ctx, grpcSrv, addr) })
	}
	if r.cfg.Picker.WatchTemplate {
		tw, err := watch.NewTemplateWatcher(s.templatePath, func(path string) {
			next, err := raster.Load(path)
			if err != nil {
				logging.LogTemplateReload(r.log, path, 0, 0, err)
				return
			}
			holder.Swap(next)
			logging.LogTemplateReload(r.log, path, next.Width(), next.Height(), nil)
		}, r.log)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("watch template: %w", err)
		}
		spawn("watch", func() error { return tw.Run(ctx) })
	}

	// the journal outlives the loop so the final events are flushed
	journalCtx, stopJournal := context.WithCancel(context.Background())
	journalDone := make(chan struct{})
	if journal != nil {
		go func() {
			defer close(journalDone)
			journal.Run(journalCtx)
		}()
	} else {
		close(journalDone)
	}

	spawn("sampler", func() error { return loop.Run(ctx) })

	wg.Wait()
	close(errCh)
	events.Close()
	stopJournal()
	<-journalDone

	if db != nil {
		if err := db.RecordRunEnd(s.runID, time.Now()); err != nil {
			r.log.Warn("journal run end failed", "error", err)
		}
	}

	fmt.Fprintln(out, "exited.")

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// cmdHistory prints recent journaled runs and events.
func (r *Root) cmdHistory(out io.Writer, path, runID string, limit int) error {
	if path == "" {
		return fmt.Errorf("no journal configured; pass --journal or set journal.path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	db, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.RecentRuns(5)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Recent runs:\n")
		for _, run := range runs {
			ended := "running"
			if run.EndedAt != nil {
				ended = run.EndedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(out, "  %s  %s  %dx%d  origin=%s  started=%s  ended=%s\n",
				run.ID, run.TemplatePath, run.TemplateWidth, run.TemplateHeight, run.Origin,
				run.StartedAt.Local().Format(time.DateTime), ended)
		}
		fmt.Fprintln(out)
	}

	recs, err := db.RecentEvents(runID, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recent events:\n")
	for _, rec := range recs {
		fmt.Fprintf(out, "  %s #%d %s %s\n", rec.At.Local().Format(time.DateTime), rec.Seq, rec.Kind, describe(rec))
	}
	return nil
}

func describe(rec storage.EventRecord) string {
	switch {
	case rec.Reason != "":
		return rec.Reason
	case rec.RelX != nil && rec.ColorHex != "":
		return fmt.Sprintf("pixel (%d,%d) template (%d,%d) %s", deref(rec.CellX), deref(rec.CellY), *rec.RelX, deref(rec.RelY), rec.ColorHex)
	case rec.RelX != nil:
		return fmt.Sprintf("pixel (%d,%d) template (%d,%d)", deref(rec.CellX), deref(rec.CellY), *rec.RelX, deref(rec.RelY))
	}
	return ""
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
