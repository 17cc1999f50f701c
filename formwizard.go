// Package formwizard assembles one form page: both views, autosave with
// offline fallback, wizard navigation, the view toggle and the live
// preview, all talking over one event bus.
package formwizard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formwizard/pkg/autofill"
	"github.com/goliatone/go-formwizard/pkg/autosave"
	"github.com/goliatone/go-formwizard/pkg/beacon"
	"github.com/goliatone/go-formwizard/pkg/clock"
	"github.com/goliatone/go-formwizard/pkg/config"
	"github.com/goliatone/go-formwizard/pkg/events"
	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/network"
	"github.com/goliatone/go-formwizard/pkg/offline"
	"github.com/goliatone/go-formwizard/pkg/preview"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/status"
	"github.com/goliatone/go-formwizard/pkg/storage"
	"github.com/goliatone/go-formwizard/pkg/viewtoggle"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Page is one live form page. Components are exposed for front ends; the
// page owns their lifecycle.
type Page struct {
	Definition *schema.Definition
	Config     config.Config
	Form       *form.Page
	Questions  []wizard.Question
	Session    *form.Session

	Bus      *events.Bus
	Storage  storage.Backend
	Offline  *offline.Store
	Monitor  *network.Monitor
	Status   *status.Indicator
	Autosave *autosave.Controller
	Wizard   *wizard.Navigator
	Toggle   *viewtoggle.Toggle
	Autofill *autofill.Filler
	Beacon   *beacon.Client
	// Preview is nil unless a preview URL and an engine are configured.
	Preview *preview.Controller

	logger  *zap.Logger
	closers []func() error
}

type options struct {
	logger        *zap.Logger
	clock         clock.Clock
	httpClient    *http.Client
	fs            afero.Fs
	backend       storage.Backend
	saver         autosave.Saver
	online        bool
	statusView    status.View
	previewEngine preview.Engine
	previewView   preview.View
	fieldBoxes    map[string][]preview.FieldBox
	confirmer     viewtoggle.Confirmer
	control       viewtoggle.Control
	wizardOpts    []wizard.Option
}

// Option configures NewPage.
type Option func(*options)

// WithLogger sets the root logger; components get named children.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock shared by every component.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithHTTPClient is used for saves, previews and beacons.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithFs backs the file store driver. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithStorage bypasses the configured store driver.
func WithStorage(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithSaver bypasses the HTTP save client.
func WithSaver(s autosave.Saver) Option {
	return func(o *options) { o.saver = s }
}

// WithOnline sets the initial connectivity. Defaults to true.
func WithOnline(online bool) Option {
	return func(o *options) { o.online = online }
}

// WithStatusView renders the save indicator.
func WithStatusView(view status.View) Option {
	return func(o *options) { o.statusView = view }
}

// WithPreview enables the live preview with engine drawing into view.
func WithPreview(engine preview.Engine, view preview.View, boxes map[string][]preview.FieldBox) Option {
	return func(o *options) {
		o.previewEngine = engine
		o.previewView = view
		o.fieldBoxes = boxes
	}
}

// WithToggle supplies the unsaved-changes confirmation and the toggle
// widget.
func WithToggle(confirmer viewtoggle.Confirmer, control viewtoggle.Control) Option {
	return func(o *options) {
		o.confirmer = confirmer
		o.control = control
	}
}

// WithWizardOptions forwards extra navigator options, such as an animator
// or presenter.
func WithWizardOptions(opts ...wizard.Option) Option {
	return func(o *options) { o.wizardOpts = append(o.wizardOpts, opts...) }
}

// NewPage builds and connects every component for def. On error anything
// already opened is closed.
func NewPage(def *schema.Definition, cfg config.Config, opts ...Option) (_ *Page, err error) {
	o := options{logger: zap.NewNop(), clock: clock.Real(), online: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	built, err := def.Build()
	if err != nil {
		return nil, err
	}

	p := &Page{
		Definition: def,
		Config:     cfg,
		Form:       built.Page,
		Questions:  built.Questions,
		Bus:        events.NewBus(),
		logger:     o.logger.Named("page").With(zap.String("form", def.Code)),
	}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	p.Storage, err = p.openStorage(o, cfg.Store)
	if err != nil {
		return nil, err
	}

	p.Monitor = network.NewMonitor(p.Bus, o.online, network.WithLogger(o.logger))
	p.Status = status.New(o.statusView, statusOptions(o, cfg)...)
	p.push(func() error { p.Status.Close(); return nil })

	p.Offline = offline.NewStore(p.Storage, offline.WithLogger(o.logger), offline.WithClock(o.clock))
	p.Session = form.NewSession(def.Code, built.Page.Key, len(built.Questions))

	saver := o.saver
	if saver == nil {
		saver, err = p.newClient(o, cfg)
		if err != nil {
			return nil, err
		}
	}
	p.Autosave = autosave.New(built.Page, saver,
		autosave.WithClock(o.clock),
		autosave.WithLogger(o.logger),
		autosave.WithBus(p.Bus),
		autosave.WithStore(p.Offline),
		autosave.WithMonitor(p.Monitor),
		autosave.WithIndicator(p.Status),
		autosave.WithDelay(cfg.Debounce.D()),
		autosave.WithPageKey(built.Page.Key),
		autosave.WithLocal(p.Storage),
		autosave.WithSession(p.Session),
	)
	p.push(func() error { p.Autosave.Close(); return nil })

	wizardOpts := append([]wizard.Option{
		wizard.WithSession(p.Session),
		wizard.WithStorage(p.Storage),
		wizard.WithBus(p.Bus),
		wizard.WithClock(o.clock),
		wizard.WithLogger(o.logger),
		wizard.WithReducedMotion(cfg.ReducedMotion),
		wizard.WithAutoAdvance(cfg.AutoAdvance.D()),
		wizard.WithProgressTTL(cfg.ProgressTTL.D()),
	}, o.wizardOpts...)
	p.Wizard, err = wizard.New(def.Code, built.Questions, wizardOpts...)
	if err != nil {
		return nil, err
	}
	p.push(func() error { p.Wizard.Close(); return nil })

	p.Toggle = viewtoggle.New(built.Page.Wizard, built.Page.Traditional,
		viewtoggle.WithStorage(p.Storage),
		viewtoggle.WithBus(p.Bus),
		viewtoggle.WithConfirmer(o.confirmer),
		viewtoggle.WithControl(o.control),
		viewtoggle.WithLogger(o.logger),
	)
	p.push(func() error { p.Toggle.Close(); return nil })

	p.Autofill = autofill.New(built.Page, p.Bus)
	p.Beacon = beacon.New(o.httpClient, origin(firstNonEmpty(def.SaveURL, cfg.SaveURL)),
		beacon.WithCSRF(cfg.CSRFHeader, cfg.CSRFToken),
		beacon.WithLogger(o.logger),
	)
	p.push(func() error { p.Beacon.Wait(); return nil })

	previewURL := firstNonEmpty(def.PreviewURL, cfg.PreviewURL)
	if previewURL != "" && o.previewEngine != nil {
		fetcher := preview.NewHTTPFetcher(previewURL, o.httpClient, o.clock)
		p.Preview = preview.New(fetcher, o.previewEngine, o.previewView,
			preview.WithBus(p.Bus),
			preview.WithClock(o.clock),
			preview.WithLogger(o.logger),
			preview.WithDelay(cfg.PreviewDebounce.D()),
			preview.WithFieldBoxes(o.fieldBoxes),
		)
		p.push(func() error { p.Preview.Close(); return nil })
	}

	mode := p.Toggle.Connect()
	index := p.Wizard.Connect()
	if p.Preview != nil {
		p.Preview.Connect()
	}
	p.logger.Debug("page ready", zap.String("mode", string(mode)), zap.Int("question", index))
	return p, nil
}

// Close tears the page down in reverse construction order, cancelling
// every pending debounce and timer.
func (p *Page) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Sync reconciles this page's pending offline record.
func (p *Page) Sync(ctx context.Context) error {
	return p.Autosave.SyncOfflineData(ctx)
}

func (p *Page) push(fn func() error) {
	p.closers = append(p.closers, fn)
}

func (p *Page) openStorage(o options, cfg config.Store) (storage.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	return OpenStore(cfg, o.fs, p.push)
}

// OpenStore opens the configured backend. Backends needing teardown
// register it through onClose.
func OpenStore(cfg config.Store, fs afero.Fs, onClose func(func() error)) (storage.Backend, error) {
	switch cfg.Driver {
	case config.StoreFile:
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return storage.NewFile(fs, cfg.Path), nil
	case config.StoreSQLite:
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		if onClose != nil {
			onClose(db.Close)
		}
		return db, nil
	case config.StoreMemory, "":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("formwizard: unknown store driver %q", cfg.Driver)
	}
}

func (p *Page) newClient(o options, cfg config.Config) (*autosave.Client, error) {
	return autosave.NewClient(firstNonEmpty(p.Definition.SaveURL, cfg.SaveURL),
		autosave.WithHTTPClient(o.httpClient),
		autosave.WithAccept(cfg.Accept),
		autosave.WithCSRF(cfg.CSRFHeader, cfg.CSRFToken),
		autosave.WithClientLogger(o.logger),
	)
}

func statusOptions(o options, cfg config.Config) []status.Option {
	opts := []status.Option{
		status.WithClock(o.clock),
		status.WithRevertDelay(cfg.SavedRevert.D()),
		status.WithLogger(o.logger),
	}
	if name := strings.TrimSpace(cfg.Theme.Name); name != "" {
		manifest := &theme.Manifest{Name: name, Tokens: cfg.Theme.Tokens}
		opts = append(opts, status.WithThemeSelector(status.NewStaticSelector(manifest), name, cfg.Theme.Variant))
	}
	return opts
}

// origin trims raw to scheme and host.
func origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
