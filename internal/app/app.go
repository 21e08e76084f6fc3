// Package app wires the camera, recognizer, call state machine and their
// side effects into the gesturecall service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/bus"
	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/capture"
	"github.com/ayusman/gesturecall/internal/config"
	"github.com/ayusman/gesturecall/internal/gesture"
	"github.com/ayusman/gesturecall/internal/overlay"
	"github.com/ayusman/gesturecall/internal/plugin"
	"github.com/ayusman/gesturecall/internal/recognizer"
	"github.com/ayusman/gesturecall/internal/store"
	"github.com/ayusman/gesturecall/internal/telemetry"
)

// ErrRecognizerUnavailable is returned by StartCall until the recognizer
// has loaded.
var ErrRecognizerUnavailable = errors.New("recognizer unavailable")

// Status messages.
const (
	StatusLoading = "Loading model..."
	StatusReady   = "Model loaded! Click Start Call"
)

// Options holds the collaborators of an App. Only Config is required;
// nil fields get defaults built from it.
type Options struct {
	Config    config.Config
	Logger    *logrus.Logger
	Camera    capture.Camera
	Provider  recognizer.Provider
	Store     *store.Store
	Publisher bus.Publisher
	Metrics   *telemetry.Metrics
}

// Status is the observable state of the service.
type Status struct {
	Message         string       `json:"message"`
	Call            call.Session `json:"call"`
	RecognizerReady bool         `json:"recognizer_ready"`
	Loading         bool         `json:"loading"`
	CameraOpen      bool         `json:"camera_open"`
}

// App is the running service.
type App struct {
	cfg        config.Config
	log        *logrus.Entry
	camera     capture.Camera
	handle     *recognizer.Handle
	canvas     *overlay.Canvas
	machine    *call.Machine
	loop       *Loop
	store      *store.Store
	plugins    *plugin.Manager
	dispatcher *plugin.Dispatcher
	publisher  bus.Publisher
	metrics    *telemetry.Metrics

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	sideEffects sync.WaitGroup
	loopDone    chan struct{}
	stopOnce    sync.Once

	mu        sync.RWMutex
	cameraErr error
	started   bool
}

// New builds an App. Nothing is opened or loaded until Start.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.Noop()
	}
	if opts.Publisher == nil {
		opts.Publisher = bus.Nop{}
	}
	if opts.Camera == nil {
		opts.Camera = newCamera(cfg.Camera)
	}
	if opts.Provider == nil {
		p, err := newProvider(cfg.Recognizer)
		if err != nil {
			return nil, err
		}
		opts.Provider = p
	}

	bindings, err := pluginBindings(cfg.Plugins.Bindings)
	if err != nil {
		return nil, err
	}

	log := opts.Logger.WithField("component", "app")
	ctx, cancel := context.WithCancel(context.Background())

	style := overlay.DefaultStyle()
	if cfg.Overlay.LineWidth > 0 {
		style.LineWidth = cfg.Overlay.LineWidth
	}
	if cfg.Overlay.Radius > 0 {
		style.Radius = cfg.Overlay.Radius
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		camera:    opts.Camera,
		handle:    recognizer.NewHandle(opts.Provider),
		canvas:    overlay.NewCanvas(cfg.Overlay.Width, cfg.Overlay.Height, overlay.SkeletonRenderer{}, style),
		store:     opts.Store,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.machine = call.NewMachine(call.Options{
		Accept:  gesture.Label(cfg.Call.AcceptGesture),
		Decline: gesture.Label(cfg.Call.DeclineGesture),
	})

	pluginLog := opts.Logger.WithField("component", "plugin")
	a.plugins = plugin.NewManager(cfg.Plugins.Dir, pluginLog)
	a.dispatcher = plugin.NewDispatcher(a.plugins,
		plugin.NewExecutor(time.Duration(cfg.Plugins.TimeoutMS)*time.Millisecond),
		bindings, pluginLog)

	a.loop = NewLoop(LoopConfig{
		Camera:  a.camera,
		Handle:  a.handle,
		Canvas:  a.canvas,
		Machine: a.machine,
		Metrics: a.metrics,
		Log:     opts.Logger.WithField("component", "loop"),
		FPS:     cfg.Loop.FPS,
		Caption: cfg.Overlay.Caption,
	})

	a.unsubscribe = a.machine.Subscribe(a.onTransition)
	return a, nil
}

func newCamera(cfg config.CameraConfig) capture.Camera {
	opts := capture.Options{
		DeviceID: cfg.Device,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FPS,
	}
	if cfg.Mock {
		w, h := opts.Width, opts.Height
		if w <= 0 || h <= 0 {
			w, h = capture.DefaultWidth, capture.DefaultHeight
		}
		return capture.NewMockCamera([]*gocv.Mat{capture.TestPattern(w, h)}, true)
	}
	return capture.NewCamera(opts)
}

func newProvider(cfg config.RecognizerConfig) (recognizer.Provider, error) {
	var p recognizer.Provider
	switch cfg.Provider {
	case "mediapipe", "":
		p = recognizer.NewMediaPipeProvider(recognizer.Config{
			MaxHands:        cfg.MaxHands,
			MinConfidence:   cfg.MinConfidence,
			MinTrackingConf: cfg.MinTrackingConfidence,
			ScriptPath:      cfg.ScriptPath,
			PythonPath:      cfg.PythonPath,
		})
	case "mock":
		p = &recognizer.MockProvider{}
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", cfg.Provider)
	}

	if cfg.Templates {
		tol := cfg.TemplateTolerance
		if tol <= 0 {
			tol = gesture.DefaultTolerance
		}
		p = &gesture.ClassifyingProvider{
			Provider: p,
			Matcher:  gesture.NewStaticMatcher(gesture.BuiltinTemplates(tol)...),
		}
	}
	return p, nil
}

func pluginBindings(in []config.PluginBinding) ([]plugin.Binding, error) {
	out := make([]plugin.Binding, 0, len(in))
	for i, b := range in {
		cfgJSON, err := config.JSON(b.Config)
		if err != nil {
			return nil, fmt.Errorf("plugin binding %d config: %w", i, err)
		}
		params, err := config.JSON(b.Params)
		if err != nil {
			return nil, fmt.Errorf("plugin binding %d params: %w", i, err)
		}
		out = append(out, plugin.Binding{
			Event:  b.Event,
			Plugin: b.Plugin,
			Action: b.Action,
			Config: cfgJSON,
			Params: params,
		})
	}
	return out, nil
}

// Start opens the camera, begins loading the recognizer in the background
// and runs the detection loop. A camera failure is reported through
// Status rather than returned.
func (a *App) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.loopDone = make(chan struct{})
	a.mu.Unlock()

	if err := a.plugins.Discover(); err != nil {
		a.log.WithError(err).Warn("plugin discovery failed")
	}

	if err := a.camera.Open(); err != nil {
		a.mu.Lock()
		a.cameraErr = err
		a.mu.Unlock()
		a.log.WithError(err).Warn("camera unavailable")
	}

	go func() {
		if err := a.RetryRecognizer(a.ctx); err != nil && !errors.Is(err, recognizer.ErrInitializing) && !errors.Is(err, recognizer.ErrClosed) {
			a.log.WithError(err).Error("recognizer failed to load")
		}
	}()

	go func() {
		defer close(a.loopDone)
		a.loop.Run(a.ctx)
	}()

	a.log.Info("gesturecall started")
	return nil
}

// Stop ends the loop, waits for plugin runs in progress and releases the
// camera and recognizer.
func (a *App) Stop() {
	a.stopOnce.Do(a.stop)
}

func (a *App) stop() {
	a.cancel()
	a.mu.RLock()
	done := a.loopDone
	a.mu.RUnlock()
	if done != nil {
		<-done
	}
	a.unsubscribe()
	a.sideEffects.Wait()

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("close camera")
	}
	if err := a.handle.Close(); err != nil {
		a.log.WithError(err).Warn("close recognizer")
	}
	if err := a.canvas.Close(); err != nil {
		a.log.WithError(err).Warn("close canvas")
	}
	a.publisher.Close()

	a.log.Info("gesturecall stopped")
}

// RetryRecognizer loads the recognizer if it is not ready. It is called
// once by Start; later calls retry after a failure.
func (a *App) RetryRecognizer(ctx context.Context) error {
	if a.handle.Ready() {
		return nil
	}
	if t := a.cfg.Recognizer.InitTimeoutMS; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Millisecond)
		defer cancel()
	}

	a.log.Info("loading recognizer")
	if err := a.handle.Initialize(ctx); err != nil {
		return err
	}
	a.log.Info("recognizer loaded")
	return nil
}

// StartCall simulates an incoming call. It fails while the recognizer is
// unavailable.
func (a *App) StartCall() (call.Session, error) {
	if !a.handle.Ready() {
		return a.machine.Snapshot(), ErrRecognizerUnavailable
	}
	return a.machine.StartCall(), nil
}

// Status returns the current service status.
func (a *App) Status() Status {
	return Status{
		Message:         a.message(),
		Call:            a.machine.Snapshot(),
		RecognizerReady: a.handle.Ready(),
		Loading:         a.handle.Loading(),
		CameraOpen:      a.camera.IsOpen(),
	}
}

func (a *App) message() string {
	a.mu.RLock()
	camErr := a.cameraErr
	a.mu.RUnlock()

	switch {
	case camErr != nil:
		return "Camera unavailable: " + camErr.Error()
	case a.handle.Ready():
		return StatusReady
	case a.handle.Loading():
		return StatusLoading
	case a.handle.Err() != nil:
		return "Model load error: " + a.handle.Err().Error()
	}
	return StatusLoading
}

// onTransition records the session, publishes it and runs bound plugins.
// It runs synchronously inside the machine's notification.
func (a *App) onTransition(s call.Session) {
	event := eventName(s)
	if event == "" {
		return
	}

	log := a.log.WithFields(logrus.Fields{"session": s.ID, "event": event})

	switch event {
	case plugin.EventRinging:
		a.metrics.CallStarted(a.ctx)
	default:
		a.metrics.CallDecided(a.ctx, string(s.Decision))
	}

	if a.store != nil {
		if err := a.record(event, s); err != nil {
			log.WithError(err).Warn("record call")
		}
	}

	if err := a.publisher.Publish(a.ctx, event, s); err != nil {
		log.WithError(err).Warn("publish call event")
	}

	if a.dispatcher.Bound(event) && a.ctx.Err() == nil {
		ev := plugin.Event{
			Name:     event,
			CallID:   s.ID,
			Decision: string(s.Decision),
			Gesture:  string(s.Gesture),
		}
		a.sideEffects.Add(1)
		go func() {
			defer a.sideEffects.Done()
			a.runPlugins(ev)
		}()
	}
}

func (a *App) record(event string, s call.Session) error {
	if event == plugin.EventRinging {
		return a.store.Calls().Create(&store.Call{ID: s.ID, StartedAt: s.StartedAt})
	}
	return a.store.Calls().Decide(s.ID, string(s.Decision), string(s.Gesture), s.DecidedAt)
}

func (a *App) runPlugins(ev plugin.Event) {
	for _, run := range a.dispatcher.Dispatch(a.ctx, ev) {
		a.metrics.PluginRun(a.ctx, run.Binding.Plugin, run.Failed())
		if a.store == nil {
			continue
		}
		err := a.store.Actions().Record(&store.ActionRun{
			CallID:     ev.CallID,
			Event:      ev.Name,
			PluginName: run.Binding.Plugin,
			ActionName: run.Binding.Action,
			Error:      run.Error(),
			Duration:   run.Duration,
			ExecutedAt: time.Now(),
		})
		if err != nil {
			a.log.WithError(err).Warn("record plugin run")
		}
	}
}

func eventName(s call.Session) string {
	switch {
	case s.Phase == call.Ringing:
		return plugin.EventRinging
	case s.Decision == call.Accepted:
		return plugin.EventAccepted
	case s.Decision == call.Declined:
		return plugin.EventDeclined
	}
	return ""
}

// Machine returns the call state machine.
func (a *App) Machine() *call.Machine {
	return a.machine
}

// Canvas returns the annotated preview.
func (a *App) Canvas() *overlay.Canvas {
	return a.canvas
}

// Store returns the call history store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager {
	return a.plugins
}

// Loop returns the detection loop.
func (a *App) Loop() *Loop {
	return a.loop
}
