package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/call"
	"github.com/ayusman/gesturecall/internal/capture"
	"github.com/ayusman/gesturecall/internal/gesture"
	"github.com/ayusman/gesturecall/internal/overlay"
	"github.com/ayusman/gesturecall/internal/recognizer"
	"github.com/ayusman/gesturecall/internal/telemetry"
)

// DefaultLoopFPS is the display cadence used when none is configured.
const DefaultLoopFPS = 30

// LoopConfig wires a Loop to its collaborators.
type LoopConfig struct {
	Camera  capture.Camera
	Handle  *recognizer.Handle
	Canvas  *overlay.Canvas
	Machine *call.Machine
	Metrics *telemetry.Metrics
	Log     *logrus.Entry
	FPS     int
	// Caption writes the call status onto every presented frame.
	Caption bool
	// Now is the timestamp source. Defaults to time.Now.
	Now func() time.Time
}

// Loop samples the camera at display cadence and, while a call is
// ringing, feeds frames to the recognizer. At most one recognizer call is
// in flight; frames that arrive while it runs are only previewed.
type Loop struct {
	camera   capture.Camera
	handle   *recognizer.Handle
	canvas   *overlay.Canvas
	machine  *call.Machine
	metrics  *telemetry.Metrics
	log      *logrus.Entry
	interval time.Duration
	caption  bool
	now      func() time.Time

	busy   atomic.Bool
	wg     sync.WaitGroup
	tsMu   sync.Mutex
	lastTs int64

	// Hands from the latest recognition, redrawn on every presented frame
	// while their session is ringing.
	handsMu      sync.Mutex
	hands        []recognizer.HandLandmarks
	handsSession string
}

// NewLoop creates a loop. It does nothing until Run or Cycle is called.
func NewLoop(cfg LoopConfig) *Loop {
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultLoopFPS
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.Noop()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loop{
		camera:   cfg.Camera,
		handle:   cfg.Handle,
		canvas:   cfg.Canvas,
		machine:  cfg.Machine,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
		interval: time.Second / time.Duration(fps),
		caption:  cfg.Caption,
		now:      cfg.Now,
		lastTs:   -1,
	}
}

// Interval returns the time between cycles.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Run executes a cycle on every tick until ctx is done. Before returning
// it waits for the outstanding recognizer call, so no result is applied
// after Run returns.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.wg.Wait()

	l.log.WithField("interval", l.interval).Info("detection loop started")
	defer l.log.Info("detection loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cycle(ctx)
		}
	}
}

// Cycle runs one detection cycle and returns its outcome, one of the
// telemetry.Cycle* values. It never blocks on the recognizer.
func (l *Loop) Cycle(ctx context.Context) string {
	outcome := l.cycle(ctx)
	l.metrics.Cycle(ctx, outcome)
	return outcome
}

func (l *Loop) cycle(ctx context.Context) string {
	if ctx.Err() != nil || l.canvas == nil || l.camera == nil || !l.camera.IsOpen() {
		return telemetry.CycleNotReady
	}
	rec := l.handle.Get()
	if rec == nil {
		return telemetry.CycleNotReady
	}

	frame, err := l.camera.ReadFrame()
	if err != nil {
		l.log.WithError(err).Debug("frame not available")
		return telemetry.CycleNotReady
	}

	session := l.machine.Snapshot()

	l.canvas.Present(frame)
	l.canvas.DrawHands(l.currentHands(session))
	if l.caption {
		l.canvas.Caption(session.Status)
	}

	if !session.Ringing() {
		frame.Close()
		return telemetry.CycleIdle
	}
	if !l.busy.CompareAndSwap(false, true) {
		frame.Close()
		return telemetry.CycleBusy
	}

	ts := l.nextTimestamp()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.busy.Store(false)
		defer frame.Close()
		defer func() {
			if r := recover(); r != nil {
				l.log.WithField("panic", r).Error("recognition panicked")
			}
		}()
		l.recognize(ctx, rec, frame, ts, session.ID)
	}()
	return telemetry.CycleDispatched
}

func (l *Loop) recognize(ctx context.Context, rec recognizer.Recognizer, frame *gocv.Mat, ts int64, sessionID string) {
	start := time.Now()
	result, err := rec.Recognize(ctx, frame, ts)
	l.metrics.Recognition(ctx, time.Since(start).Seconds(), err)

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.log.WithError(err).WithField("timestamp", ts).Warn("recognition failed")
		l.setHands(sessionID, nil)
		return
	}

	l.setHands(sessionID, result.Hands)
	l.canvas.DrawHands(result.Hands)

	top := result.TopGesture()
	if top.Name == "" {
		return
	}
	l.metrics.Gesture(ctx, top.Name)

	if s, decided := l.machine.Deliver(sessionID, gesture.Label(top.Name)); decided {
		l.log.WithFields(logrus.Fields{
			"session":  s.ID,
			"decision": s.Decision,
			"gesture":  top.Name,
			"score":    top.Score,
		}).Info("call decided")
	}
}

func (l *Loop) setHands(sessionID string, hands []recognizer.HandLandmarks) {
	l.handsMu.Lock()
	defer l.handsMu.Unlock()
	l.hands = hands
	l.handsSession = sessionID
}

// currentHands returns the hands to draw over a frame of session. They
// are dropped once the session stops ringing or is replaced.
func (l *Loop) currentHands(session call.Session) []recognizer.HandLandmarks {
	l.handsMu.Lock()
	defer l.handsMu.Unlock()
	if !session.Ringing() || session.ID != l.handsSession {
		l.hands = nil
		l.handsSession = ""
		return nil
	}
	return l.hands
}

// nextTimestamp returns a millisecond timestamp strictly greater than
// the previous one, even if the clock stalls or steps back.
func (l *Loop) nextTimestamp() int64 {
	l.tsMu.Lock()
	defer l.tsMu.Unlock()

	ts := l.now().UnixMilli()
	if ts <= l.lastTs {
		ts = l.lastTs + 1
	}
	l.lastTs = ts
	return ts
}

// Busy reports whether a recognizer call is outstanding.
func (l *Loop) Busy() bool {
	return l.busy.Load()
}

// Wait blocks until the outstanding recognizer call, if any, has finished.
func (l *Loop) Wait() {
	l.wg.Wait()
}
