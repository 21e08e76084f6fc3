package recognizer

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

const serviceScript = "gesture_service.py"

// MediaPipeProvider starts the Python MediaPipe gesture recognizer service.
type MediaPipeProvider struct {
	config Config
}

// NewMediaPipeProvider creates a provider. The service process is started
// by Initialize.
func NewMediaPipeProvider(config Config) *MediaPipeProvider {
	return &MediaPipeProvider{config: config}
}

// Initialize starts the service and waits until it reports that the model
// is loaded, or ctx is done.
func (p *MediaPipeProvider) Initialize(ctx context.Context) (Recognizer, error) {
	scriptPath := p.config.ScriptPath
	if scriptPath == "" {
		scriptPath = findServiceScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}

	pythonPath := p.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, scriptPath,
		"--max-hands", strconv.Itoa(p.config.MaxHands),
		"--min-confidence", strconv.FormatFloat(p.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(p.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start gesture service: %w", err)
	}

	r := &mediaPipeRecognizer{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		lastTs: -1,
	}

	ready := make(chan error, 1)
	go func() {
		ready <- r.awaitReady()
	}()

	select {
	case err := <-ready:
		if err != nil {
			r.kill()
			return nil, err
		}
		return r, nil
	case <-ctx.Done():
		r.kill()
		return nil, fmt.Errorf("wait for gesture service: %w", ctx.Err())
	}
}

// mediaPipeRecognizer talks to the service over stdin/stdout. Each request
// is an 8-byte big-endian timestamp, a 4-byte big-endian length and a JPEG
// frame; each response is one JSON line.
type mediaPipeRecognizer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	lastTs int64
	closed bool
	killed bool
}

var errServiceKilled = errors.New("recognizer: gesture service killed after cancellation")

type serviceStatus struct {
	Ready bool   `json:"ready"`
	Error string `json:"error"`
}

func (r *mediaPipeRecognizer) awaitReady() error {
	line, err := r.stdout.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read service status: %w", err)
	}
	var status serviceStatus
	if err := json.Unmarshal([]byte(line), &status); err != nil {
		return fmt.Errorf("parse service status: %w", err)
	}
	if !status.Ready {
		if status.Error == "" {
			status.Error = "service not ready"
		}
		return fmt.Errorf("load gesture model: %s", status.Error)
	}
	return nil
}

// Recognize implements Recognizer.
func (r *mediaPipeRecognizer) Recognize(ctx context.Context, frame *gocv.Mat, timestampMs int64) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.killed {
		return nil, errServiceKilled
	}
	if timestampMs <= r.lastTs {
		return nil, fmt.Errorf("%w: %d after %d", ErrTimestampNotIncreasing, timestampMs, r.lastTs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// A stalled service would block the pipe reads and writes forever.
	// Killing the process on cancellation makes them fail instead.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.cmd.Process.Kill()
		case <-done:
		}
	}()

	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(timestampMs))
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	if _, err := r.stdin.Write(header); err != nil {
		return nil, r.ioError(ctx, "write header", err)
	}
	if _, err := r.stdin.Write(data); err != nil {
		return nil, r.ioError(ctx, "write data", err)
	}
	r.lastTs = timestampMs

	line, err := r.stdout.ReadString('\n')
	if err != nil {
		return nil, r.ioError(ctx, "read response", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("gesture service: %s", response.Error)
	}

	return toResult(response.Hands), nil
}

// ioError reports a failed pipe operation. If ctx was canceled the
// process has been killed and the recognizer cannot be used again.
func (r *mediaPipeRecognizer) ioError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		r.killed = true
		r.cmd.Process.Kill()
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close shuts down the Python process.
func (r *mediaPipeRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.stdin.Close()
	err := r.cmd.Wait()
	if r.killed {
		return nil
	}
	return err
}

func (r *mediaPipeRecognizer) kill() {
	r.stdin.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".gesturecall", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory, the executable or the user's data dir.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".gesturecall/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand is one hand as reported by the service.
type jsonHand struct {
	Points     []Point3D  `json:"points"`
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
	Gestures   []Category `json:"gestures"`
}

func toResult(hands []jsonHand) *Result {
	result := &Result{
		Hands: make([]HandLandmarks, len(hands)),
	}

	withGestures := false
	for _, h := range hands {
		if len(h.Gestures) > 0 {
			withGestures = true
			break
		}
	}
	if withGestures {
		result.Gestures = make([][]Category, len(hands))
	}

	for i, h := range hands {
		lm := HandLandmarks{
			Handedness: h.Handedness,
			Score:      h.Score,
		}
		for j := 0; j < NumLandmarks && j < len(h.Points); j++ {
			lm.Points[j] = h.Points[j]
		}
		result.Hands[i] = lm

		if withGestures {
			result.Gestures[i] = h.Gestures
		}
	}

	return result
}
