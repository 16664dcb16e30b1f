package trainer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/absmach/flcoord/pkg/artifact"
	pkgerrors "github.com/absmach/flcoord/pkg/errors"
)

const (
	EnvClientID    = "FL_CLIENT_ID"
	EnvInputModel  = "FL_INPUT_MODEL"
	EnvOutputModel = "FL_OUTPUT_MODEL"
)

const (
	DefCommand    = "python3"
	DefSamplesEnv = "MAX_IMAGES"
)

// Config selects the interpreter that runs each client's script and the
// environment variable carrying the sample budget.
type Config struct {
	Command    string
	SamplesEnv string
}

type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Trainer runs local training for one client and blocks until it exits.
type Trainer interface {
	Train(ctx context.Context, clientID string, samples int) (Result, error)
}

// TrainerError reports a trainer that ran to completion with a non-zero
// exit status.
type TrainerError struct {
	ClientID string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *TrainerError) Error() string {
	return fmt.Sprintf("trainer for client %s exited with status %d", e.ClientID, e.ExitCode)
}

func (e *TrainerError) Unwrap() error {
	return pkgerrors.ErrTrainerExitNonZero
}

type processTrainer struct {
	layout     artifact.Layout
	command    string
	samplesEnv string
	logger     *slog.Logger
}

func NewProcessTrainer(layout artifact.Layout, cfg Config, logger *slog.Logger) Trainer {
	if cfg.Command == "" {
		cfg.Command = DefCommand
	}
	if cfg.SamplesEnv == "" {
		cfg.SamplesEnv = DefSamplesEnv
	}
	// The script runs from its client directory, so every path handed to it
	// must not depend on the coordinator's working directory.
	if root, err := filepath.Abs(layout.Root); err == nil {
		layout.Root = root
	}

	return &processTrainer{
		layout:     layout,
		command:    cfg.Command,
		samplesEnv: cfg.SamplesEnv,
		logger:     logger,
	}
}

func (t *processTrainer) Train(ctx context.Context, clientID string, samples int) (Result, error) {
	if err := artifact.ValidateClientID(clientID); err != nil {
		return Result{}, err
	}
	if samples <= 0 {
		return Result{}, fmt.Errorf("%w: %d", pkgerrors.ErrInvalidSamples, samples)
	}

	script := t.layout.ScriptPath(clientID)
	if _, err := os.Stat(script); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", pkgerrors.ErrScriptNotFound, script)
		}

		return Result{}, pkgerrors.Wrap(pkgerrors.ErrIO, err)
	}

	cmd := exec.CommandContext(ctx, t.command, script)
	cmd.Dir = t.layout.ClientDir(clientID)
	cmd.Env = append(os.Environ(),
		t.samplesEnv+"="+strconv.Itoa(samples),
		EnvClientID+"="+clientID,
		EnvInputModel+"="+t.layout.DeployedPath(clientID),
		EnvOutputModel+"="+t.layout.LocalPath(clientID),
	)
	stdout, stderr := bytes.Buffer{}, bytes.Buffer{}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("starting trainer", slog.String("client_id", clientID), slog.Int("samples", samples))

	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		return res, &TrainerError{
			ClientID: clientID,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	default:
		return res, pkgerrors.Wrap(pkgerrors.ErrExternalProcess, err)
	}
}

type Metrics struct {
	Loss     *float64 `json:"loss"`
	Accuracy *float64 `json:"accuracy"`
}

// ParseMetrics reads the last non-empty stdout line as a JSON object
// carrying loss and/or accuracy. Other output is ignored.
func ParseMetrics(stdout string) (Metrics, bool) {
	var last string
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if !strings.HasPrefix(last, "{") {
		return Metrics{}, false
	}

	var m Metrics
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		return Metrics{}, false
	}
	if m.Loss == nil && m.Accuracy == nil {
		return Metrics{}, false
	}

	return m, true
}
