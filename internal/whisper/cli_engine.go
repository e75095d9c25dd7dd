package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// EnvWhisperPath overrides whisper-cli discovery.
const EnvWhisperPath = "YTSCRIBE_WHISPER_PATH"

// CLIEngine runs the whisper.cpp command line binary. Every call loads the
// model from disk again.
type CLIEngine struct {
	Executable string
	Logger     *zap.Logger
}

// NewCLIEngine locates whisper-cli: explicit path, then $YTSCRIBE_WHISPER_PATH,
// then next to the ytscribe binary, then $PATH.
func NewCLIEngine(explicitPath string, logger *zap.Logger) (*CLIEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, override := range []string{explicitPath, os.Getenv(EnvWhisperPath)} {
		override = strings.TrimSpace(override)
		if override == "" {
			continue
		}
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("whisper path %s is not executable: %w", override, err)
		}
		return &CLIEngine{Executable: override, Logger: logger}, nil
	}

	if self, err := os.Executable(); err == nil {
		if found, err := ResolveBundledEnginePath(self); err == nil {
			return &CLIEngine{Executable: found, Logger: logger}, nil
		}
	}

	found, err := exec.LookPath(engineBinaryName())
	if err != nil {
		return nil, fmt.Errorf("%s not found; install whisper.cpp or set %s: %w", engineBinaryName(), EnvWhisperPath, err)
	}
	return &CLIEngine{Executable: found, Logger: logger}, nil
}

func ResolveBundledEnginePath(executable string) (string, error) {
	for _, candidate := range EnginePathCandidates(executable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("bundled whisper engine not found near %s, expected at ../libexec/whisper/%s", executable, engineBinaryName())
}

func EnginePathCandidates(executable string) []string {
	binDir := filepath.Dir(executable)
	engineName := engineBinaryName()

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, engineName),
	}
}

func (e *CLIEngine) RequiresModelFile() bool { return true }

func (e *CLIEngine) Transcribe(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return "", errors.New("model path is required")
	}

	if err := ensureExecutable(e.Executable); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	outDir, err := os.MkdirTemp("", "ytscribe-whisper-")
	if err != nil {
		return "", fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outBase := filepath.Join(outDir, "transcript")
	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-l", "auto", "-nt", "-otxt", "-of", outBase}

	cmd := exec.CommandContext(ctx, e.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.log().Debug("running whisper engine", zap.String("engine", e.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return "", fmt.Errorf("whisper engine at %s is missing required shared libraries (%s)", e.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return "", fmt.Errorf("whisper engine crashed with an illegal CPU instruction; " +
				"set " + EnvWhisperPath + " to a whisper-cli binary built for this CPU")
		}
		return "", fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
	}

	content, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func (e *CLIEngine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}

	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
