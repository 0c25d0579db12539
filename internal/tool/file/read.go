// Package file implements the sandboxed file-reading tool.
package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cyclone1070/sandchat/internal/capability"
	"github.com/Cyclone1070/sandchat/internal/tool"
)

// capabilityChecker answers the advisory "would the kernel permit this"
// question for tool-event reporting. The kernel makes the real decision on
// the read syscall itself.
type capabilityChecker interface {
	Check(path string, mode capability.Mode) bool
}

// ReadFileTool reads a file from the filesystem for the agent. Every outcome,
// including denial, is returned as content so the model can read and explain
// it; the tool never surfaces an error for a failed read.
type ReadFileTool struct {
	caps     capabilityChecker
	maxBytes int
	logger   *slog.Logger
}

// NewReadFileTool creates a ReadFileTool. maxBytes bounds the returned
// content to prevent huge-file exfiltration through a single call.
func NewReadFileTool(caps capabilityChecker, maxBytes int, logger *slog.Logger) *ReadFileTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadFileTool{
		caps:     caps,
		maxBytes: maxBytes,
		logger:   logger.With("component", "read_file"),
	}
}

// Name returns the tool's identifier.
func (t *ReadFileTool) Name() string {
	return "read_file"
}

// Declaration returns the tool's schema for the LLM.
func (t *ReadFileTool) Declaration() tool.Declaration {
	return tool.Declaration{
		Name:        "read_file",
		Description: "Reads a file from the local filesystem and returns its contents. If a read is blocked by the sandbox, the result explains that the file is outside the allowed permissions.",
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"path": {
					Type:        tool.TypeString,
					Description: "The path to read. Can be absolute or start with ~.",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Input returns a pointer to the input struct for argument decoding.
func (t *ReadFileTool) Input() any {
	return &ReadFileRequest{}
}

// Execute runs the tool. The returned string is the content handed back to
// the model; an error is returned only for infrastructure failures such as
// context cancellation.
func (t *ReadFileTool) Execute(ctx context.Context, input any, rec tool.Recorder) (string, error) {
	req, ok := input.(*ReadFileRequest)
	if !ok {
		return "", fmt.Errorf("read_file: unexpected input type %T", input)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.run(req.Path, rec), nil
}

func (t *ReadFileTool) run(path string, rec tool.Recorder) string {
	target, err := resolve(path)
	if err != nil {
		t.logger.Info("ERROR", "path", path, "error", err)
		return fmt.Sprintf("OS error reading %s: %v", path, err)
	}

	if !t.caps.Check(target, capability.ModeRead) {
		return t.blocked(path, rec)
	}

	info, err := os.Stat(target)
	if err != nil {
		return t.failure(path, err, rec)
	}
	if info.IsDir() {
		t.logger.Info("ISDIR", "path", path)
		return fmt.Sprintf("Path is a directory, not a file: %s", path)
	}

	f, err := os.Open(target)
	if err != nil {
		return t.failure(path, err, rec)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, int64(t.maxBytes)))
	if err != nil {
		return t.failure(path, err, rec)
	}

	t.logger.Info("ALLOWED", "path", path, "bytes", len(content))
	rec.Record(fmt.Sprintf("read_file(%s) -- ALLOWED (%d bytes read)", path, len(content)))
	return string(content)
}

// failure maps an OS error to the distinct result string and tool-event for
// its outcome class.
func (t *ReadFileTool) failure(path string, err error, rec tool.Recorder) string {
	switch {
	case os.IsPermission(err):
		return t.blocked(path, rec)
	case os.IsNotExist(err):
		t.logger.Info("NOTFOUND", "path", path)
		rec.Record(fmt.Sprintf("read_file(%s) -- file not found", path))
		return fmt.Sprintf("File not found: %s", path)
	default:
		t.logger.Info("ERROR", "path", path, "error", err)
		return fmt.Sprintf("OS error reading %s: %v", path, err)
	}
}

func (t *ReadFileTool) blocked(path string, rec tool.Recorder) string {
	t.logger.Warn("BLOCKED", "path", path)
	rec.Record(fmt.Sprintf("read_file(%s) -- BLOCKED by sandbox (permission denied)", path))
	return fmt.Sprintf("BLOCKED by sandbox: permission denied reading %s", path)
}

// resolve expands a leading ~ and canonicalizes the path to absolute,
// symlink-free form so the capability check sees the same path the kernel
// would enforce on.
func resolve(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	return capability.Canonicalize(path)
}
