package typst

import (
	"bytes"
	"context"
	"embed"
	"os"
	"os/exec"
	"path/filepath"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/logger"
	"github.com/saasinvoice/billing/internal/types"
)

//go:embed templates/*.typ
var templates embed.FS

// Compiler renders typst templates to PDF
type Compiler interface {
	// CompileTemplate renders an embedded template. data is JSON and is
	// exposed to the template through sys.inputs.path.
	CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error)
}

type compiler struct {
	logger     *logger.Logger
	binaryPath string
	fontDir    string
	workDir    string
}

func NewCompiler(logger *logger.Logger, binaryPath, fontDir, workDir string) Compiler {
	return &compiler{
		logger:     logger,
		binaryPath: binaryPath,
		fontDir:    fontDir,
		workDir:    workDir,
	}
}

// DefaultCompiler uses typst from PATH and the system temp dir
func DefaultCompiler(logger *logger.Logger) Compiler {
	return NewCompiler(logger, "typst", "", os.TempDir())
}

func (c *compiler) CompileTemplate(ctx context.Context, templateName string, data []byte) ([]byte, error) {
	source, err := templates.ReadFile("templates/" + templateName)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessagef("template not found: %s", templateName).
			WithHint("template error").
			Mark(ierr.ErrSystem)
	}

	dir, err := os.MkdirTemp(c.workDir, "typst-")
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to create work dir").
			WithHint("template error").
			Mark(ierr.ErrSystem)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, templateName)
	dataFile := filepath.Join(dir, "data.json")
	output := filepath.Join(dir, "out.pdf")

	if err := os.WriteFile(input, source, 0o600); err != nil {
		return nil, c.ioError(err, "failed to write template")
	}
	if err := os.WriteFile(dataFile, data, 0o600); err != nil {
		return nil, c.ioError(err, "failed to write template data")
	}

	args := []string{"compile", "--root", dir, "--input", "path=/data.json"}
	if c.fontDir != "" {
		args = append(args, "--font-path", c.fontDir)
	}
	args = append(args, input, output)

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.logger.Errorw("typst compilation failed",
			"error", err,
			"template", templateName,
			"stderr", stderr.String(),
		)
		return nil, ierr.WithError(err).
			WithMessage("typst compilation failed").
			WithHint("Failed to render document").
			WithReportableDetails(map[string]any{
				"template": templateName,
				"stderr":   stderr.String(),
			}).
			Mark(ierr.ErrSystem)
	}

	pdf, err := os.ReadFile(output)
	if err != nil {
		return nil, c.ioError(err, "failed to read compiled document")
	}

	c.logger.Debugw("typst template compiled",
		"template", templateName,
		"bytes", len(pdf),
		"request_id", types.GetRequestID(ctx),
	)
	return pdf, nil
}

func (c *compiler) ioError(err error, msg string) error {
	return ierr.WithError(err).
		WithMessagef("typst: %s", msg).
		WithHint("template error").
		Mark(ierr.ErrSystem)
}
