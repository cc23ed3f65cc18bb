// Package contextfile maintains the generated block inside each CLI's
// project context file.
package contextfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/render"
	"github.com/GoSecreto/UniMem/pkg/models"
)

var targets = map[models.CLITool]string{
	models.CLIClaudeCode: "CLAUDE.md",
	models.CLIGemini:     "GEMINI.md",
	models.CLICodex:      "AGENTS.md",
	models.CLICopilot:    "AGENTS.md",
	models.CLICursor:     ".cursorrules",
	models.CLIAider:      filepath.Join(".unimem", "context.md"),
}

// writeAllCLIs lists the CLIs WriteAll covers; codex and copilot share AGENTS.md.
var writeAllCLIs = []models.CLITool{models.CLIClaudeCode, models.CLIGemini, models.CLICodex, models.CLIAider}

var blockPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(render.StartMarker) + `.*?` + regexp.QuoteMeta(render.EndMarker) + `\n{0,2}`)

// ErrUnknownCLI is returned for a CLI without a context file.
var ErrUnknownCLI = errors.New("no context file for cli")

// Target returns the context file name of cli relative to the project root.
func Target(cli models.CLITool) (string, bool) {
	name, ok := targets[cli]
	return name, ok
}

// Path returns the absolute context file path of cli under cwd.
func Path(cwd string, cli models.CLITool) (string, error) {
	name, ok := targets[cli]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCLI, cli)
	}
	return filepath.Join(cwd, name), nil
}

// Write replaces the generated block of cli's context file with md, placing it
// at the top and preserving everything else in the file.
func Write(cwd string, cli models.CLITool, md string) (string, error) {
	path, err := Path(cwd, cli)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	existing, err := readIfExists(path)
	if err != nil {
		return "", err
	}
	rest := Strip(existing)

	content := strings.TrimSpace(md) + "\n"
	if rest != "" {
		content += "\n" + rest
		if !strings.HasSuffix(rest, "\n") {
			content += "\n"
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	log.Debug().Str("path", path).Msg("Context file written")
	return path, nil
}

// Clean removes the generated block from cli's context file. The file itself is kept.
func Clean(cwd string, cli models.CLITool) error {
	path, err := Path(cwd, cli)
	if err != nil {
		return err
	}
	existing, err := readIfExists(path)
	if err != nil || existing == "" {
		return err
	}
	return os.WriteFile(path, []byte(Strip(existing)), 0o644)
}

// WriteAll writes md into the context files of the main CLIs.
func WriteAll(cwd, md string) ([]string, error) {
	var paths []string
	var errs []error
	for _, cli := range writeAllCLIs {
		path, err := Write(cwd, cli, md)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cli, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// Strip removes every generated block from content.
func Strip(content string) string {
	return blockPattern.ReplaceAllString(content, "")
}

func readIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}
