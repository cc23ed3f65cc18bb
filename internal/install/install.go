// Package install registers UniMem's hooks and MCP server with host CLIs.
package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/config"
)

// ErrCLINotFound is returned when a CLI's configuration directory does not
// exist, meaning the CLI is not installed.
var ErrCLINotFound = errors.New("cli configuration not found")

const serverName = "unimem"

// Installer edits CLI settings files under Home.
type Installer struct {
	Home   string
	BinDir string
}

// New returns an installer for the current user with binaries in
// ~/.unimem/bin.
func New() (*Installer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home: %w", err)
	}
	return &Installer{Home: home, BinDir: filepath.Join(config.DataDir(), "bin")}, nil
}

func (i *Installer) hookBin(name string) string {
	return filepath.Join(i.BinDir, "hooks", name)
}

func (i *Installer) unimemHook(event, cli string) string {
	return fmt.Sprintf("%s hook %s --cli %s", filepath.Join(i.BinDir, "unimem"), event, cli)
}

func (i *Installer) mcpServer() map[string]interface{} {
	return map[string]interface{}{
		"command": filepath.Join(i.BinDir, "mcp-server"),
		"args":    []interface{}{},
	}
}

// Claude registers the Claude Code hooks and statusline in
// ~/.claude/settings.json and the MCP server in ~/.mcp.json.
func (i *Installer) Claude() ([]string, error) {
	settingsPath := filepath.Join(i.Home, ".claude", "settings.json")
	settings, err := readJSON(settingsPath)
	if err != nil {
		return nil, err
	}
	i.setHook(settings, "SessionStart", "", i.hookBin("session-start"))
	i.setHook(settings, "UserPromptSubmit", "", i.hookBin("user-prompt-submit"))
	i.setHook(settings, "PostToolUse", "*", i.hookBin("post-tool-use"))
	i.setHook(settings, "SessionEnd", "", i.hookBin("session-end"))

	// A statusline configured by the user is left alone.
	if sl, ok := settings["statusLine"].(map[string]interface{}); !ok || i.ours(str(sl["command"])) {
		settings["statusLine"] = map[string]interface{}{"type": "command", "command": i.hookBin("statusline")}
	}
	if err := writeJSON(settingsPath, settings); err != nil {
		return nil, err
	}

	mcpPath := filepath.Join(i.Home, ".mcp.json")
	mcpCfg, err := readJSON(mcpPath)
	if err != nil {
		return nil, err
	}
	object(mcpCfg, "mcpServers")[serverName] = i.mcpServer()
	if err := writeJSON(mcpPath, mcpCfg); err != nil {
		return nil, err
	}

	log.Info().Str("settings", settingsPath).Str("mcp", mcpPath).Msg("Installed into Claude Code")
	return []string{settingsPath, mcpPath}, nil
}

// Gemini registers hooks and the MCP server in ~/.gemini/settings.json. It
// returns ErrCLINotFound when Gemini CLI has never been run.
func (i *Installer) Gemini() ([]string, error) {
	dir := filepath.Join(i.Home, ".gemini")
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCLINotFound, dir)
	}
	path := filepath.Join(dir, "settings.json")
	settings, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	object(settings, "mcpServers")[serverName] = i.mcpServer()
	i.setHook(settings, "SessionStart", "", i.unimemHook("session-start", "gemini"))
	i.setHook(settings, "BeforeAgent", "", i.unimemHook("prompt", "gemini"))
	i.setHook(settings, "AfterTool", "*", i.unimemHook("tool-use", "gemini"))
	i.setHook(settings, "SessionEnd", "", i.unimemHook("session-end", "gemini"))
	if err := writeJSON(path, settings); err != nil {
		return nil, err
	}
	log.Info().Str("settings", path).Msg("Installed into Gemini CLI")
	return []string{path}, nil
}

// ours reports whether command was written by an installer.
func (i *Installer) ours(command string) bool {
	return command != "" && (strings.HasPrefix(command, i.BinDir) || strings.Contains(command, serverName))
}

// setHook replaces UniMem's matcher group for event, keeping every hook the
// user configured.
func (i *Installer) setHook(settings map[string]interface{}, event, matcher, command string) {
	hooks := object(settings, "hooks")
	groups, _ := hooks[event].([]interface{})

	kept := make([]interface{}, 0, len(groups)+1)
	for _, g := range groups {
		if !i.ownsGroup(g) {
			kept = append(kept, g)
		}
	}
	group := map[string]interface{}{
		"hooks": []interface{}{map[string]interface{}{"type": "command", "command": command}},
	}
	if matcher != "" {
		group["matcher"] = matcher
	}
	hooks[event] = append(kept, group)
}

func (i *Installer) ownsGroup(g interface{}) bool {
	m, ok := g.(map[string]interface{})
	if !ok {
		return false
	}
	entries, _ := m["hooks"].([]interface{})
	for _, e := range entries {
		if h, ok := e.(map[string]interface{}); ok && i.ours(str(h["command"])) {
			return true
		}
	}
	return false
}

func object(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	v := map[string]interface{}{}
	m[key] = v
	return v
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// readJSON returns an empty object when path does not exist.
func readJSON(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI settings file
	if errors.Is(err, os.ErrNotExist) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := map[string]interface{}{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func writeJSON(path string, v map[string]interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
