package hooks

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const gitRemoteTimeout = 3 * time.Second

var (
	npmScope     = regexp.MustCompile(`^@[^/]+/`)
	remoteRepo   = regexp.MustCompile(`/([^/]+?)(?:\.git)?$`)
	genericNames = map[string]bool{"src": true, "app": true, "project": true, "code": true, "workspace": true}
)

// DeriveProjectName names the project rooted at cwd. It prefers the
// package.json name without its npm scope, then the origin remote's
// repository name, then the directory name. Generic directory names are
// prefixed with their parent.
func DeriveProjectName(cwd string) string {
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	if name := packageJSONName(cwd); name != "" {
		return name
	}
	if name := gitRemoteName(cwd); name != "" {
		return name
	}

	base := filepath.Base(cwd)
	if genericNames[strings.ToLower(base)] {
		return filepath.Base(filepath.Dir(cwd)) + "/" + base
	}
	return base
}

func packageJSONName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json")) // #nosec G304 -- project manifest
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" || pkg.Name == "undefined" {
		return ""
	}
	return npmScope.ReplaceAllString(pkg.Name, "")
}

func gitRemoteName(dir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitRemoteTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	m := remoteRepo.FindStringSubmatch(strings.TrimSpace(string(out)))
	if m == nil {
		return ""
	}
	return m[1]
}
