// Package directory answers whether a staff id exists. The staff directory
// itself is owned elsewhere; this package only reads it.
package directory

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cashbook/internal/core"
)

type Directory interface {
	Exists(ctx context.Context, kind core.SpenderKind, id string) (bool, error)
}

// AllowAll accepts every id. Used when no directory is configured.
type AllowAll struct{}

func (AllowAll) Exists(context.Context, core.SpenderKind, string) (bool, error) { return true, nil }

// Static is a read-only directory loaded once from seed files.
type Static struct {
	ids map[core.SpenderKind]map[string]struct{}
}

func NewStatic(admins, csos []string) *Static {
	return &Static{ids: map[core.SpenderKind]map[string]struct{}{
		core.SpenderAdmin: toSet(admins),
		core.SpenderCSO:   toSet(csos),
	}}
}

// LoadStatic reads admins.txt and csos.txt from dir. One id per line; blank
// lines and lines starting with # are ignored.
func LoadStatic(dir string) (*Static, error) {
	admins, err := readLines(filepath.Join(dir, "admins.txt"))
	if err != nil {
		return nil, err
	}
	csos, err := readLines(filepath.Join(dir, "csos.txt"))
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded staff directory", "dir", dir, "admins", len(admins), "csos", len(csos))
	return NewStatic(admins, csos), nil
}

func (s *Static) Exists(_ context.Context, kind core.SpenderKind, id string) (bool, error) {
	if kind == core.SpenderSuperAdmin {
		return true, nil
	}
	set, ok := s.ids[kind]
	if !ok {
		return false, nil
	}
	_, found := set[id]
	return found, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
