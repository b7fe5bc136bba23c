package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/pressly/goose/v3"
)

const gooseTemplate = `{{ if noTransaction }}-- +goose NO TRANSACTION
{{ end }}-- +goose Up
{{ body }}
-- +goose Down
-- Generated fixes are not reversible automatically; write the down migration by hand.
`

// versionFormat is the timestamp goose uses as the version prefix.
const versionFormat = "20060102150405"

// ErrVersionExists is returned when dir already holds a migration with the
// version a new file would get.
var ErrVersionExists = errors.New("migration version already exists")

func init() {
	goose.SetLogger(goose.NopLogger())
}

// WriteGooseFile writes the script as a goose SQL migration in dir and
// returns the created path. Scripts that add enum values are marked
// NO TRANSACTION.
func (m *Migration) WriteGooseFile(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations dir: %w", err)
	}

	before, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	version := time.Now().UTC().Format(versionFormat)
	for _, f := range before {
		if strings.HasPrefix(filepath.Base(f), version+"_") {
			return "", fmt.Errorf("%w: %s", ErrVersionExists, f)
		}
	}

	tmpl := template.Must(template.New("schemadrift").Funcs(template.FuncMap{
		"noTransaction": func() bool { return m.AddsEnumValues },
		"body":          m.String,
	}).Parse(gooseTemplate))

	if err := goose.CreateWithTemplate(nil, dir, tmpl, name, "sql"); err != nil {
		return "", fmt.Errorf("failed to write goose migration: %w", err)
	}

	after, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	for _, f := range after {
		if !slices.Contains(before, f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("goose migration %q not found in %s", name, dir)
}

func sqlFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return files, nil
}
