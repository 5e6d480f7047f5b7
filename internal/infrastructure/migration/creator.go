package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// versionLayout is the timestamp prefix golang-migrate orders files by
const versionLayout = "20060102150405"

var migrationHeader = template.Must(template.New("migration").Parse(
	"-- Migration: {{.Name}}{{if .Down}} (Rollback){{else}}\n-- Description: {{.Description}}{{end}}\n\n"))

// MigrationFile describes a freshly created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair into dir, versioned by the
// current UTC time
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	return createMigrationAt(dir, name, description, time.Now().UTC())
}

func createMigrationAt(dir, name, description string, now time.Time) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := now.Format(versionLayout)
	prefix := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		UpPath:      prefix + ".up.sql",
		DownPath:    prefix + ".down.sql",
	}

	if err := mf.write(mf.UpPath, false); err != nil {
		return nil, err
	}
	if err := mf.write(mf.DownPath, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// write creates path exclusively, so an existing migration is never
// overwritten
func (mf *MigrationFile) write(path string, down bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	return migrationHeader.Execute(f, struct {
		*MigrationFile
		Down bool
	}{mf, down})
}

// sanitizeName turns name into a lower snake_case slug. Spaces, dashes and
// underscores separate words; other punctuation is dropped.
func sanitizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	slugs := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return -1
			}
			return unicode.ToLower(r)
		}, w)
		if w != "" {
			slugs = append(slugs, w)
		}
	}
	return strings.Join(slugs, "_")
}

// ListMigrations returns the base names of the up migrations in dir. A
// missing directory has none.
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	return upMigrations(entries), nil
}
