package stores

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"text/template"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// templateFS renders every .sql file of base as a text/template with data,
// so migrations can be written once for any set of table names.
type templateFS struct {
	base fs.FS
	data any
}

func (t templateFS) Open(name string) (fs.File, error) {
	f, err := t.base.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() || path.Ext(name) != ".sql" {
		return f, nil
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	rendered, err := renderMigration(path.Base(name), string(raw), t.data)
	if err != nil {
		return nil, err
	}

	return &renderedFile{
		Reader: bytes.NewReader(rendered),
		info:   renderedInfo{FileInfo: info, size: int64(len(rendered))},
	}, nil
}

func (t templateFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(t.base, name)
}

func renderMigration(name, raw string, data any) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migration %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render migration %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

type renderedFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *renderedFile) Close() error               { return nil }

type renderedInfo struct {
	fs.FileInfo
	size int64
}

func (i renderedInfo) Size() int64 { return i.size }
