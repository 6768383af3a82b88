// Package csv persists persons and links as comma-separated files.
//
// Rows that cannot be decoded are skipped and logged; they never abort a
// load. Rewrites (update, delete, link saves) go through a temporary file and
// a rename so a crash leaves either the old or the new content.
package csv

import (
	"context"
	encodingcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"famtree/internal/genealogy/models"
	"famtree/pkg/platform/sentinel"
)

// Store implements the person and link stores over two CSV files.
type Store struct {
	mu          sync.Mutex
	personsPath string
	linksPath   string
	logger      *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a Store reading and writing personsFile and linksFile under
// dir. The directory is created when missing.
func New(dir, personsFile, linksFile string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		personsPath: filepath.Join(dir, personsFile),
		linksPath:   filepath.Join(dir, linksFile),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadAll decodes every well-formed person row. A missing file is an empty
// store.
func (s *Store) LoadAll(ctx context.Context) ([]*models.Person, error) {
	s.mu.Lock()
	rows, err := readRows(s.personsPath)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	persons := make([]*models.Person, 0, len(rows))
	for i, row := range rows {
		p, err := decodePerson(row)
		if err != nil {
			s.skip(ctx, s.personsPath, i+1, err)
			continue
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// Append writes p as a new row. An existing row with the same identity is
// ErrConflict.
func (s *Store) Append(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readRows(s.personsPath)
	if err != nil {
		return err
	}
	key := p.Identity()
	for _, row := range rows {
		if q, err := decodePerson(row); err == nil && q.Identity() == key {
			return fmt.Errorf("person %s: %w", key, sentinel.ErrConflict)
		}
	}

	f, err := os.OpenFile(s.personsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open persons file: %w", err)
	}
	w := encodingcsv.NewWriter(f)
	if err := w.Write(encodePerson(p)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append person: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("append person: %w", err)
	}
	return f.Close()
}

// Update replaces the row stored under prevKey with p. prevKey is the
// identity the row was written with, which differs from p's when an identity
// field changed.
func (s *Store) Update(ctx context.Context, prevKey models.IdentityKey, p *models.Person) error {
	return s.rewritePersons(ctx, prevKey, func() []string { return encodePerson(p) })
}

// Delete removes the row stored under key.
func (s *Store) Delete(ctx context.Context, key models.IdentityKey) error {
	return s.rewritePersons(ctx, key, nil)
}

// FindByIdentifier returns the person whose row carries ssn.
func (s *Store) FindByIdentifier(ctx context.Context, ssn string) (*models.Person, error) {
	persons, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range persons {
		if ssn != "" && p.SSN == ssn {
			return p, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// rewritePersons replaces (replacement != nil) or drops the first row whose
// identity is key. Rows that decode badly are carried over untouched; lines
// the CSV reader could not parse at all are dropped.
func (s *Store) rewritePersons(ctx context.Context, key models.IdentityKey, replacement func() []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := readRows(s.personsPath)
	if err != nil {
		return err
	}
	out := make([][]string, 0, len(rows))
	found := false
	for _, row := range rows {
		if !found {
			if p, err := decodePerson(row); err == nil && p.Identity() == key {
				found = true
				if replacement != nil {
					out = append(out, replacement())
				}
				continue
			}
		}
		out = append(out, row)
	}
	if !found {
		return fmt.Errorf("person %s: %w", key, sentinel.ErrNotFound)
	}
	return writeRows(s.personsPath, out)
}

// LoadLinks decodes every well-formed link row.
func (s *Store) LoadLinks(ctx context.Context) ([]models.LinkRecord, error) {
	s.mu.Lock()
	rows, err := readRows(s.linksPath)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	links := make([]models.LinkRecord, 0, len(rows))
	for i, row := range rows {
		l, err := decodeLink(row)
		if err != nil {
			s.skip(ctx, s.linksPath, i+1, err)
			continue
		}
		links = append(links, l)
	}
	return links, nil
}

// SaveLinks replaces the link file with links.
func (s *Store) SaveLinks(_ context.Context, links []models.LinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, encodeLink(l))
	}
	return writeRows(s.linksPath, rows)
}

func (s *Store) skip(ctx context.Context, path string, line int, err error) {
	s.logger.WarnContext(ctx, "malformed row skipped",
		"file", filepath.Base(path),
		"line", line,
		"error", err,
	)
}

// readRows returns the raw records of path, or none when it does not exist.
// Rows may have any number of fields; decoding checks the count.
func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", filepath.Base(path), sentinel.ErrUnavailable, err)
	}
	defer f.Close()

	r := encodingcsv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			var parseErr *encodingcsv.ParseError
			if errors.As(err, &parseErr) {
				// Keep a placeholder so line numbers and rewrites stay aligned.
				rows = append(rows, nil)
				continue
			}
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, row)
	}
}

func writeRows(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := encodingcsv.NewWriter(tmp)
	for _, row := range rows {
		if row == nil {
			continue
		}
		if err := w.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
