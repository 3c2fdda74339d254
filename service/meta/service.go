package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service loads YAML (or JSON) documents from any afs location, expanding
// ${env.KEY} expressions before decoding.
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
}

// Load decodes the document at URL into dest.  Relative URLs resolve
// against the service base URL.
func (s *Service) Load(ctx context.Context, URL string, dest interface{}) error {
	URL = s.resolve(URL)
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", URL, err)
	}
	return s.Decode(data, dest)
}

// Decode expands environment expressions in data and decodes it into dest.
func (s *Service) Decode(data []byte, dest interface{}) error {
	expanded := expandEnvExpr(string(data))
	if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Exists reports whether the document at URL exists
func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, s.resolve(URL), s.options...)
}

func (s *Service) resolve(URL string) string {
	if s.baseURL == "" || !url.IsRelative(URL) {
		return url.Normalize(URL, file.Scheme)
	}
	return url.Join(s.baseURL, URL)
}

// New creates a meta service; baseURL may be empty.  Options, e.g. an
// embed.FS, are passed to every storage call.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	if baseURL != "" {
		baseURL = url.Normalize(baseURL, file.Scheme)
	}
	return &Service{fs: fs, baseURL: baseURL, options: options}
}
