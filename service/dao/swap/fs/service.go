package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/criteria"
	"github.com/viant/nodeos/service/dao/swap"
)

// Service keeps swapped pages as JSON objects under baseURL; any afs URL
// works (file://, mem://, cloud storage).  Each process gets a folder.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, swap.Page] = (*Service)(nil)

// Save writes a page to the swap area
func (s *Service) Save(ctx context.Context, page *swap.Page) error {
	if page == nil {
		return dao.ErrNilEntity
	}
	if page.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal swap page %s: %w", page.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pageURL := s.pageURL(page.ID)
	if err = s.fs.Upload(ctx, pageURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write swap page %s: %w", pageURL, err)
	}
	return nil
}

// Load reads a page from the swap area
func (s *Service) Load(ctx context.Context, id string) (*swap.Page, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	pageURL := s.pageURL(id)
	exists, err := s.fs.Exists(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check swap page %s: %w", pageURL, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: swap page %s", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read swap page %s: %w", pageURL, err)
	}
	page := &swap.Page{}
	if err = json.Unmarshal(data, page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal swap page %s: %w", pageURL, err)
	}
	return page, nil
}

// Delete removes a page from the swap area
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pageURL := s.pageURL(id)
	exists, err := s.fs.Exists(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("failed to check swap page %s: %w", pageURL, err)
	}
	if !exists {
		return fmt.Errorf("%w: swap page %s", dao.ErrNotFound, id)
	}
	if err = s.fs.Delete(ctx, pageURL); err != nil {
		return fmt.Errorf("failed to delete swap page %s: %w", pageURL, err)
	}
	return nil
}

// List returns swapped pages, optionally filtered by ProcessID
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*swap.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list swap area %s: %w", s.baseURL, err)
	}
	var pages []*swap.Page
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read swap page %s: %w", object.URL(), err)
		}
		page := &swap.Page{}
		if err = json.Unmarshal(data, page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal swap page %s: %w", object.URL(), err)
		}
		if !criteria.Match("ProcessID", page.ProcessID, parameters) {
			continue
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (s *Service) pageURL(id string) string {
	return url.Join(s.baseURL, id+".json")
}

// New creates a swap store rooted at baseURL
func New(ctx context.Context, baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("swap base URL cannot be empty")
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	fs := afs.New()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create swap area %s: %w", baseURL, err)
		}
	}
	return &Service{baseURL: baseURL, fs: fs}, nil
}
