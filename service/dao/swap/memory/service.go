package memory

import (
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/criteria"
	"github.com/viant/nodeos/service/dao/store"
	"github.com/viant/nodeos/service/dao/swap"
)

// Service keeps swapped pages in memory.  List accepts a ProcessID parameter.
type Service struct {
	*store.MemoryStore[string, swap.Page]
}

var _ dao.Service[string, swap.Page] = (*Service)(nil)

// New creates an in-memory swap store
func New() *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore[string, swap.Page](
			func(p *swap.Page) string { return p.ID },
			store.WithMatcher[string, swap.Page](func(p *swap.Page, parameters []*dao.Parameter) bool {
				return criteria.Match("ProcessID", p.ProcessID, parameters)
			}),
			store.WithOrder[string, swap.Page](func(a, b *swap.Page) bool {
				if a.ProcessID == b.ProcessID {
					return a.Index < b.Index
				}
				return a.ProcessID < b.ProcessID
			}),
		),
	}
}
