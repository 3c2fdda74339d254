package memory

import (
	"github.com/viant/nodeos/model/process"
	"github.com/viant/nodeos/service/dao"
	"github.com/viant/nodeos/service/dao/criteria"
	"github.com/viant/nodeos/service/dao/store"
)

// Service is the in-memory process registry.  It stores live records; the
// caller is responsible for synchronising record mutation.  List supports
// State and Category parameters and returns records in submission order.
type Service struct {
	*store.MemoryStore[string, process.Record]
}

var _ dao.Service[string, process.Record] = (*Service)(nil)

// New creates a process registry
func New() *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore[string, process.Record](
			func(r *process.Record) string { return r.ID },
			store.WithMatcher[string, process.Record](match),
			store.WithOrder[string, process.Record](func(a, b *process.Record) bool { return a.Seq < b.Seq }),
		),
	}
}

func match(r *process.Record, parameters []*dao.Parameter) bool {
	return criteria.FilterByState(string(r.State), parameters) &&
		criteria.Match("Category", string(r.Category), parameters)
}
