package api

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/httputil"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/schema"
)

const defaultProgramCacheSize = 256

// programCache holds compiled search expressions keyed by source text.
type programCache struct {
	mu       sync.RWMutex
	size     int
	programs map[string]*vm.Program
}

func newProgramCache(size int) *programCache {
	return &programCache{size: size, programs: make(map[string]*vm.Program)}
}

func (c *programCache) compile(expression string) (*vm.Program, error) {
	c.mu.RLock()
	if program, ok := c.programs[expression]; ok {
		c.mu.RUnlock()
		return program, nil
	}
	c.mu.RUnlock()

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.programs[expression]; ok {
		return existing, nil
	}
	if len(c.programs) >= c.size {
		clear(c.programs)
	}
	c.programs[expression] = program
	return program, nil
}

func (c *programCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// handleListingSearch filters listings with a boolean expression over the
// external field names, for example
//
//	bedrooms >= 3 && addressDetails.region == "London" && priceInCents < 50000000
func (s *Server) handleListingSearch(w http.ResponseWriter, r *http.Request) {
	expression := r.URL.Query().Get(paramQuery)
	if expression == "" {
		s.writeError(w, http.StatusBadRequest, CodeInvalidExpression, "query parameter q is required", nil)
		return
	}
	p, problem := parsePage(r)
	if problem != "" {
		s.writeStatusError(w, http.StatusBadRequest, problem)
		return
	}

	program, err := s.programs.compile(expression)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, CodeInvalidExpression, fmt.Sprintf("invalid expression: %v", err), nil)
		return
	}

	recs, err := s.store.GetAll(database.CollectionListings)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	log := logging.FromContext(r.Context(), s.log)
	matches := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		listing := schema.ToExternal(database.CollectionListings, rec)
		out, err := expr.Run(program, listing)
		if err != nil {
			log.Debug("search expression failed on record", "id", rec.ID(), "error", err)
			continue
		}
		matched, ok := out.(bool)
		if !ok {
			s.writeError(w, http.StatusBadRequest, CodeInvalidExpression,
				fmt.Sprintf("expression must evaluate to a boolean, got %T", out), nil)
			return
		}
		if matched {
			matches = append(matches, listing)
		}
	}

	end := min(p.skip+p.limit, len(matches))
	data := []map[string]any{}
	if p.skip < len(matches) {
		data = matches[p.skip:end]
	}
	httputil.WriteOK(w, schema.ListPage{
		Data:  data,
		Total: len(matches),
		Skip:  p.skip,
		Limit: p.limit,
	})
}
