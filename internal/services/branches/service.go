package branches

import (
	"sort"
	"strings"
)

// Service is the catalogue of selectable branches. An empty catalogue
// accepts any non-blank branch name.
type Service struct {
	names []string
	index map[string]string
}

func New(names []string) *Service {
	s := &Service{index: map[string]string{}}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := s.index[strings.ToLower(n)]; dup {
			continue
		}
		s.index[strings.ToLower(n)] = n
		s.names = append(s.names, n)
	}
	sort.Strings(s.names)
	return s
}

func (s *Service) List() []string { return append([]string(nil), s.names...) }

// Resolve returns the canonical spelling of name.
func (s *Service) Resolve(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if len(s.index) == 0 {
		return name, true
	}
	canonical, ok := s.index[strings.ToLower(name)]
	return canonical, ok
}
