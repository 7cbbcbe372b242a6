package engine

// Stats collects search instrumentation. A nil *Stats is valid and records
// nothing. Stats is not safe for concurrent use; give each search its own.
type Stats struct {
	Nodes  int64 `json:"nodes"`
	MaxPly int   `json:"max_ply"`
}

func (s *Stats) Reset() {
	if s == nil {
		return
	}
	*s = Stats{}
}

func (s *Stats) visit(ply int) {
	if s == nil {
		return
	}
	s.Nodes++
	if ply > s.MaxPly {
		s.MaxPly = ply
	}
}
