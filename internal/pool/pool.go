package pool

import (
	"fmt"
	"strings"
)

// Class is the kind of work a request represents.
type Class int

const (
	Database Class = iota
	Web
	File
)

// Classes lists every known class in display order.
var Classes = []Class{Database, Web, File}

func (c Class) String() string {
	switch c {
	case Database:
		return "Database"
	case Web:
		return "Web"
	case File:
		return "File"
	default:
		return "Unknown"
	}
}

// ParseClass accepts "database", "Database Request", "web", ... case-insensitively.
func ParseClass(s string) (Class, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, " request")

	switch name {
	case "database", "db":
		return Database, nil
	case "web":
		return Web, nil
	case "file":
		return File, nil
	default:
		return 0, fmt.Errorf("unknown service class %q", s)
	}
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	parsed, err := ParseClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Pool is the ordered membership of one service class. Order matters: it is
// the iteration order for round robin and the tie-break for least connections.
type Pool struct {
	class   Class
	members []string
}

// New builds a pool. Members are copied; duplicates and empty entries are rejected.
func New(class Class, members []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(members))
	copied := make([]string, 0, len(members))

	for _, m := range members {
		m = strings.TrimRight(strings.TrimSpace(m), "/")
		if m == "" {
			return nil, fmt.Errorf("%s pool: empty member address", class)
		}
		if _, dup := seen[m]; dup {
			return nil, fmt.Errorf("%s pool: duplicate member %s", class, m)
		}
		seen[m] = struct{}{}
		copied = append(copied, m)
	}

	return &Pool{class: class, members: copied}, nil
}

func (p *Pool) Class() Class {
	return p.class
}

// Members returns a copy of the member list.
func (p *Pool) Members() []string {
	out := make([]string, len(p.members))
	copy(out, p.members)
	return out
}

func (p *Pool) Len() int {
	return len(p.members)
}

func (p *Pool) Contains(url string) bool {
	for _, m := range p.members {
		if m == url {
			return true
		}
	}
	return false
}
