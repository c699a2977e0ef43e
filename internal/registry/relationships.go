package registry

// RelationType — тип отношения между пакетами.
type RelationType string

const (
	// RelComplement — пакеты усиливают друг друга.
	RelComplement RelationType = "complement"

	// RelConflict — совместное использование требует внимания или недопустимо.
	RelConflict RelationType = "conflict"
)

// Relationship — известное отношение пары пакетов.
type Relationship struct {
	A           string       `json:"package_a"`
	B           string       `json:"package_b"`
	Type        RelationType `json:"type"`
	Description string       `json:"description,omitempty"`
}

// Analyze возвращает отношения, в которых участвуют заданные пакеты.
// Отношение включается, только если обе его стороны присутствуют в names.
func (c *Catalog) Analyze(names []string) []Relationship {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Relationship
	for _, rel := range c.rels {
		if present[rel.A] && present[rel.B] {
			out = append(out, rel)
		}
	}
	return out
}

// Conflicts возвращает только конфликтные отношения для заданных пакетов.
func (c *Catalog) Conflicts(names []string) []Relationship {
	var out []Relationship
	for _, rel := range c.Analyze(names) {
		if rel.Type == RelConflict {
			out = append(out, rel)
		}
	}
	return out
}
