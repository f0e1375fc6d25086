// Package cascade removes dependency graphs of rows in leaf-to-root order.
//
// A Plan is a tree of Steps. Each step names a table (through its gorm model)
// and the foreign key that links it to its parent step. The Executor resolves
// ids top-down and deletes bottom-up, so a row is never removed while a row
// that references it still exists.
package cascade

// Action is what happens to the rows matched by a step
type Action int

const (
	// Delete removes the matched rows after all of their children
	Delete Action = iota
	// Detach sets the foreign key of the matched rows to NULL and keeps them
	Detach
)

func (a Action) String() string {
	switch a {
	case Delete:
		return "delete"
	case Detach:
		return "detach"
	default:
		return "unknown"
	}
}

// Step is one table in a deletion plan.
//
// Model must be a pointer to a fresh gorm model value, e.g. &domain.Site{}.
// ForeignKey is the column of this table holding the parent step's id; it is
// ignored on the root step, whose rows are matched by primary key. Where and
// Args narrow the match further, e.g. "target_type = ?" for polymorphic rows.
// Children run before the step's own rows are removed, in the order given.
// Detach steps cannot have children.
type Step struct {
	Name       string
	Model      interface{}
	ForeignKey string
	Where      string
	Args       []interface{}
	Action     Action
	Children   []*Step
}

// Plan is a named deletion tree. Build a new Plan per call; the executor
// hands Step.Model to gorm, which may write into it.
type Plan struct {
	Name string
	Root *Step
}

// Result reports how many rows each step touched
type Result struct {
	Plan     string
	Root     string
	Deleted  map[string]int64
	Detached map[string]int64
}

func newResult(plan Plan) *Result {
	return &Result{
		Plan:     plan.Name,
		Root:     plan.Root.Name,
		Deleted:  make(map[string]int64),
		Detached: make(map[string]int64),
	}
}

// RootDeleted returns the number of root rows removed
func (r *Result) RootDeleted() int64 {
	return r.Deleted[r.Root]
}

// TotalDeleted sums removed rows over every step
func (r *Result) TotalDeleted() int64 {
	var total int64
	for _, n := range r.Deleted {
		total += n
	}
	return total
}
