package cascade

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Executor walks deletion plans against a gorm handle. It never opens a
// transaction itself: callers pass the tx from db.Transaction so that the
// whole plan commits or rolls back as one unit.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute deletes the rows of plan rooted at rootIDs. Children are removed
// before their parents. Any store error, or a step that removes fewer rows
// than it resolved, is returned as a *PartialFailureError.
func (e *Executor) Execute(ctx context.Context, db *gorm.DB, plan Plan, rootIDs ...uuid.UUID) (*Result, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}

	res := newResult(plan)
	if len(rootIDs) == 0 {
		return res, nil
	}

	if err := e.deleteStep(db.WithContext(ctx), plan, plan.Root, rootIDs, true, res); err != nil {
		return res, err
	}

	e.logger.Debug("cascade executed",
		zap.String("plan", plan.Name),
		zap.Int("roots", len(rootIDs)),
		zap.Int64("deleted", res.TotalDeleted()),
		zap.Any("detached", res.Detached),
	)
	return res, nil
}

// Count resolves plan without modifying anything and returns the number of
// distinct rows each Delete step would remove. Rows reachable through more
// than one path are counted once. Detach steps are not counted.
func (e *Executor) Count(ctx context.Context, db *gorm.DB, plan Plan, rootIDs ...uuid.UUID) (map[string]int64, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}

	seen := make(map[string]map[uuid.UUID]struct{})
	if len(rootIDs) > 0 {
		if err := e.countStep(db.WithContext(ctx), plan, plan.Root, rootIDs, true, seen); err != nil {
			return nil, err
		}
	}

	counts := make(map[string]int64, len(seen))
	for name, ids := range seen {
		counts[name] = int64(len(ids))
	}
	return counts, nil
}

func (e *Executor) deleteStep(db *gorm.DB, plan Plan, step *Step, parentIDs []uuid.UUID, isRoot bool, res *Result) error {
	if step.Action == Detach {
		// UpdateColumn leaves updated_at alone; a detach is not activity on the row
		result := match(db, step, parentIDs, isRoot).UpdateColumn(step.ForeignKey, nil)
		if result.Error != nil {
			return &PartialFailureError{Plan: plan.Name, Step: step.Name, Err: fmt.Errorf("failed to detach: %w", result.Error)}
		}
		res.Detached[step.Name] += result.RowsAffected
		return nil
	}

	ids, err := resolve(db, step, parentIDs, isRoot)
	if err != nil {
		return &PartialFailureError{Plan: plan.Name, Step: step.Name, Err: err}
	}
	if len(ids) == 0 {
		return nil
	}

	for _, child := range step.Children {
		if err := e.deleteStep(db, plan, child, ids, false, res); err != nil {
			return err
		}
	}

	result := db.Where("id IN ?", ids).Delete(step.Model)
	if result.Error != nil {
		return &PartialFailureError{Plan: plan.Name, Step: step.Name, Err: fmt.Errorf("failed to delete: %w", result.Error)}
	}
	if result.RowsAffected != int64(len(ids)) {
		return &PartialFailureError{
			Plan: plan.Name,
			Step: step.Name,
			Err:  fmt.Errorf("%w: resolved %d, removed %d", ErrRowCountMismatch, len(ids), result.RowsAffected),
		}
	}

	res.Deleted[step.Name] += result.RowsAffected
	return nil
}

func (e *Executor) countStep(db *gorm.DB, plan Plan, step *Step, parentIDs []uuid.UUID, isRoot bool, seen map[string]map[uuid.UUID]struct{}) error {
	if step.Action == Detach {
		return nil
	}

	ids, err := resolve(db, step, parentIDs, isRoot)
	if err != nil {
		return &PartialFailureError{Plan: plan.Name, Step: step.Name, Err: err}
	}

	set, ok := seen[step.Name]
	if !ok {
		set = make(map[uuid.UUID]struct{}, len(ids))
		seen[step.Name] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	if len(ids) == 0 {
		return nil
	}

	for _, child := range step.Children {
		if err := e.countStep(db, plan, child, ids, false, seen); err != nil {
			return err
		}
	}
	return nil
}

// match builds the query selecting a step's rows under the given parents
func match(db *gorm.DB, step *Step, parentIDs []uuid.UUID, isRoot bool) *gorm.DB {
	column := step.ForeignKey
	if isRoot {
		column = "id"
	}
	query := db.Model(step.Model).Where(column+" IN ?", parentIDs)
	if step.Where != "" {
		query = query.Where(step.Where, step.Args...)
	}
	return query
}

func resolve(db *gorm.DB, step *Step, parentIDs []uuid.UUID, isRoot bool) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := match(db, step, parentIDs, isRoot).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve ids: %w", err)
	}
	return ids, nil
}

// Validate checks the structural rules of a plan
func Validate(plan Plan) error {
	if plan.Root == nil {
		return fmt.Errorf("%w: %s has no root", ErrInvalidPlan, plan.Name)
	}
	if plan.Root.Action != Delete {
		return fmt.Errorf("%w: root of %s must delete", ErrInvalidPlan, plan.Name)
	}
	return validateStep(plan.Name, plan.Root, true)
}

func validateStep(planName string, step *Step, isRoot bool) error {
	if step.Name == "" {
		return fmt.Errorf("%w: %s has an unnamed step", ErrInvalidPlan, planName)
	}
	if step.Model == nil {
		return fmt.Errorf("%w: step %s has no model", ErrInvalidPlan, step.Name)
	}
	if !isRoot && step.ForeignKey == "" {
		return fmt.Errorf("%w: step %s has no foreign key", ErrInvalidPlan, step.Name)
	}
	if step.Action == Detach && len(step.Children) > 0 {
		return fmt.Errorf("%w: detach step %s cannot have children", ErrInvalidPlan, step.Name)
	}
	for _, child := range step.Children {
		if err := validateStep(planName, child, false); err != nil {
			return err
		}
	}
	return nil
}
