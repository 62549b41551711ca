package postgres

import (
	"fmt"
	"strings"

	"github.com/saasinvoice/billing/internal/types"
)

// queryBuilder accumulates WHERE clauses with positional arguments
type queryBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *queryBuilder) where(cond string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, fmt.Sprintf(cond, len(b.args)))
}

func (b *queryBuilder) whereRaw(cond string) {
	b.conditions = append(b.conditions, cond)
}

// build appends the clauses, ordering and pagination to base
func (b *queryBuilder) build(base string, filter types.BaseFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(b.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conditions, " AND "))
	}

	order := types.OrderDesc
	if filter != nil && filter.GetOrder() == types.OrderAsc {
		order = types.OrderAsc
	}
	sb.WriteString(" ORDER BY created_at ")
	sb.WriteString(strings.ToUpper(order))

	args := b.args
	if filter != nil && !filter.IsUnlimited() {
		args = append(args, filter.GetLimit(), filter.GetOffset())
		sb.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)))
	}
	return sb.String(), args
}
