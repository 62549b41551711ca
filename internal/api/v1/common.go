package v1

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/types"
	"github.com/samber/lo"
)

// pageOrDefault fills the pagination a list request left out
func pageOrDefault(q *types.QueryFilter) *types.QueryFilter {
	if q == nil {
		return types.NewDefaultQueryFilter()
	}
	if q.Limit == nil {
		q.Limit = lo.ToPtr(types.FILTER_DEFAULT_LIMIT)
	}
	return q
}

// pathID reads a required path parameter
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if id == "" {
		c.Error(ierr.NewErrorf("%s is required", name).
			WithHintf("%s is required", name).
			Mark(ierr.ErrValidation))
		return "", false
	}
	return id, true
}

// bindOptionalJSON binds the body when there is one. An empty body leaves obj
// at its zero value.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return false
	}
	return true
}
