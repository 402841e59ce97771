package handlers

import (
	"go.mongodb.org/mongo-driver/bson"

	"maclink/internal/common"
	"maclink/internal/models"
)

// ListQuery carries the paging, sorting and status filter of list endpoints.
type ListQuery struct {
	Page   *int64 `query:"page" validate:"omitempty,min=1"`
	Limit  *int64 `query:"limit" validate:"omitempty,min=1,max=100"`
	Sort   string `query:"sort" validate:"omitempty,sortspec"`
	Status string `query:"status" validate:"omitempty,alpha"`
}

func (q ListQuery) pageOptions() models.PageOptions {
	var opts models.PageOptions
	if q.Page != nil {
		opts.Page = *q.Page
	}
	if q.Limit != nil {
		opts.Limit = *q.Limit
	}
	return opts.Normalize()
}

// sort returns the requested order restricted to allowed fields.
func (q ListQuery) sort(allowed ...string) (bson.D, error) {
	return common.ParseSort(q.Sort, append([]string{"createdAt", "updatedAt"}, allowed...)...)
}

// filter adds the status filter to base when one was requested.
func (q ListQuery) filter(base bson.M) bson.M {
	if q.Status != "" {
		base["status"] = q.Status
	}
	return base
}
