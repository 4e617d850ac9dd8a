package store

import (
	"context"
	"reflect"
	"sort"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type PageQuery struct {
	Page      int
	Limit     int
	SortField string
	SortOrder SortOrder
	// Filters are equality conditions applied during the scan.
	Filters map[string]any

	DefaultLimit int
	MaxLimit     int
}

type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

type Page struct {
	Items      []Document `json:"items"`
	Pagination PageMeta   `json:"pagination"`
}

func (q PageQuery) normalized() PageQuery {
	if q.DefaultLimit <= 0 {
		q.DefaultLimit = DefaultPageLimit
	}
	if q.MaxLimit <= 0 {
		q.MaxLimit = MaxPageLimit
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = q.DefaultLimit
	}
	if q.Limit > q.MaxLimit {
		q.Limit = q.MaxLimit
	}
	if q.SortField == "" {
		q.SortField = FieldCreatedAt
	}
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
	return q
}

// ListPaged scans t, filters, sorts in memory and slices out one page.
// Fine for the small per-user tables this service keeps; it does not scale.
func ListPaged(ctx context.Context, t Table, q PageQuery) (Page, error) {
	q = q.normalized()

	docs, err := t.Scan(ctx, func(doc Document) bool {
		for field, want := range q.Filters {
			if !reflect.DeepEqual(doc[field], want) {
				return false
			}
		}
		return true
	})
	if err != nil {
		return Page{}, err
	}
	SortBy(docs, q.SortField, q.SortOrder)

	total := len(docs)
	totalPages := (total + q.Limit - 1) / q.Limit
	start := total
	if q.Page <= totalPages {
		start = (q.Page - 1) * q.Limit
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return Page{
		Items: docs[start:end],
		Pagination: PageMeta{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
	}, nil
}

// SortBy orders docs by field. Strings compare lexically, numbers numerically;
// documents missing the field sort last.
func SortBy(docs []Document, field string, order SortOrder) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i][field]
		b, bok := docs[j][field]
		if !aok || !bok {
			return aok && !bok
		}
		if order == SortAsc {
			return less(a, b)
		}
		return less(b, a)
	})
}

// NewestFirst sorts docs by createdAt, most recent first.
func NewestFirst(docs []Document) {
	SortBy(docs, FieldCreatedAt, SortDesc)
}

func less(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	}
	return false
}
