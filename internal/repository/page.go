package repository

import (
	"context"

	"tablerepo/internal/query"

	"golang.org/x/sync/errgroup"
)

// Page is one page of rows with totals.
type Page struct {
	Data     []Record `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes where a page sits in the full result. The paging
// fields are only set when a page size was requested.
type Metadata struct {
	TotalItems   int64 `json:"total_items"`
	ItemsPerPage int   `json:"items_per_page,omitempty"`
	CurrentPage  int   `json:"current_page,omitempty"`
	TotalPages   int64 `json:"total_pages,omitempty"`
}

// FindPage runs Find and Count concurrently over the same parameters.
func (b *base) FindPage(ctx context.Context, params query.Parameters, fields ...string) (page *Page, err error) {
	ctx, done := b.observe(ctx, "find_page")
	defer func() {
		n := int64(0)
		if page != nil {
			n = int64(len(page.Data))
		}
		done(n, err)
	}()

	if err := params.Validate(); err != nil {
		return nil, invalid(err)
	}

	var (
		records []Record
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = b.find(gctx, params, fields)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = b.count(gctx, params)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Page{Data: records, Metadata: pageMetadata(params, total)}, nil
}

func pageMetadata(params query.Parameters, total int64) Metadata {
	meta := Metadata{TotalItems: total}
	size := params.PageSizeValue()
	if size <= 0 {
		return meta
	}
	meta.ItemsPerPage = size
	meta.CurrentPage = params.OffsetValue()/size + 1
	meta.TotalPages = (total + int64(size) - 1) / int64(size)
	return meta
}
