package feed

import (
	"context"
	"errors"
)

// ErrNoMorePages is returned by Pager.Next after the last page.
var ErrNoMorePages = errors.New("no more pages")

// Pager walks a paginated list endpoint page by page.
type Pager[T any] struct {
	fetch func(ctx context.Context, page int) (PaginatedResponse[T], error)

	page int
	done bool
}

func newPager[T any](first int, fetch func(ctx context.Context, page int) (PaginatedResponse[T], error)) *Pager[T] {
	if first < 1 {
		first = 1
	}

	return &Pager[T]{
		fetch: fetch,
		page:  first,
	}
}

// More reports whether Next may return another page.
func (p *Pager[T]) More() bool {
	return !p.done
}

// Page returns the number of the page Next fetches.
func (p *Pager[T]) Page() int {
	return p.page
}

// Next fetches the current page and advances the pager.
// A failed fetch does not advance, so it can be retried.
func (p *Pager[T]) Next(ctx context.Context) (PaginatedResponse[T], error) {
	if p.done {
		return PaginatedResponse[T]{}, ErrNoMorePages
	}

	response, err := p.fetch(ctx, p.page)
	if err != nil {
		return PaginatedResponse[T]{}, err
	}

	if response.HasNext() {
		p.page++
	} else {
		p.done = true
	}

	return response, nil
}

// All collects the remaining items of every page.
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	var items []T

	for p.More() {
		response, err := p.Next(ctx)
		if err != nil {
			return items, err
		}

		items = append(items, response.Results...)
	}

	return items, nil
}

// PostPager pages through the feed.
func (a *API) PostPager(params ListParams) *Pager[Post] {
	return a.listPager(params, a.ListPosts)
}

// MyPostPager pages through the posts written by the session user.
func (a *API) MyPostPager(params ListParams) *Pager[Post] {
	return a.listPager(params, a.ListMyPosts)
}

// LikedPostPager pages through the posts liked by the session user.
func (a *API) LikedPostPager(params ListParams) *Pager[Post] {
	return a.listPager(params, a.ListLikedPosts)
}

// RecommendedPager pages through the recommended posts starting at page.
func (a *API) RecommendedPager(page int) *Pager[Post] {
	return newPager(page, a.Recommended)
}

func (a *API) listPager(params ListParams, list func(context.Context, ListParams) (PostListResponse, error)) *Pager[Post] {
	return newPager(params.Page, func(ctx context.Context, page int) (PostListResponse, error) {
		params.Page = page

		return list(ctx, params)
	})
}
