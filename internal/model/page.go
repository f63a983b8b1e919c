package model

import (
	"fmt"
	"math"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize from overflowing the SQL OFFSET.
	MaxPage         = math.MaxInt32 / MaxPageSize
)

// Page selects a window of a recipient's notifications, newest first.
type Page struct {
	Page       int
	PageSize   int
	UnreadOnly bool
}

// Validate rejects a page beyond MaxPage.
func (p Page) Validate() error {
	if p.Page > MaxPage {
		return &ValidationError{Field: "page", Reason: fmt.Sprintf("must be at most %d", MaxPage)}
	}
	return nil
}

// Normalize clamps page to 1..MaxPage and page size to 1..MaxPageSize.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResult is read against one watermark: Items, Total and Unread only cover
// notifications with ID <= LatestID, so a client can tell which pushes the
// snapshot already counted.
type PageResult struct {
	Items    []*Notification
	Total    int
	Unread   int
	LatestID int64
	Page     int
	PageSize int
}
