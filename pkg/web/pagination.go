package web

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/magicians360/pinkflow/pkg/models"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func queryInt(c fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}

	return value, nil
}

// pageParams reads page and perPage from the query string.
func pageParams(c fiber.Ctx) (Pagination, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return Pagination{}, err
	}

	perPage, err := queryInt(c, "perPage", DefaultPerPage)
	if err != nil {
		return Pagination{}, err
	}

	return Pagination{Page: page, PerPage: min(perPage, MaxPerPage)}, nil
}

// paginateWorkflows orders workflows oldest first and cuts out the requested page.
func paginateWorkflows(workflows []*models.Workflow, p Pagination) ([]*models.Workflow, Pagination) {
	slices.SortStableFunc(workflows, func(a, b *models.Workflow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	p.Total = len(workflows)
	p.TotalPages = (p.Total + p.PerPage - 1) / p.PerPage

	start := min((p.Page-1)*p.PerPage, p.Total)
	end := min(start+p.PerPage, p.Total)

	page := workflows[start:end]
	if page == nil {
		page = []*models.Workflow{}
	}

	return page, p
}
