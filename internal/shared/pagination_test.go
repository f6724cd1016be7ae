package shared_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/internal/shared"
)

func TestNewPagination(t *testing.T) {
	p := shared.NewPagination(2, 20, 45)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 20, p.Offset())

	p = shared.NewPagination(0, 0, 0)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 0, p.TotalPages)
	require.Equal(t, 0, p.Offset())
}

func TestParsePageQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil)
	page, perPage := shared.ParsePageQuery(req)
	require.Equal(t, 3, page)
	require.Equal(t, 50, perPage)

	req = httptest.NewRequest(http.MethodGet, "/?page=-1&per_page=9999", nil)
	page, perPage = shared.ParsePageQuery(req)
	require.Equal(t, 1, page)
	require.Equal(t, 100, perPage)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	page, perPage = shared.ParsePageQuery(req)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
}
