package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// handleExportCSV streams the window's raw records as CSV. Tags are
// flattened to key=value pairs joined with semicolons.
func (s *Server) handleExportCSV(c echo.Context) error {
	w, err := s.window(c)
	if err != nil {
		return s.fail(c, err)
	}
	records, err := s.agg.Records(c.Request().Context(), w, c.QueryParam("provider"))
	if err != nil {
		return s.fail(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="costs_%s_%s.csv"`, w.Start, w.End))
	c.Response().WriteHeader(http.StatusOK)

	cw := csv.NewWriter(c.Response())
	header := []string{"id", "date", "provider", "account_id", "account_name", "service", "region", "cost", "currency", "tags"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		tags := make([]string, 0, len(record.Tags))
		for k, v := range record.Tags {
			tags = append(tags, k+"="+v)
		}
		sort.Strings(tags)

		row := []string{
			record.ID,
			record.Date,
			record.Provider,
			record.AccountID,
			record.AccountName,
			record.Service,
			record.Region,
			fmt.Sprintf("%.6f", record.Cost),
			record.Currency,
			strings.Join(tags, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
