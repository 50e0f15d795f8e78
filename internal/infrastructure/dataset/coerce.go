package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// coerce maps a raw cell into the Go value the analytics layer expects for
// the column's registered type. Unparseable cells become nil rather than
// failing the load.
func (m *Manager) coerce(column, cell string) any {
	spec, ok := m.schema[column]
	if !ok {
		return cell
	}
	cell = strings.TrimSpace(cell)
	switch spec.Type {
	case domain.ColumnNumeric:
		if cell == "" {
			return nil
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil
		}
		return v
	case domain.ColumnDatetime:
		if cell == "" {
			return nil
		}
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, cell); err == nil {
				return t
			}
		}
		return nil
	case domain.ColumnBoolean:
		if cell == "" {
			return nil
		}
		switch strings.ToLower(cell) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
		return nil
	case domain.ColumnList:
		return splitList(cell)
	default:
		return cell
	}
}
