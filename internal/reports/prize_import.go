package reports

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

// Prize sheet columns, in order. The first row is a header.
//
//	type | name | weight | stock | rare | amount | item_type | badge_key | fallback_points | usage_type
const prizeColumns = 10

// ReadPrizes parses the first sheet of an xlsx workbook into prize entries.
// An empty stock cell means unlimited stock.
func ReadPrizes(r io.Reader) ([]models.PrizeEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	var prizes []models.PrizeEntry
	for i, row := range rows {
		if i == 0 || blank(row) {
			continue
		}
		for len(row) < prizeColumns {
			row = append(row, "")
		}
		prize, err := parsePrizeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		prize.SortOrder = len(prizes) + 1
		prizes = append(prizes, prize)
	}
	if len(prizes) == 0 {
		return nil, fmt.Errorf("sheet %s has no prizes", sheets[0])
	}
	return prizes, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parsePrizeRow(row []string) (models.PrizeEntry, error) {
	cell := func(i int) string { return strings.TrimSpace(row[i]) }

	prizeType := strings.ToLower(cell(0))
	if !models.IsPrizeType(prizeType) {
		return models.PrizeEntry{}, fmt.Errorf("unknown prize type %q", cell(0))
	}
	name := cell(1)
	if name == "" {
		return models.PrizeEntry{}, fmt.Errorf("name is required")
	}
	weight, err := decimal.NewFromString(cell(2))
	if err != nil || weight.IsNegative() {
		return models.PrizeEntry{}, fmt.Errorf("invalid weight %q", cell(2))
	}

	var stock *int64
	if s := cell(3); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return models.PrizeEntry{}, fmt.Errorf("invalid stock %q", s)
		}
		stock = &n
	}

	amount, err := optionalInt(cell(5))
	if err != nil {
		return models.PrizeEntry{}, fmt.Errorf("invalid amount: %w", err)
	}
	fallback, err := optionalInt(cell(8))
	if err != nil {
		return models.PrizeEntry{}, fmt.Errorf("invalid fallback points: %w", err)
	}

	value := models.PrizeValue{
		Amount:         amount,
		ItemType:       cell(6),
		BadgeKey:       cell(7),
		FallbackPoints: fallback,
		UsageType:      cell(9),
	}
	switch prizeType {
	case models.PrizeTypePoints:
		if value.Amount <= 0 {
			return models.PrizeEntry{}, fmt.Errorf("points prize needs a positive amount")
		}
	case models.PrizeTypeItem:
		if value.ItemType == "" {
			return models.PrizeEntry{}, fmt.Errorf("item prize needs item_type")
		}
	case models.PrizeTypeBadge:
		if value.BadgeKey == "" {
			return models.PrizeEntry{}, fmt.Errorf("badge prize needs badge_key")
		}
	case models.PrizeTypeRedemptionCode:
		if value.UsageType == "" {
			return models.PrizeEntry{}, fmt.Errorf("redemption code prize needs usage_type")
		}
	}

	rare := strings.EqualFold(cell(4), "yes") || strings.EqualFold(cell(4), "true") || cell(4) == "1"
	return models.PrizeEntry{
		PrizeType:  prizeType,
		PrizeName:  name,
		PrizeValue: datatypes.NewJSONType(value),
		Weight:     weight,
		Stock:      stock,
		IsRare:     rare,
		IsEnabled:  true,
	}, nil
}

func optionalInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
