package services

import (
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// Granted is the prize actually delivered. It can differ from the drawn
// prize: an owned badge pays its fallback points and an empty code pool
// turns into an empty outcome.
type Granted struct {
	PrizeType string            `json:"prize_type"`
	Value     models.PrizeValue `json:"prize_value"`
	Points    int64             `json:"points_awarded"`
}

type PrizeGranter struct {
	store *Store
}

func NewPrizeGranter(store *Store) *PrizeGranter {
	return &PrizeGranter{store: store}
}

// Grant delivers a prize inside tx. Point prizes are credited with reason.
func (g *PrizeGranter) Grant(tx *gorm.DB, accountID uint, prizeType string, value models.PrizeValue, reason string, ref models.Ref) (*Granted, error) {
	out := &Granted{PrizeType: prizeType, Value: value}

	switch prizeType {
	case models.PrizeTypePoints:
		if value.Amount > 0 {
			if _, err := g.store.Ledger.Credit(tx, accountID, value.Amount, reason, ref); err != nil {
				return nil, err
			}
			out.Points = value.Amount
		}

	case models.PrizeTypeItem:
		qty := value.Amount
		if qty <= 0 {
			qty = 1
		}
		if err := g.store.Accounts.AddItem(tx, accountID, value.ItemType, qty); err != nil {
			return nil, err
		}

	case models.PrizeTypeBadge:
		granted, err := g.store.Accounts.GrantBadge(tx, accountID, value.BadgeKey)
		if err != nil {
			return nil, err
		}
		if !granted {
			out.Value.Message = "badge already owned"
			if value.FallbackPoints > 0 {
				if _, err := g.store.Ledger.Credit(tx, accountID, value.FallbackPoints, reason, ref); err != nil {
					return nil, err
				}
				out.PrizeType = models.PrizeTypePoints
				out.Value.Amount = value.FallbackPoints
				out.Points = value.FallbackPoints
			}
		}

	case models.PrizeTypeRedemptionCode:
		code, err := g.store.Stock.AssignRedemptionCode(tx, accountID, value.UsageType)
		if err != nil {
			return nil, err
		}
		if code == nil {
			logger.Warn("Redemption code pool empty", "usage_type", value.UsageType, "account_id", accountID)
			out.PrizeType = models.PrizeTypeEmpty
			out.Value = models.PrizeValue{Message: "codes are sold out"}
			break
		}
		out.Value.Code = code.Code
		out.Value.Quota = code.Quota
	}

	return out, nil
}
