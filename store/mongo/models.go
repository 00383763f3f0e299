package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlots/harberger/asset"
	"github.com/openlots/harberger/id"
	"github.com/openlots/harberger/types"
)

// assetModel is the BSON shape of an asset record. Price is stored as its
// decimal string so no precision is lost to float64 round-tripping.
type assetModel struct {
	ID             string    `bson:"_id"`
	Price          string    `bson:"price"`
	LastSettlement time.Time `bson:"last_settlement"`
	Defaulted      bool      `bson:"defaulted"`
	Status         string    `bson:"status"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toAssetModel(a *asset.Asset) *assetModel {
	return &assetModel{
		ID:             a.ID.String(),
		Price:          a.Price.String(),
		LastSettlement: a.LastSettlement,
		Defaulted:      a.Defaulted,
		Status:         string(a.Status()),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func fromAssetModel(m *assetModel) (*asset.Asset, error) {
	assetID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("harberger/mongo: asset id: %w", err)
	}

	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return nil, fmt.Errorf("harberger/mongo: asset %s price: %w", m.ID, err)
	}

	return &asset.Asset{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             assetID,
		Price:          price,
		LastSettlement: m.LastSettlement,
		Defaulted:      m.Defaulted,
	}, nil
}
