package indexer

import (
	"time"

	"gorm.io/gorm"

	"moxieprotocol/core/types"
	"moxieprotocol/native/bondingcurve"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is one committed curve buy or sell. Amounts are decimal strings in
// base units so they survive any SQL backend unchanged.
type Trade struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Subject       string `gorm:"size:42;index:idx_trades_subject"`
	SubjectToken  string `gorm:"size:42"`
	Side          string `gorm:"size:4;index"`
	Beneficiary   string `gorm:"size:42;index"`
	ReserveAmount string `gorm:"size:80;not null"`
	ShareAmount   string `gorm:"size:80;not null"`
	ProtocolFee   string `gorm:"size:80"`
	SubjectFee    string `gorm:"size:80"`
	CreatedAt     time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Trade{})
}

// tradeFromEvent maps a curve trade event onto a row. Other events are
// ignored.
func tradeFromEvent(evt *types.Event) (Trade, bool) {
	switch evt.Type {
	case bondingcurve.EventTypeSubjectSharePurchased:
		return Trade{
			Subject:       evt.Attr("subject"),
			SubjectToken:  evt.Attr("buyToken"),
			Side:          SideBuy,
			Beneficiary:   evt.Attr("beneficiary"),
			ReserveAmount: evt.Attr("sellAmount"),
			ShareAmount:   evt.Attr("buyAmount"),
			ProtocolFee:   evt.Attr("protocolFee"),
			SubjectFee:    evt.Attr("subjectFee"),
		}, true
	case bondingcurve.EventTypeSubjectShareSold:
		return Trade{
			Subject:       evt.Attr("subject"),
			SubjectToken:  evt.Attr("sellToken"),
			Side:          SideSell,
			Beneficiary:   evt.Attr("beneficiary"),
			ReserveAmount: evt.Attr("buyAmount"),
			ShareAmount:   evt.Attr("sellAmount"),
			ProtocolFee:   evt.Attr("protocolFee"),
			SubjectFee:    evt.Attr("subjectFee"),
		}, true
	}
	return Trade{}, false
}
