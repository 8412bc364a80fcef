package sideeffects

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// Handler names, also used as metric labels
const (
	HistoryWriter      = "history-writer"
	NotificationWriter = "notification-writer"
	TransactionWriter  = "transaction-writer"
	StatsUpdater       = "stats-updater"
)

type writers struct {
	store store.SideEffectWriter
}

// Register subscribes the history, notification, transaction and stats writers
func Register(d dispatcher.Dispatcher, st store.SideEffectWriter) {
	w := &writers{store: st}
	d.Subscribe(dispatcher.KindHistory, HistoryWriter, w.writeHistory)
	d.Subscribe(dispatcher.KindNotification, NotificationWriter, w.writeNotification)
	d.Subscribe(dispatcher.KindTransaction, TransactionWriter, w.writeTransaction)
	d.Subscribe(dispatcher.KindStats, StatsUpdater, w.updateStats)
}

func (w *writers) writeHistory(ctx context.Context, msg dispatcher.Message) error {
	p := payloadReader{msg: msg}

	history := &schema.History{
		Type:         domain.HistoryType(p.string(keyType)),
		Message:      p.string(keyMessage),
		ArtworkID:    p.optionalInt64(keyArtworkID),
		OwnerID:      p.optionalInt64(keyOwnerID),
		AuctionID:    p.optionalInt64(keyAuctionID),
		BidID:        p.optionalInt64(keyBidID),
		CollectionID: p.optionalInt64(keyCollectionID),
		Payload:      p.extraData(keyEventKey),
	}
	if p.err != nil {
		return p.err
	}
	if history.Type == "" {
		return fmt.Errorf("history message %s has no type", msg.ID)
	}

	return w.store.CreateHistory(ctx, history)
}

func (w *writers) writeNotification(ctx context.Context, msg dispatcher.Message) error {
	p := payloadReader{msg: msg}

	notification := &schema.Notification{
		UserID:    p.int64(keyUserID),
		Type:      domain.NotificationType(p.string(keyType)),
		Message:   p.string(keyMessage),
		ExtraData: p.extraData(keyArtworkID, keyAuctionID, keySaleID, keyEventKey),
	}
	if msg.Has(keyAmount) {
		amount := p.decimal(keyAmount)
		notification.Amount = &amount
	}
	if p.err != nil {
		return p.err
	}

	return w.store.CreateNotification(ctx, notification)
}

func (w *writers) writeTransaction(ctx context.Context, msg dispatcher.Message) error {
	p := payloadReader{msg: msg}

	transaction := &schema.Transaction{
		UserID:    p.int64(keyUserID),
		Type:      domain.TransactionType(p.string(keyType)),
		Activity:  domain.ActivityType(p.string(keyActivity)),
		Amount:    p.decimal(keyAmount),
		Chain:     p.string(keyChain),
		ExtraData: p.extraData(keyArtworkID, keyAuctionID, keySaleID, keyEventKey),
	}
	if p.err != nil {
		return p.err
	}

	return w.store.CreateTransaction(ctx, transaction)
}

func (w *writers) updateStats(ctx context.Context, msg dispatcher.Message) error {
	p := payloadReader{msg: msg}

	input := store.StatsIncrementInput{
		UserID: p.int64(keyUserID),
		Update: domain.StatsUpdate(p.string(keyUpdate)),
		Amount: p.decimal(keyAmount),
	}
	if p.err != nil {
		return p.err
	}

	return w.store.IncrementStats(ctx, input)
}

// payloadReader reads payload values and keeps the first error
type payloadReader struct {
	msg dispatcher.Message
	err error
}

func (p *payloadReader) keep(err error) {
	if p.err == nil && err != nil {
		p.err = fmt.Errorf("invalid %s message %s: %w", p.msg.Kind, p.msg.ID, err)
	}
}

func (p *payloadReader) string(key string) string {
	v, err := p.msg.String(key)
	p.keep(err)
	return v
}

func (p *payloadReader) int64(key string) int64 {
	v, err := p.msg.Int64(key)
	p.keep(err)
	return v
}

func (p *payloadReader) optionalInt64(key string) *int64 {
	v, err := p.msg.OptionalInt64(key)
	p.keep(err)
	return v
}

func (p *payloadReader) decimal(key string) decimal.Decimal {
	v, err := p.msg.Decimal(key)
	p.keep(err)
	return v
}

// extraData collects the present keys into a JSON document
func (p *payloadReader) extraData(keys ...string) datatypes.JSON {
	extra := make(map[string]any, len(keys))
	for _, key := range keys {
		if !p.msg.Has(key) {
			continue
		}
		switch v := p.msg.Payload[key].(type) {
		case *int64:
			extra[key] = *v
		case string:
			if v != "" {
				extra[key] = v
			}
		default:
			extra[key] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}

	data, err := json.Marshal(extra)
	p.keep(err)
	return datatypes.JSON(data)
}
