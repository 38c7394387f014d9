// Package store persists the latest published snapshot and device inventory
// so the bridge can serve stale-marked data immediately after a restart,
// before the first poll completes. Each write replaces the previous
// generation wholesale; nothing here accumulates history.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/model"
)

// Store is the warm-start cache contract used by the poller.
type Store interface {
	ReplaceItems(ctx context.Context, fetchedAt time.Time, items []manager.Item) error
	LoadItems(ctx context.Context) ([]manager.Item, time.Time, error)
	ReplaceThings(ctx context.Context, fetchedAt time.Time, things []manager.Thing) error
	LoadThings(ctx context.Context) ([]manager.Thing, time.Time, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) ReplaceItems(ctx context.Context, fetchedAt time.Time, items []manager.Item) error {
	rows := make([]model.ItemState, 0, len(items))
	for _, item := range items {
		groups, err := json.Marshal(item.GroupNames)
		if err != nil {
			return fmt.Errorf("encode group names for %s: %w", item.Name, err)
		}
		rows = append(rows, model.ItemState{
			Name:       item.Name,
			State:      item.State,
			Type:       item.Type,
			Editable:   item.Editable,
			Label:      item.Label,
			Category:   item.Category,
			GroupNames: string(groups),
			FetchedAt:  fetchedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.ItemState{}).Error; err != nil {
			return fmt.Errorf("clear item cache: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write item cache: %w", err)
		}
		return nil
	})
}

func (s *gormStore) LoadItems(ctx context.Context) ([]manager.Item, time.Time, error) {
	var rows []model.ItemState
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("load item cache: %w", err)
	}

	items := make([]manager.Item, 0, len(rows))
	var fetchedAt time.Time
	for _, row := range rows {
		var groups []string
		if row.GroupNames != "" {
			if err := json.Unmarshal([]byte(row.GroupNames), &groups); err != nil {
				return nil, time.Time{}, fmt.Errorf("decode group names for %s: %w", row.Name, err)
			}
		}
		items = append(items, manager.Item{
			Name:       row.Name,
			State:      row.State,
			Type:       row.Type,
			Editable:   row.Editable,
			Label:      row.Label,
			Category:   row.Category,
			GroupNames: groups,
		})
		if row.FetchedAt.After(fetchedAt) {
			fetchedAt = row.FetchedAt
		}
	}
	return items, fetchedAt, nil
}

func (s *gormStore) ReplaceThings(ctx context.Context, fetchedAt time.Time, things []manager.Thing) error {
	rows := make([]model.ThingRecord, 0, len(things))
	for _, thing := range things {
		props, err := json.Marshal(thing.Properties)
		if err != nil {
			return fmt.Errorf("encode properties for %s: %w", thing.UID, err)
		}
		rows = append(rows, model.ThingRecord{
			UID:          thing.UID,
			Label:        thing.Label,
			TypeUID:      thing.TypeUID,
			BridgeUID:    thing.BridgeUID,
			Status:       thing.Status,
			StatusDetail: thing.StatusDetail,
			Properties:   string(props),
			ChannelCount: thing.ChannelCount,
			FetchedAt:    fetchedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.ThingRecord{}).Error; err != nil {
			return fmt.Errorf("clear thing cache: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write thing cache: %w", err)
		}
		return nil
	})
}

func (s *gormStore) LoadThings(ctx context.Context) ([]manager.Thing, time.Time, error) {
	var rows []model.ThingRecord
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, time.Time{}, fmt.Errorf("load thing cache: %w", err)
	}

	things := make([]manager.Thing, 0, len(rows))
	var fetchedAt time.Time
	for _, row := range rows {
		var props map[string]string
		if row.Properties != "" {
			if err := json.Unmarshal([]byte(row.Properties), &props); err != nil {
				return nil, time.Time{}, fmt.Errorf("decode properties for %s: %w", row.UID, err)
			}
		}
		things = append(things, manager.Thing{
			UID:          row.UID,
			Label:        row.Label,
			TypeUID:      row.TypeUID,
			BridgeUID:    row.BridgeUID,
			Status:       row.Status,
			StatusDetail: row.StatusDetail,
			Properties:   props,
			ChannelCount: row.ChannelCount,
		})
		if row.FetchedAt.After(fetchedAt) {
			fetchedAt = row.FetchedAt
		}
	}
	return things, fetchedAt, nil
}
