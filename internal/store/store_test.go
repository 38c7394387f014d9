package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/db"
	"solarwatt-bridge/internal/manager"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	return NewGormStore(gormDB)
}

func strPtr(s string) *string { return &s }

func TestItemsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	items := []manager.Item{
		{
			Name:       "kiwigrid_location_standard_ABC_harmonized_power_in",
			State:      strPtr("1500 W"),
			Type:       "Number:Power",
			Label:      "Power In",
			GroupNames: []string{"gEnergy"},
		},
		{Name: "foxesshybrid_battery_XYZ_battery_soc", State: strPtr("87 %"), Type: "Number:Dimensionless"},
		{Name: "no_state_item", State: nil, Type: "String"},
	}
	require.NoError(t, s.ReplaceItems(ctx, fetchedAt, items))

	loaded, loadedAt, err := s.LoadItems(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, fetchedAt, loadedAt, time.Second)
	require.Len(t, loaded, 3)

	byName := make(map[string]manager.Item, len(loaded))
	for _, item := range loaded {
		byName[item.Name] = item
	}
	first := byName["kiwigrid_location_standard_ABC_harmonized_power_in"]
	require.NotNil(t, first.State)
	assert.Equal(t, "1500 W", *first.State)
	assert.Equal(t, []string{"gEnergy"}, first.GroupNames)
	assert.Nil(t, byName["no_state_item"].State)
}

func TestReplaceItemsIsWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceItems(ctx, time.Now().UTC(), []manager.Item{
		{Name: "old_item", State: strPtr("1 W")},
	}))
	require.NoError(t, s.ReplaceItems(ctx, time.Now().UTC(), []manager.Item{
		{Name: "new_item", State: strPtr("2 W")},
	}))

	loaded, _, err := s.LoadItems(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new_item", loaded[0].Name)
}

func TestReplaceItemsEmptyClearsCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceItems(ctx, time.Now().UTC(), []manager.Item{
		{Name: "item", State: strPtr("1 W")},
	}))
	require.NoError(t, s.ReplaceItems(ctx, time.Now().UTC(), nil))

	loaded, _, err := s.LoadItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestThingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	things := []manager.Thing{
		{
			UID:          "foxess:hybrid:abc",
			Label:        "Inverter",
			TypeUID:      "foxess:hybrid",
			Status:       "ONLINE",
			StatusDetail: "NONE",
			Properties:   map[string]string{"serial": "60KH10201BFA097"},
			ChannelCount: 12,
		},
	}
	require.NoError(t, s.ReplaceThings(ctx, fetchedAt, things))

	loaded, loadedAt, err := s.LoadThings(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, fetchedAt, loadedAt, time.Second)
	require.Len(t, loaded, 1)
	assert.Equal(t, things[0].UID, loaded[0].UID)
	assert.Equal(t, "60KH10201BFA097", loaded[0].Properties["serial"])
	assert.Equal(t, 12, loaded[0].ChannelCount)
}

func TestLoadFromEmptyStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items, at, err := s.LoadItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, at.IsZero())

	things, at, err := s.LoadThings(ctx)
	require.NoError(t, err)
	assert.Empty(t, things)
	assert.True(t, at.IsZero())
}
