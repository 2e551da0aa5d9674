package app

import (
	"context"
	"testing"
	"time"

	"SellerHub/pkg/database"
	"SellerHub/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutPlatforms(t *testing.T) {
	db, err := database.Open("sqlite", "file:app_new?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	a, err := New(Parts{DB: db})
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Sync.Enabled())
	assert.Nil(t, a.Tokens)

	_, err = a.Dashboard.Orders(context.Background(), services.OrderQuery{})
	assert.ErrorIs(t, err, services.ErrNotConfigured)
	assert.Equal(t, []string{"custom", "order_status", "shipping_update"}, a.Email.Templates())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		a.Start(ctx, time.Minute)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestNewNeedsDatabase(t *testing.T) {
	_, err := New(Parts{})
	assert.Error(t, err)
}
