package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

func TestStockRecordReserve(t *testing.T) {
	id := uuid.New()
	record := StockRecord{ProductID: id, Stock: 3, Sold: 1, TrackInventory: true}

	next, err := record.Reserve(2)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Stock)
	assert.Equal(t, 3, next.Sold)

	_, err = next.Reserve(2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, 2, details["requested"])
	assert.Equal(t, 1, details["available"])
}

func TestStockRecordRejectsNonPositive(t *testing.T) {
	record := StockRecord{ProductID: uuid.New(), Stock: 3, TrackInventory: true}
	for _, qty := range []int{0, -1} {
		_, err := record.Reserve(qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuantityOutOfRange))
		_, err = record.Release(qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeQuantityOutOfRange))
	}
}

func TestStockRecordUntrackedIsNoop(t *testing.T) {
	record := StockRecord{ProductID: uuid.New(), Stock: 0}
	next, err := record.Reserve(10)
	require.NoError(t, err)
	assert.Equal(t, record, next)

	next, err = record.Release(10)
	require.NoError(t, err)
	assert.Equal(t, record, next)
}

func TestStockRecordReleaseFloorsSold(t *testing.T) {
	record := StockRecord{ProductID: uuid.New(), Stock: 0, Sold: 1, TrackInventory: true}
	next, err := record.Release(3)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Stock)
	assert.Equal(t, 0, next.Sold)
}

func TestStockRecordRoundTrip(t *testing.T) {
	record := StockRecord{ProductID: uuid.New(), Stock: 5, Sold: 2, TrackInventory: true}
	reserved, err := record.Reserve(4)
	require.NoError(t, err)
	released, err := reserved.Release(4)
	require.NoError(t, err)
	assert.Equal(t, record, released)
}
