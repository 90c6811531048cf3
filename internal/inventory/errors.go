package inventory

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
)

func insufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("product %s has %d in stock, %d requested", productID, available, requested)).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  requested,
			"available":  available,
		})
}

func quantityOutOfRange(productID uuid.UUID, qty int) error {
	return pkgerrors.New(pkgerrors.CodeQuantityOutOfRange, "quantity must be positive").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"quantity":   qty,
		})
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": productID.String()})
}
