package router

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/pricefeed/internal/model"
)

// EncodePriceUpdate builds a price_update frame.
func EncodePriceUpdate(u model.PriceUpdate) ([]byte, error) {
	data, err := json.Marshal(frameWire{Type: TypePriceUpdate, Data: &u})
	if err != nil {
		return nil, fmt.Errorf("encode price_update: %w", err)
	}
	return data, nil
}

// EncodeError builds an error frame.
func EncodeError(message string) ([]byte, error) {
	data, err := json.Marshal(frameWire{Type: TypeError, Message: &message})
	if err != nil {
		return nil, fmt.Errorf("encode error frame: %w", err)
	}
	return data, nil
}
