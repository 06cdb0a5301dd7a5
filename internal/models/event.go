package models

import "time"

// MeasurementEvent публикуется при каждой смене состояния замера.
type MeasurementEvent struct {
	MeasurementID string    `json:"measurementId"`
	UserUID       string    `json:"userId"`
	Status        Status    `json:"status"`
	At            time.Time `json:"at"`
}
