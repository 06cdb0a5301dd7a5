package models

import "time"

// Status задает состояние замера.
type Status string

// Состояния конечного автомата замера:
// pending -> segmenting -> completed | failed.
const (
	StatusPending    Status = "pending"
	StatusSegmenting Status = "segmenting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal сообщает, является ли состояние конечным.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid сообщает, является ли значение известным состоянием.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSegmenting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Dimensions описывает габариты коробки. Каждое поле необязательно.
type Dimensions struct {
	Length *float64 `json:"length,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Measurement хранит запись одного замера коробки.
// Dimensions, Weight и Images заполняются только в состоянии completed.
type Measurement struct {
	ID         string      `json:"id"`
	UserUID    string      `json:"user"`
	Status     Status      `json:"status"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Weight     *float64    `json:"weight,omitempty"`
	Images     []string    `json:"images"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// SegmentationResult содержит успешный ответ устройства.
type SegmentationResult struct {
	Dimensions Dimensions `json:"dimensions"`
	Weight     *float64   `json:"weight"`
	Images     []string   `json:"images"`
}

// LiveStats содержит сводку по замерам пользователя для дашборда.
type LiveStats struct {
	MeasurementCount int     `json:"measurementCount"`
	Pending          int     `json:"pending"`
	Segmenting       int     `json:"segmenting"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	SegmentationPct  float64 `json:"segmentationPct"`
}

// DeviceStatus показывает доступность устройства сегментации.
type DeviceStatus struct {
	Online bool   `json:"online"`
	Status string `json:"status,omitempty"`
}
