package model

import "time"

// PoolWindowMetrics stores aggregated swap metrics for a pool window.
type PoolWindowMetrics struct {
	PoolID         PoolID
	AssetX         string
	AssetY         string
	FeeBps         uint32
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	VolumeX        string
	VolumeY        string
	FeeX           string
	FeeY           string
	FeeRateX       *string
	FeeRateY       *string
	ReserveX       string
	ReserveY       string
	APR            *string
	FirstSeq       uint64
	LastSeq        uint64
}
