package pack

import "errors"

var (
	ErrPackNotFound      = errors.New("pack not found")
	ErrPackInactive      = errors.New("pack is not active")
	ErrNoFreePack        = errors.New("no active free pack configured")
	ErrInvalidPackConfig = errors.New("invalid pack configuration")
	ErrFailedToLoadPacks = errors.New("failed to load pack catalog")
)
