package service

import "errors"

// Errores de integridad: el caller no debe reintentar a ciegas.
var (
	ErrCategoryNotFound   = errors.New("fleet category not found")
	ErrPingFormatNotFound = errors.New("category has no ping format")
	ErrInvalidSnowflake   = errors.New("invalid discord id")
)
