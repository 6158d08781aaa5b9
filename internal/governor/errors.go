package governor

import "codeberg.org/mutker/framectl/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrEmptyPresets  = errors.ErrorCode("governor_empty_preset_table")
	ErrPresetOrder   = errors.ErrorCode("governor_preset_order_invalid")
	ErrDuplicateName = errors.ErrorCode("governor_duplicate_preset_name")

	// Operation errors
	ErrClosed = errors.ErrorCode("governor_closed")
)
