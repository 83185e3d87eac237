package match

import (
	"fmt"

	"github.com/desertthunder/spx/internal/shared"
)

var (
	ErrUnknownStrategy   = fmt.Errorf("%w: unknown matching strategy", shared.ErrInvalidConfig)
	ErrEmptyPattern      = fmt.Errorf("%w: matching pattern is empty", shared.ErrInvalidConfig)
	ErrNestedPattern     = fmt.Errorf("%w: descending cannot be combined with other strategies", shared.ErrInvalidConfig)
	ErrMalformedOverride = fmt.Errorf("%w: malformed override file", shared.ErrInvalidConfig)
	ErrOverrideTarget    = fmt.Errorf("pinned library item does not exist")
	ErrMalformedTrack    = fmt.Errorf("%w: malformed source track", shared.ErrInvalidInput)
)
