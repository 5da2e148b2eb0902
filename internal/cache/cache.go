package cache

import (
	"fmt"

	"github.com/axel-fz/echostore/internal/persistence"
)

var ErrCacheMiss = fmt.Errorf("cache miss: %w", persistence.ErrSnapshotNotFound)
