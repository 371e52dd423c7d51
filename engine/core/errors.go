package core

import (
	"errors"
)

var (
	ErrSwapchainOutOfDate = errors.New("swapchain resized or recreated, pipeline must be rebuilt")
)
