package node

import (
	"github.com/ramianet/ramiad/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)
