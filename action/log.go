package action

import (
	"github.com/btcsuite/btclog"
	"github.com/smartvaults/svengine/build"
)

// log is initialized to a disabled logger, so the package stays silent
// until UseLogger is given a real one.
var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("ACTN", nil))
}

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
