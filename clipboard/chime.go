package clipboard

import (
	"time"

	"github.com/gen2brain/beeep"
)

// Chime plays a short two-tone rising confirmation. Errors are swallowed:
// a missing audio device must never affect the clipboard outcome.
func Chime() {
	_ = beeep.Beep(660, 90)
	time.Sleep(30 * time.Millisecond)
	_ = beeep.Beep(880, 120)
}
