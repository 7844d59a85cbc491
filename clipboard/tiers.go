package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// commandCandidates lists clipboard utilities in preference order per
// platform. The first one present on PATH wins.
func commandCandidates() [][]string {
	switch runtime.GOOS {
	case "darwin":
		return [][]string{{"pbcopy"}}
	case "windows":
		return [][]string{{"clip"}}
	default:
		return [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}
}

var lookupCommand = sync.OnceValue(func() []string {
	for _, candidate := range commandCandidates() {
		if _, err := exec.LookPath(candidate[0]); err == nil {
			return candidate
		}
	}
	return nil
})

func commandAvailable() bool {
	return lookupCommand() != nil
}

// commandWrite pipes the text through the platform clipboard utility.
func commandWrite(text string) error {
	argv := lookupCommand()
	if argv == nil {
		return fmt.Errorf("no clipboard utility on PATH")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// osc52Available reports whether a controlling terminal exists. OSC 52
// reaches the clipboard through the terminal emulator itself, which works
// in headless and remote contexts where no display clipboard is reachable.
func osc52Available() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	info, err := os.Stat("/dev/tty")
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// osc52Write emits an OSC 52 set-clipboard escape sequence to the
// controlling terminal.
func osc52Write(text string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}
	defer tty.Close()

	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := fmt.Fprintf(tty, "\x1b]52;c;%s\x07", encoded); err != nil {
		return fmt.Errorf("write osc52: %w", err)
	}
	return nil
}
