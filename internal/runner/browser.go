package runner

import (
	"fmt"
	"os/exec"
	"runtime"
)

var openBrowser = openURL

func openURL(url string) error {
	var err error
	rt := runtime.GOOS
	switch rt {
	case "darwin":
		err = exec.Command("open", url).Start()
	case "linux", "freebsd", "openbsd", "netbsd":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		return fmt.Errorf("unable to open browser window on %s: %w", rt, err)
	}
	return nil
}
