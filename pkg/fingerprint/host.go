package fingerprint

import (
	"os"
	"runtime"
	"strings"
	"time"
)

// Host describes the running process as an Environment. Screen and canvas
// signals do not exist outside a browser and stay zero.
func Host(userAgent string) Environment {
	lang := hostLanguage()
	_, offset := time.Now().Zone()
	return Environment{
		UserAgent:           userAgent,
		Language:            lang,
		Languages:           []string{lang},
		TimezoneOffset:      -offset / 60,
		Timezone:            time.Local.String(),
		Platform:            runtime.GOOS + " " + runtime.GOARCH,
		CookieEnabled:       false,
		HardwareConcurrency: runtime.NumCPU(),
		DevicePixelRatio:    1,
	}
}

func hostLanguage() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return "en-US"
}
