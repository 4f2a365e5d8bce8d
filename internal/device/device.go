// Package device resuelve un descriptor de plataforma ("macOS Safari") a
// partir del User-Agent. El descriptor se persiste en la credencial como
// last_used_platform para que el usuario reconozca sus autenticadores.
//
// No es un parser UA completo: alcanza con OS + navegador, y ante cualquier
// duda degrada a "Unknown".
package device

import "strings"

// Unknown es el descriptor cuando el User-Agent no se puede clasificar.
const Unknown = "Unknown"

// Platform clasifica un header User-Agent.
func Platform(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return Unknown
	}

	os := osName(ua)
	browser := browserName(ua)

	switch {
	case os != "" && browser != "":
		return os + " " + browser
	case os != "":
		return os
	case browser != "":
		return browser
	default:
		return Unknown
	}
}

func osName(ua string) string {
	switch {
	// iOS antes que macOS: los UA de iPhone/iPad también dicen "like Mac OS X".
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "cros"):
		return "ChromeOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return ""
	}
}

func browserName(ua string) string {
	switch {
	// Orden importa: Edge y Opera incluyen "chrome", Chrome incluye "safari".
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "chromium/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	default:
		return ""
	}
}
