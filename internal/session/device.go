package session

import "fmt"

type Device string

const (
	Desktop Device = "desktop"
	Mobile  Device = "mobile"
)

func ParseDevice(s string) (Device, error) {
	switch Device(s) {
	case Desktop, Mobile:
		return Device(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown device %q", s)
}

// Profile is the emulated hardware for a device kind.
type Profile struct {
	Name        string
	UserAgents  []string
	Width       int
	Height      int
	ScaleFactor float64
	IsMobile    bool
	HasTouch    bool
	Platform    string
}

func ProfileFor(d Device) Profile {
	if d == Mobile {
		return Profile{
			Name: "iPhone 13 Pro Max",
			UserAgents: []string{
				"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
				"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			},
			Width:       428,
			Height:      926,
			ScaleFactor: 3,
			IsMobile:    true,
			HasTouch:    true,
			Platform:    "iOS",
		}
	}
	return Profile{
		Name: "Desktop Chrome",
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Width:       1920,
		Height:      1080,
		ScaleFactor: 1,
		Platform:    "Windows",
	}
}
