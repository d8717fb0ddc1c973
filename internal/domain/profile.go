package domain

import "fmt"

// ProfileAll is the sentinel profile name that fans out into one Job per
// configured profile at admission time.
const ProfileAll = "all"

// Profile is a named target encoding configuration.
type Profile struct {
	Name        string
	Width       int
	Height      int
	BitrateKbps int
}

func (p Profile) Scale() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

func (p Profile) Bitrate() string {
	if p.BitrateKbps%1000 == 0 {
		return fmt.Sprintf("%dM", p.BitrateKbps/1000)
	}
	return fmt.Sprintf("%dk", p.BitrateKbps)
}
