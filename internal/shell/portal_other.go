//go:build !linux

package shell

// NewOpener returns the platform command opener.
func NewOpener() Opener {
	return NewCommandOpener()
}
