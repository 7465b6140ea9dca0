//go:build linux

package shell

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	portalBusName    = "org.freedesktop.portal.Desktop"
	portalObjectPath = "/org/freedesktop/portal/desktop"
	portalOpenURI    = "org.freedesktop.portal.OpenURI.OpenURI"
)

// PortalOpener opens URLs through the XDG desktop portal and falls back to
// the open command for paths and when the portal is unavailable.
type PortalOpener struct {
	conn     *dbus.Conn
	fallback Opener
}

// NewOpener returns a portal-backed opener when a session bus is reachable,
// the plain command opener otherwise.
func NewOpener() Opener {
	conn, err := dbus.SessionBus()
	if err != nil {
		return NewCommandOpener()
	}
	return &PortalOpener{conn: conn, fallback: NewCommandOpener()}
}

func (p *PortalOpener) OpenURL(ctx context.Context, url string) error {
	obj := p.conn.Object(portalBusName, dbus.ObjectPath(portalObjectPath))
	call := obj.CallWithContext(ctx, portalOpenURI, 0, "", url, map[string]dbus.Variant{})
	if call.Err != nil {
		if fbErr := p.fallback.OpenURL(ctx, url); fbErr != nil {
			return fmt.Errorf("portal: %v; fallback: %w", call.Err, fbErr)
		}
	}
	return nil
}

// OpenPath skips the portal: OpenURI refuses file:// URIs without a file
// descriptor handle.
func (p *PortalOpener) OpenPath(ctx context.Context, path string) error {
	return p.fallback.OpenPath(ctx, path)
}
