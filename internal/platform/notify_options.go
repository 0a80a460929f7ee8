// Package platform sends desktop notifications through the host's
// notification service.
package platform

import "time"

// DefaultAppName is reported to the notification service.
const DefaultAppName = "fooocanvas"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// IconPath, when non-empty, points to an image file shown with the
	// notification where supported.
	IconPath string
	// AppName defaults to DefaultAppName.
	AppName string
	// Expire is how long the notification stays up. Zero lets the server
	// decide.
	Expire time.Duration
}

func (o Options) appName() string {
	if o.AppName == "" {
		return DefaultAppName
	}
	return o.AppName
}
