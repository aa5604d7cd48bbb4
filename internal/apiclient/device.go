package apiclient

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/netplus/netprep/internal/version"
)

var UserAgent = fmt.Sprintf("%s/%s (%s; %s; %s)", version.AppName, version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

var deviceID = sync.OnceValue(func() string {
	id, err := machineid.ProtectedID(version.AppName)
	if err != nil {
		return "unknown"
	}
	return id
})

// DeviceID is a stable per-machine identifier, hashed with the app name.
func DeviceID() string {
	return deviceID()
}
