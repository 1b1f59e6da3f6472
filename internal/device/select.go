package device

import (
	"context"
	"fmt"

	errs "github.com/tracehelper/tracehelper/internal/errors"
)

// Select returns the device with the given serial, or the first connected
// device when serial is empty. It fails with KindDeviceUnavailable when no
// device matches.
func Select(ctx context.Context, bridge Bridge, serial string) (Device, error) {
	devices, err := bridge.Devices(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindDeviceUnavailable, "list devices", err, "could not reach the device bridge")
	}

	if len(devices) == 0 {
		return nil, errs.New(errs.KindDeviceUnavailable, "select device", "no connected devices")
	}

	if serial == "" {
		return devices[0], nil
	}

	for _, d := range devices {
		if d.Serial() == serial {
			return d, nil
		}
	}

	return nil, errs.New(errs.KindDeviceUnavailable, "select device", fmt.Sprintf("device %s not found", serial))
}
