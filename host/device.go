package host

// Device describes one execution device made available to kernels. The
// driver only validates and lists devices; placement is up to kernels.
type Device struct {
	Name string
	Kind string
}

func validateDevices(devices []Device) error {
	seen := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		if d.Name == "" {
			return errEmptyDeviceName
		}
		if _, dup := seen[d.Name]; dup {
			return errDuplicateDevice(d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}
