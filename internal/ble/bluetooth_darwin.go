package ble

// CoreBluetooth supports acknowledged writes.
func (c *bluetoothCharacteristic) write(data []byte) (int, error) {
	return c.char.Write(data)
}

// CoreBluetooth cannot disable notifications through tinygo, so the
// callback is replaced with a no-op until the link is torn down.
func (c *bluetoothCharacteristic) unsubscribe() error {
	return c.char.EnableNotifications(func([]byte) {})
}

// GetMTU reports the maximum write length here, which already excludes the
// ATT header.
func (c *bluetoothCharacteristic) mtu() (int, error) {
	n, err := c.char.GetMTU()
	if err != nil {
		return 0, err
	}
	return int(n) + attWriteOverhead, nil
}
