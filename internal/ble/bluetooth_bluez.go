//go:build !darwin && !windows

package ble

// BlueZ only exposes write commands through tinygo. Payloads larger than
// one MTU must go through WriteChunked.
func (c *bluetoothCharacteristic) write(data []byte) (int, error) {
	return c.char.WriteWithoutResponse(data)
}

func (c *bluetoothCharacteristic) unsubscribe() error {
	return c.char.EnableNotifications(nil)
}

func (c *bluetoothCharacteristic) mtu() (int, error) {
	n, err := c.char.GetMTU()
	return int(n), err
}
