package ble

func (c *bluetoothCharacteristic) write(data []byte) (int, error) {
	return c.char.Write(data)
}

func (c *bluetoothCharacteristic) unsubscribe() error {
	return c.char.EnableNotifications(nil)
}

func (c *bluetoothCharacteristic) mtu() (int, error) {
	n, err := c.char.GetMTU()
	return int(n), err
}
