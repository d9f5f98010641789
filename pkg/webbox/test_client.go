package webbox

import "context"

func CreateTestDeviceClient() (*TestDeviceClient, error) {
	return &TestDeviceClient{}, nil
}

// TestDeviceClient serves a small canned plant with one inverter and one
// attached string monitor. Like the real device it answers GetProcessData
// only for the requested key. FailWith, when set, is returned by every RPC.
type TestDeviceClient struct {
	FailWith        error
	Calls           int
	ProcessDataKeys []string
	Closed          bool
}

func (c *TestDeviceClient) GetPlantOverview(ctx context.Context) (*OverviewResult, error) {
	c.Calls++
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	return &OverviewResult{
		Overview: []ChannelValue{
			{Meta: "GriPwr", Name: "GriPwr", Value: "3021", Unit: UnitWatt},
			{Meta: "GriEgyTdy", Name: "GriEgyTdy", Value: "14.25", Unit: UnitKiloWattHour},
			{Meta: "GriEgyTot", Name: "GriEgyTot", Value: 20571.5, Unit: UnitKiloWattHour},
			{Meta: "OpStt", Name: "OpStt", Value: "Mpp", Unit: ""},
			{Meta: "Msg", Name: "Msg", Value: "---", Unit: ""},
		},
	}, nil
}

func (c *TestDeviceClient) GetDevices(ctx context.Context) (*DevicesResult, error) {
	c.Calls++
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	return &DevicesResult{
		TotalDevicesReturned: 1,
		Devices: []DeviceEntry{
			{
				Key:  "INV1",
				Name: "SB 5000TL-21",
				Children: []DeviceEntry{
					{Key: "STR1", Name: "String Monitor"},
				},
			},
		},
	}, nil
}

func (c *TestDeviceClient) GetProcessDataChannels(ctx context.Context, deviceKey string) ([]string, error) {
	c.Calls++
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	switch deviceKey {
	case "INV1":
		return []string{"DC", "AC"}, nil
	case "STR1":
		return []string{"DC"}, nil
	default:
		return nil, parseErrorf("channels", "device %s missing from channel listing", deviceKey)
	}
}

func (c *TestDeviceClient) GetProcessData(ctx context.Context, deviceKey string, channels []string) (*ProcessDataResult, error) {
	c.Calls++
	c.ProcessDataKeys = append(c.ProcessDataKeys, deviceKey)
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	switch deviceKey {
	case "INV1":
		return &ProcessDataResult{
			Devices: []DeviceData{
				{
					Key:  "INV1",
					Name: "SB 5000TL-21",
					Channels: []ChannelData{
						{
							Meta: "DC",
							Name: "DC Side",
							Values: []ChannelValue{
								{Meta: "Power", Name: "Power", Value: "1234", Unit: UnitWatt},
								{Meta: "Voltage", Name: "Voltage", Value: "398.2", Unit: UnitVolt},
							},
						},
						{
							Meta: "AC",
							Name: "AC Side",
							Values: []ChannelValue{
								{Meta: "GridFreq", Name: "GridFreq", Value: 50.02, Unit: UnitHertz},
								{Meta: "Temperature", Name: "Temperature", Value: "---", Unit: UnitTemperatureCelsius},
							},
						},
					},
				},
			},
		}, nil
	case "STR1":
		return &ProcessDataResult{
			Devices: []DeviceData{
				{
					Key:  "STR1",
					Name: "String Monitor",
					Channels: []ChannelData{
						{
							Meta: "DC",
							Name: "DC Side",
							Values: []ChannelValue{
								{Meta: "Current", Name: "Current", Value: "3.1", Unit: UnitAmpere},
							},
						},
					},
				},
			},
		}, nil
	default:
		return nil, &DeviceError{Code: 401, Message: "unknown device"}
	}
}

func (c *TestDeviceClient) Close() error {
	c.Closed = true
	return nil
}
