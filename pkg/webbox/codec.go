package webbox

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	rpcVersion = "1.0"
	rpcFormat  = "JSON"

	procGetPlantOverview       = "GetPlantOverview"
	procGetDevices             = "GetDevices"
	procGetProcessDataChannels = "GetProcessDataChannels"
	procGetProcessData         = "GetProcessData"
)

type rpcRequest struct {
	Version string `json:"version"`
	Proc    string `json:"proc"`
	ID      string `json:"id"`
	Format  string `json:"format"`
	Params  any    `json:"params,omitempty"`
}

type rpcEnvelope struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Some firmware revisions report errors as a bare string or number
// instead of a {code, message} object.
func (e *rpcError) UnmarshalJSON(data []byte) error {
	type alias rpcError
	var obj alias
	if err := json.Unmarshal(data, &obj); err == nil {
		*e = rpcError(obj)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		e.Message = text
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		e.Code = code
		return nil
	}
	e.Message = string(data)
	return nil
}

// encodeFrame marshals a request and applies the device's framing quirk:
// every byte of the JSON text is followed by a NUL.
func encodeFrame(req rpcRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	framed := make([]byte, 0, len(data)*2)
	for _, b := range data {
		framed = append(framed, b, 0)
	}
	return framed, nil
}

// decodeFrame strips the interleaved NULs and widens the device's
// ISO 8859-1 text to UTF-8 so it can be unmarshalled as JSON.
func decodeFrame(data []byte) []byte {
	out := make([]byte, 0, len(data))
	var scratch [utf8.UTFMax]byte
	for _, b := range data {
		switch {
		case b == 0:
		case b < utf8.RuneSelf:
			out = append(out, b)
		default:
			n := utf8.EncodeRune(scratch[:], rune(b))
			out = append(out, scratch[:n]...)
		}
	}
	return out
}

func decodeEnvelope(data []byte) (*rpcEnvelope, error) {
	var env rpcEnvelope
	if err := json.Unmarshal(decodeFrame(data), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ChannelValue is one leaf reading as reported on the wire. Values arrive
// as strings or numbers depending on firmware; classification happens at
// parse time.
type ChannelValue struct {
	Meta  string `json:"meta"`
	Name  string `json:"name"`
	Value any    `json:"value"`
	Unit  string `json:"unit"`
}

// ChannelData is one measurement category of a device with its readings.
type ChannelData struct {
	Meta   string         `json:"meta"`
	Name   string         `json:"name"`
	Values []ChannelValue `json:"values"`
}

// DeviceData is the per-device part of a GetProcessData response.
type DeviceData struct {
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Channels []ChannelData `json:"channels"`
	Children []DeviceData  `json:"children"`
}

// DeviceEntry is one device of the GetDevices listing.
type DeviceEntry struct {
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Children []DeviceEntry `json:"children"`
}

// OverviewResult carries the plant-level readings of GetPlantOverview.
type OverviewResult struct {
	Overview []ChannelValue `json:"overview"`
}

// DevicesResult is the GetDevices result payload.
type DevicesResult struct {
	TotalDevicesReturned int           `json:"totalDevicesReturned"`
	Devices              []DeviceEntry `json:"devices"`
}

// ProcessDataResult is the GetProcessData result payload.
type ProcessDataResult struct {
	Devices []DeviceData `json:"devices"`
}

func sanitizeNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
