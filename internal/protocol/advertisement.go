package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Model is the vehicle model byte published in the advertisement.
type Model uint8

const (
	ModelKourai      Model = 0x01
	ModelBoson       Model = 0x02
	ModelRho         Model = 0x03
	ModelKatal       Model = 0x04
	ModelHadion      Model = 0x05
	ModelSpektrix    Model = 0x06
	ModelCorax       Model = 0x07
	ModelGroundshock Model = 0x08
	ModelSkull       Model = 0x09
	ModelThermo      Model = 0x0a
	ModelNuke        Model = 0x0b
	ModelGuardian    Model = 0x0c
	ModelUnknown     Model = 0x0d
	ModelBigBang     Model = 0x0e
	ModelFreewheel   Model = 0x0f
	ModelX52         Model = 0x10
	ModelX52Ice      Model = 0x11
	ModelMXT         Model = 0x12
	ModelCharger     Model = 0x13
	ModelPhantom     Model = 0x14
)

const defaultModelColor = "#f00"

type modelInfo struct {
	name  string
	color string
}

var models = map[Model]modelInfo{
	ModelKourai:      {"KOURAI", defaultModelColor},
	ModelBoson:       {"BOSON", defaultModelColor},
	ModelRho:         {"RHO", defaultModelColor},
	ModelKatal:       {"KATAL", defaultModelColor},
	ModelHadion:      {"HADION", defaultModelColor},
	ModelSpektrix:    {"SPEKTRIX", defaultModelColor},
	ModelCorax:       {"CORAX", defaultModelColor},
	ModelGroundshock: {"GROUNDSHOCK", "#2994f1"},
	ModelSkull:       {"SKULL", "#df3232"},
	ModelThermo:      {"THERMO", "#a11c20"},
	ModelNuke:        {"NUKE", "#bed62f"},
	ModelGuardian:    {"GUARDIAN", "#42b1d7"},
	ModelUnknown:     {"UNKNOWN", defaultModelColor},
	ModelBigBang:     {"BIGBANG", "#4e674d"},
	ModelFreewheel:   {"FREEWHEEL", "#25bc00"},
	ModelX52:         {"X52", "#990909"},
	ModelX52Ice:      {"X52ICE", "#d1e9ff"},
	ModelMXT:         {"MXT", "#475666"},
	ModelCharger:     {"CHARGER", "#6d7175"},
	ModelPhantom:     {"PHANTOM", "#2d2d2d"},
}

func (m Model) String() string {
	if info, ok := models[m]; ok {
		return info.name
	}
	return fmt.Sprintf("MODEL(0x%02x)", uint8(m))
}

// Color returns the model's body colour as a CSS hex string.
func (m Model) Color() string {
	if info, ok := models[m]; ok {
		return info.color
	}
	return defaultModelColor
}

// advertisementLen is the manufacturer data size: product id, reserved,
// model id and identifier.
const advertisementLen = 8

// localNameCharging is set in the first local name byte while the vehicle
// sits on its charger.
const localNameCharging = 0x40

// Advertisement is the vehicle description carried in its BLE advertisement.
type Advertisement struct {
	ProductID  uint16
	Model      Model
	Identifier uint32
	Charging   bool
}

// ParseAdvertisement decodes the hex manufacturer data and local name a
// gateway reports for a discovered vehicle. An empty local name leaves
// Charging false.
func ParseAdvertisement(manufacturerHex, localNameHex string) (Advertisement, error) {
	data, err := hex.DecodeString(manufacturerHex)
	if err != nil {
		return Advertisement{}, fmt.Errorf("%w: manufacturer data: %v", ErrInvalidAdvertisement, err)
	}
	if len(data) < advertisementLen {
		return Advertisement{}, fmt.Errorf("%w: manufacturer data of %d bytes", ErrInvalidAdvertisement, len(data))
	}
	ad := Advertisement{
		ProductID:  binary.LittleEndian.Uint16(data[0:2]),
		Model:      Model(data[3]),
		Identifier: binary.LittleEndian.Uint32(data[4:8]),
	}

	name, err := hex.DecodeString(localNameHex)
	if err != nil {
		return Advertisement{}, fmt.Errorf("%w: local name: %v", ErrInvalidAdvertisement, err)
	}
	if len(name) > 0 {
		ad.Charging = name[0]&localNameCharging != 0
	}
	return ad, nil
}

func (a Advertisement) String() string {
	return fmt.Sprintf("%s %X", a.Model, a.Identifier/0x1000000)
}
