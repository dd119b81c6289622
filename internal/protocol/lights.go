package protocol

import "fmt"

// LightChannel selects one LED on the vehicle.
type LightChannel uint8

const (
	ChannelEngineRed LightChannel = iota
	ChannelTail
	ChannelEngineBlue
	ChannelEngineGreen
	ChannelFrontRed
	ChannelFrontGreen
)

var channelNames = [...]string{"ENGINE_RED", "TAIL", "ENGINE_BLUE", "ENGINE_GREEN", "FRONT_RED", "FRONT_GREEN"}

func (c LightChannel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("CHANNEL(%d)", uint8(c))
}

// LightEffect is the animation run on a channel between Start and End.
type LightEffect uint8

const (
	EffectSteady LightEffect = iota // intensity fixed at Start
	EffectFade                      // Start to End
	EffectThrob                     // Start to End and back
	EffectFlash                     // on between Start and End
	EffectStrobe                    // erratic, ignores Start and End
)

var effectNames = [...]string{"STEADY", "FADE", "THROB", "FLASH", "STROBE"}

func (e LightEffect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("EFFECT(%d)", uint8(e))
}

// ParseLightChannel maps a channel name such as "TAIL" to its value.
func ParseLightChannel(name string) (LightChannel, error) {
	for i, n := range channelNames {
		if n == name {
			return LightChannel(i), nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown light channel %q", name)
}

// ParseLightEffect maps an effect name such as "THROB" to its value.
func ParseLightEffect(name string) (LightEffect, error) {
	for i, n := range effectNames {
		if n == name {
			return LightEffect(i), nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown light effect %q", name)
}

// LightConfig is one channel entry of a LightsPattern.
type LightConfig struct {
	Channel LightChannel
	Effect  LightEffect
	Start   uint8
	End     uint8
	Cycles  uint8
}

// LightsPattern programs one or more LED channels at once.
type LightsPattern struct {
	Channels []LightConfig
}

func (*LightsPattern) Type() Type { return TypeLightsPattern }

// Add appends a channel configuration and returns m for chaining.
func (m *LightsPattern) Add(c LightConfig) *LightsPattern {
	m.Channels = append(m.Channels, c)
	return m
}

func (m *LightsPattern) appendPayload(w *payloadWriter) {
	w.u8(uint8(len(m.Channels)))
	for _, c := range m.Channels {
		w.u8(uint8(c.Channel))
		w.u8(uint8(c.Effect))
		w.u8(c.Start)
		w.u8(c.End)
		w.u8(c.Cycles)
	}
}

func (m *LightsPattern) parsePayload(r *payloadReader) {
	n := int(r.u8())
	if r.err == nil && r.remaining() < n*5 {
		r.err = ErrMalformedMessage
		return
	}
	if n == 0 {
		return
	}
	m.Channels = make([]LightConfig, 0, n)
	for range n {
		m.Channels = append(m.Channels, LightConfig{
			Channel: LightChannel(r.u8()),
			Effect:  LightEffect(r.u8()),
			Start:   r.u8(),
			End:     r.u8(),
			Cycles:  r.u8(),
		})
	}
}

// Light identifies one of the simple on/off lights driven by SetLights.
type Light uint8

const (
	LightHead Light = iota
	LightBrake
	LightFront
	LightEngine
)

// LightMask builds a SetLights mask. The high nibble marks which lights
// are being changed and the low nibble carries their new state.
func LightMask(states map[Light]bool) uint8 {
	var mask uint8
	for l, on := range states {
		if l > LightEngine {
			continue
		}
		mask |= 1 << (uint8(l) + 4)
		if on {
			mask |= 1 << uint8(l)
		}
	}
	return mask
}
