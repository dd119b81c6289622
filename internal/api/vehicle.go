package api

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/banshee-data/overdrive/internal/protocol"
)

type speedRequest struct {
	Speed        int16  `json:"speed"`
	Accel        *int16 `json:"accel,omitempty"`
	RespectLimit bool   `json:"respect_limit"`
}

type laneRequest struct {
	Offset float32 `json:"offset"`
	// Speed and Accel default to the vehicle's usual horizontal values.
	Speed *uint16 `json:"speed,omitempty"`
	Accel *uint16 `json:"accel,omitempty"`
	// CalibrateOffset, when set, is sent as the vehicle's current offset
	// before the lane change.
	CalibrateOffset *float32 `json:"calibrate_offset,omitempty"`
}

type lightConfigRequest struct {
	Channel string `json:"channel"`
	Effect  string `json:"effect"`
	Start   uint8  `json:"start"`
	End     uint8  `json:"end"`
	Cycles  uint8  `json:"cycles"`
}

// lightsRequest sets simple on/off lights, a channel pattern, or both.
type lightsRequest struct {
	Lights  map[string]bool      `json:"lights,omitempty"`
	Pattern []lightConfigRequest `json:"pattern,omitempty"`
}

type turnRequest struct {
	Type    string `json:"type"`
	Trigger string `json:"trigger"`
}

var lightNames = map[string]protocol.Light{
	"head":   protocol.LightHead,
	"brake":  protocol.LightBrake,
	"front":  protocol.LightFront,
	"engine": protocol.LightEngine,
}

var turnTypes = map[string]uint8{
	"none":  protocol.TurnNone,
	"left":  protocol.TurnLeft,
	"right": protocol.TurnRight,
	"uturn": protocol.TurnUTurn,
	"ujump": protocol.TurnUJump,
}

func (s *Server) showVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.vehicle == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"connected": true, "address": s.vehicle.Address()})
}

func (s *Server) commandVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.vehicle == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No vehicle connected")
		return
	}

	var (
		msgs []protocol.Message
		err  error
	)
	switch action := strings.TrimPrefix(r.URL.Path, "/api/vehicle/"); action {
	case "speed":
		var req speedRequest
		if !s.readJSON(w, r, &req) {
			return
		}
		msgs, err = speedCommand(req, s.opts.Accel)
	case "lane":
		var req laneRequest
		if !s.readJSON(w, r, &req) {
			return
		}
		msgs, err = laneCommand(req)
	case "lights":
		var req lightsRequest
		if !s.readJSON(w, r, &req) {
			return
		}
		msgs, err = lightsCommand(req)
	case "turn":
		var req turnRequest
		if !s.readJSON(w, r, &req) {
			return
		}
		msgs, err = turnCommand(req)
	default:
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown vehicle command %q", action))
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if err := s.vehicle.Send(m); err != nil {
			s.writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("Failed to send %s: %v", m.Type(), err))
			return
		}
		sent = append(sent, m.Type().String())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent})
}

func speedCommand(req speedRequest, defaultAccel int16) ([]protocol.Message, error) {
	if req.Speed < 0 {
		return nil, fmt.Errorf("speed must not be negative, got %d", req.Speed)
	}
	m := protocol.NewSetSpeed(req.Speed, defaultAccel)
	if req.Accel != nil {
		m.Accel = *req.Accel
	}
	m.RespectLimit = req.RespectLimit
	return []protocol.Message{m}, nil
}

func laneCommand(req laneRequest) ([]protocol.Message, error) {
	if math.IsNaN(float64(req.Offset)) || math.IsInf(float64(req.Offset), 0) {
		return nil, fmt.Errorf("offset must be finite")
	}
	m := protocol.NewChangeLane(req.Offset)
	if req.Speed != nil {
		m.HorizontalSpeed = *req.Speed
	}
	if req.Accel != nil {
		m.HorizontalAccel = *req.Accel
	}
	if req.CalibrateOffset != nil {
		return []protocol.Message{&protocol.SetOffset{Offset: *req.CalibrateOffset}, m}, nil
	}
	return []protocol.Message{m}, nil
}

func lightsCommand(req lightsRequest) ([]protocol.Message, error) {
	if len(req.Lights) == 0 && len(req.Pattern) == 0 {
		return nil, fmt.Errorf("lights or pattern is required")
	}

	var msgs []protocol.Message
	if len(req.Lights) > 0 {
		states := make(map[protocol.Light]bool, len(req.Lights))
		for name, on := range req.Lights {
			l, ok := lightNames[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("unknown light %q", name)
			}
			states[l] = on
		}
		msgs = append(msgs, &protocol.SetLights{Mask: protocol.LightMask(states)})
	}
	if len(req.Pattern) > 0 {
		pattern := &protocol.LightsPattern{}
		for _, c := range req.Pattern {
			ch, err := protocol.ParseLightChannel(strings.ToUpper(c.Channel))
			if err != nil {
				return nil, err
			}
			eff, err := protocol.ParseLightEffect(strings.ToUpper(c.Effect))
			if err != nil {
				return nil, err
			}
			pattern.Add(protocol.LightConfig{Channel: ch, Effect: eff, Start: c.Start, End: c.End, Cycles: c.Cycles})
		}
		msgs = append(msgs, pattern)
	}
	return msgs, nil
}

func turnCommand(req turnRequest) ([]protocol.Message, error) {
	name := strings.ToLower(req.Type)
	if name == "" {
		name = "uturn"
	}
	tt, ok := turnTypes[name]
	if !ok {
		return nil, fmt.Errorf("unknown turn type %q", req.Type)
	}
	m := &protocol.Turn{TurnType: tt, Trigger: protocol.TurnTriggerImmediately}
	switch strings.ToLower(req.Trigger) {
	case "", "immediately", "immediate":
	case "next", "next_transition":
		m.Trigger = protocol.TurnTriggerNextTransition
	default:
		return nil, fmt.Errorf("unknown turn trigger %q", req.Trigger)
	}
	return []protocol.Message{m}, nil
}
