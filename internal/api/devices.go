package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/homelinklabs/homelink-core/internal/audit"
	"github.com/homelinklabs/homelink-core/internal/device"
	"github.com/homelinklabs/homelink-core/internal/topic"
)

// createDeviceRequest is the body of a device registration.
type createDeviceRequest struct {
	Name        string `json:"name"`
	EndpointID  string `json:"endpoint_id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Integration string `json:"integration"`
	Topic       string `json:"topic"`
	Channels    int    `json:"channels"`
}

// handleListDevices returns the caller's devices ordered by creation time.
//
// GET /devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	devices, err := s.registry.List(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing devices failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "could not list devices")
		return
	}

	writeJSON(w, http.StatusOK, devices)
}

// handleCreateDevice registers a new device for the caller.
//
// Board devices get a derived topic base; custom-topic devices must
// carry a valid topic in the request.
//
// POST /devices
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	deviceType, err := device.ParseDeviceType(req.Type)
	if err != nil {
		writeBadRequest(w, "type must be one of LIGHT, TV, THERMOSTAT, DOOR")
		return
	}
	integration, err := device.ParseIntegration(req.Integration)
	if err != nil {
		writeBadRequest(w, "integration must be BOARD or CUSTOM_TOPIC")
		return
	}

	created, err := s.registry.Create(r.Context(), user.ID, device.CreateSpec{
		EndpointID:  req.EndpointID,
		Name:        req.Name,
		Description: req.Description,
		Type:        deviceType,
		Integration: integration,
		Topic:       req.Topic,
		Channels:    req.Channels,
	})
	if err != nil {
		switch {
		case errors.Is(err, device.ErrTopicConflict):
			writeConflict(w, "a device with this endpoint or topic already exists")
		case errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidEndpointID),
			errors.Is(err, device.ErrInvalidChannels),
			errors.Is(err, topic.ErrInvalidTopic):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("creating device failed", "user_id", user.ID, "error", err)
			writeInternalError(w, "could not create device")
		}
		return
	}

	s.record(r, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionDeviceCreate,
		TargetID: created.ID,
		Details:  map[string]any{"name": created.Name, "type": string(created.Type)},
	})

	writeJSON(w, http.StatusCreated, created)
}

// handleUpdatePower dispatches a power command to a device and returns
// the resulting state.
//
// PATCH /devices/{id}/power
func (s *Server) handleUpdatePower(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	deviceID := chi.URLParam(r, "id")

	var req struct {
		Power string `json:"power"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, err := device.ParsePowerState(req.Power)
	if err != nil {
		writeBadRequest(w, "power must be ON or OFF")
		return
	}

	updated, _, err := s.dispatcher.SendPower(r.Context(), user.ID, deviceID, state)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrTransportUnavailable):
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal,
				"device transport is not connected")
		default:
			s.logger.Error("power command failed",
				"user_id", user.ID, "device_id", deviceID, "error", err)
			writeInternalError(w, "could not update device power")
		}
		return
	}

	s.record(r, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionPowerCommand,
		TargetID: updated.ID,
		Details:  map[string]any{"state": string(state)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          updated.ID,
		"power_state": updated.PowerState,
	})
}
