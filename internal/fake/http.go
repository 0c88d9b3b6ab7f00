package fake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pushsync/pushsync-go/pkg/interest"
	"github.com/pushsync/pushsync-go/pkg/registration"
	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

const basePattern = "/device_api/v1/instances/{instance}/devices/{platform}"

// Handler serves s with the device API's routes. Point the registration
// client at it with registration.WithEndpoint.
func Handler(s *Server) http.Handler {
	c := &Client{server: s}
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+basePattern, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token    string                `json:"token"`
			Metadata registration.Metadata `json:"metadata"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Token == "" {
			writeError(w, http.StatusBadRequest, "Invalid Request", "token is required")
			return
		}
		reg, err := c.Register(r.Context(), req.Token, req.Metadata)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                 reg.DeviceID,
			"initialInterestSet": reg.InitialInterests.Sorted(),
		})
	})

	mux.HandleFunc("PUT "+basePattern+"/{id}/token", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if !decode(w, r, &req) {
			return
		}
		reply(w, c.UpdateToken(r.Context(), r.PathValue("id"), req.Token))
	})

	mux.HandleFunc("PUT "+basePattern+"/{id}/interests", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Interests []string `json:"interests"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := interest.ValidateNames(req.Interests); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid Interests", err.Error())
			return
		}
		target := interest.FromSlice(req.Interests)
		_, err := c.UpdateInterests(r.Context(), r.PathValue("id"), interest.Diff{Target: target})
		reply(w, err)
	})

	mux.HandleFunc("PUT "+basePattern+"/{id}/metadata", func(w http.ResponseWriter, r *http.Request) {
		var md registration.Metadata
		if !decode(w, r, &md) {
			return
		}
		reply(w, c.UpdateMetadata(r.Context(), r.PathValue("id"), md))
	})

	mux.HandleFunc("PUT "+basePattern+"/{id}/user", func(w http.ResponseWriter, r *http.Request) {
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		reply(w, c.AssociateUser(r.Context(), r.PathValue("id"), token))
	})

	mux.HandleFunc("DELETE "+basePattern+"/{id}/user", func(w http.ResponseWriter, r *http.Request) {
		reply(w, c.DisassociateUser(r.Context(), r.PathValue("id")))
	})

	mux.HandleFunc("DELETE "+basePattern+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, c.Delete(r.Context(), r.PathValue("id")))
	})

	return mux
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return false
	}
	return true
}

func reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// StatusFor returns the HTTP status a device API would answer err with.
func StatusFor(err error) int {
	switch syncerr.KindOf(err) {
	case syncerr.KindRetryable:
		return http.StatusServiceUnavailable
	case syncerr.KindUnauthorized:
		return http.StatusUnauthorized
	case syncerr.KindPermanentRejection:
		return http.StatusNotFound
	case syncerr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	msg := err.Error()
	var e *syncerr.Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	status := StatusFor(err)
	writeError(w, status, http.StatusText(status), msg)
}

func writeError(w http.ResponseWriter, status int, title, description string) {
	writeJSON(w, status, map[string]string{
		"error":       title,
		"description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
