package registration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// errorBody is the error document returned by the device API.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// KindForStatus maps an HTTP status code to the error kind it represents.
// Success statuses map to KindUnknown.
func KindForStatus(status int) syncerr.Kind {
	switch {
	case status >= 200 && status < 300:
		return syncerr.KindUnknown
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return syncerr.KindRetryable
	case status >= 500:
		return syncerr.KindRetryable
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return syncerr.KindUnauthorized
	default:
		return syncerr.KindPermanentRejection
	}
}

// statusError builds the error for a non-2xx response.
func statusError(op string, status int, body []byte) error {
	msg := fmt.Sprintf("http %d", status)

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && (eb.Error != "" || eb.Description != "") {
		parts := make([]string, 0, 2)
		for _, p := range []string{eb.Error, eb.Description} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		msg += ": " + strings.Join(parts, ": ")
	} else if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 200 {
		msg += ": " + s
	}

	return syncerr.New(KindForStatus(status), op, msg)
}
