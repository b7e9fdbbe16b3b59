package client

import (
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/workq/pkg/errx"
)

var clientErrors = errx.NewRegistry("CLIENT")

var (
	ErrRequest  = clientErrors.Register("REQUEST", errx.TypeExternal, 502, "Request to the queue API failed")
	ErrResponse = clientErrors.Register("RESPONSE", errx.TypeExternal, 502, "Unreadable response from the queue API")
	ErrEncode   = clientErrors.Register("ENCODE", errx.TypeInternal, 500, "Failed to encode request")
)

// apiError rebuilds the server's coded error from its JSON body so callers
// can branch on the original code and type.
func apiError(status int, body []byte) *errx.Error {
	var resp struct {
		Error   string         `json:"error"`
		Code    string         `json:"code"`
		Type    string         `json:"type"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Code == "" {
		return clientErrors.NewWithMessage(ErrResponse, fmt.Sprintf("unexpected status %d", status)).
			WithDetail("status_code", status).
			WithDetail("body", string(body))
	}
	e := errx.New(resp.Error, errx.Type(resp.Type))
	e.Code = resp.Code
	e.HTTPStatus = status
	return e.WithDetails(resp.Details)
}
