package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Route paths.
const (
	PathDirectory = "/acme/directory"
	PathNewNonce  = "/acme/new_nonce"
)

// RegisterRoutes registers the ACME routes.
func RegisterRoutes(api huma.API, h *ACMEHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-directory",
		Method:      http.MethodGet,
		Path:        PathDirectory,
		Summary:     "ACME directory",
		Description: "Lists the URLs of every ACME resource.",
		Tags:        []string{"ACME"},
	}, h.GetDirectory)

	// RFC 8555 answers HEAD with 200 and GET with 204.
	huma.Register(api, huma.Operation{
		OperationID:   "head-new-nonce",
		Method:        http.MethodHead,
		Path:          PathNewNonce,
		Summary:       "New nonce",
		Tags:          []string{"ACME"},
		DefaultStatus: http.StatusOK,
	}, h.NewNonce)

	huma.Register(api, huma.Operation{
		OperationID:   "get-new-nonce",
		Method:        http.MethodGet,
		Path:          PathNewNonce,
		Summary:       "New nonce",
		Description:   "Returns a fresh anti-replay nonce in the Replay-Nonce header.",
		Tags:          []string{"ACME"},
		DefaultStatus: http.StatusNoContent,
	}, h.NewNonce)
}
