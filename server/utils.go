package server

import (
	"fmt"
	"net/http"

	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/rest"
)

// getId validates that the given string is a valid job id with the right
// prefix. If the string is invalid, getId writes a 400 error to the
// ResponseWriter and returns true for wroteResponse.
func getId(w http.ResponseWriter, r *http.Request, idStr string) (types.PrefixUUID, bool) {
	id, err := types.NewPrefixUUID(idStr)
	if err != nil {
		badRequest(w, r, &rest.Error{
			ID:    "invalid_uuid",
			Title: fmt.Sprintf("Invalid id: %s", idStr),
		})
		return types.PrefixUUID{}, true
	}
	if id.Prefix != ingest_jobs.Prefix {
		badRequest(w, r, &rest.Error{
			ID:    "invalid_prefix",
			Title: fmt.Sprintf("Invalid prefix: %s", id.Prefix),
		})
		return types.PrefixUUID{}, true
	}
	return id, false
}
