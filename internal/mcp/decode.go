package mcp

import (
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

// decode reads the tool arguments into a request struct. Malformed
// arguments become INVALID_REQUEST naming the offending field.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var in T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return in, errors.NewInvalidRequest("arguments are not a JSON object")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return in, errors.WithHintf(
				errors.NewInvalidRequest(typeErr.Field+": expected "+typeErr.Type.String()),
				"check the %s input schema", req.Params.Name)
		}
		return in, errors.NewInvalidRequest("invalid arguments: " + err.Error())
	}
	return in, nil
}
