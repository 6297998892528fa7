package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calder-wren/pagepermsbackend/permissions"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string   `json:"code"`
	Status string   `json:"status"`
	Detail string   `json:"detail"`
	Params []string `json:"params,omitempty"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// WriteDenials renders a list of permission denials as the standardized error
// response. Internal storage details never reach this path; denials carry
// only presentation codes and their parameters.
func WriteDenials(w http.ResponseWriter, httpStatus int, denials []permissions.Denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{Errors: make([]APIErrorDetail, 0, len(denials))}
	for _, denial := range denials {
		resp.Errors = append(resp.Errors, APIErrorDetail{
			Code:   denial.Code,
			Status: strconv.Itoa(httpStatus),
			Detail: denialDetail(denial),
			Params: denial.Params,
		})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func denialDetail(denial permissions.Denial) string {
	switch denial.Code {
	case permissions.DenialGroupRights:
		return "You are not allowed to execute the action you have requested."
	case permissions.DenialRoleRights:
		return "No role assigned to you on this page grants the action you have requested."
	case permissions.DenialReadOnly:
		if len(denial.Params) > 0 {
			return "The database is currently locked: " + denial.Params[0]
		}
		return "The database is currently locked."
	default:
		return "The action you have requested was refused."
	}
}
