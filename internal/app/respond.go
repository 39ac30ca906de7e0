package app

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"booking-service/internal/booking"
)

func init() {
	// Gin binds with validator under the hood; report field errors under
	// their wire names instead of Go struct names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return fld.Name
			}
			return name
		})
	}
}

// bindingFieldErrors turns a gin binding failure into a field→message map.
func bindingFieldErrors(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "email":
			out[fe.Field()] = "must be a valid email address"
		case "min":
			out[fe.Field()] = "must be at least " + fe.Param()
		case "max":
			out[fe.Field()] = "must be at most " + fe.Param()
		default:
			out[fe.Field()] = "is invalid"
		}
	}
	return out
}

// respondError maps booking error kinds to HTTP statuses. Non-booking errors
// are internal.
func respondError(c *gin.Context, err error) {
	be, ok := booking.AsError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch be.Kind {
	case booking.KindValidation:
		status = http.StatusBadRequest
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindSlotUnavailable:
		status = http.StatusConflict
	case booking.KindExternal:
		status = http.StatusBadGateway
	case booking.KindPersistence:
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": be.Message, "kind": string(be.Kind)}
	if len(be.Fields) > 0 {
		body["fields"] = be.Fields
	}
	c.JSON(status, body)
}
