package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-checkin-agent/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator, configured once in init.
var v = validator.New()

func init() {
	// Report fields by their wire names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(coordinatesTogether, domain.CheckInRequest{})
}

// coordinatesTogether rejects a request carrying only one of latitude and longitude.
func coordinatesTogether(sl validator.StructLevel) {
	req := sl.Current().Interface().(domain.CheckInRequest)
	if (req.Latitude == nil) != (req.Longitude == nil) {
		if req.Latitude == nil {
			sl.ReportError(req.Latitude, "latitude", "Latitude", "required_together", "")
			return
		}
		sl.ReportError(req.Longitude, "longitude", "Longitude", "required_together", "")
	}
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
