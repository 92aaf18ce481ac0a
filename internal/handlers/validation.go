package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/syncroom-dev/syncroom/internal/collab"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Validates capability names on request payloads before they reach
		// the engine.
		_ = v.RegisterValidation("capability", func(fl validator.FieldLevel) bool {
			_, ok := collab.ParseCapability(fl.Field().String())
			return ok
		})
	}
}
