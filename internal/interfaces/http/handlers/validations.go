package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/veil-vpn/veil/internal/domain/device"
)

var registerOnce sync.Once

// RegisterValidations adds the devicetype tag to gin's validator so request
// structs can validate device types declaratively.
func RegisterValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("devicetype", func(fl validator.FieldLevel) bool {
				_, err := device.ParseType(fl.Field().String())
				return err == nil
			})
		}
	})
}
