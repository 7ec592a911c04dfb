package links

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/snip/pkg/snip/codegen"
)

var registerOnce sync.Once

// RegisterValidators adds the "shortcode" tag to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("shortcode", func(fl validator.FieldLevel) bool {
				return codegen.ValidateAlias(fl.Field().String()) == nil
			})
		}
	})
}
