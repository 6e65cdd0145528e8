package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var registerOnce sync.Once

// RegisterValidators configures gin's validator to report json field names
// and adds the notblank rule. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			slog.Error("registering notblank validator", slog.Any("error", err))
		}
	})
}

// FromBinding turns a ShouldBindJSON failure into a 400. Field validation
// failures are all reported, joined as "field: message; field: message".
func FromBinding(err error) *AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fieldMessage(fe)))
		}
		return Validation(strings.Join(msgs, "; "))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return Validation(fmt.Sprintf("%s: must be of type %s", typeErr.Field, typeErr.Type))
	}
	if errors.Is(err, io.EOF) {
		return Validation("body: must not be empty")
	}
	return Malformed(err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be blank"
	case "email":
		return "must be a well-formed email address"
	case "min":
		return fmt.Sprintf("size must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("size must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed the %q constraint", fe.Tag())
	}
}

// Middleware translates the last error a handler attached with c.Error into
// a {"message": ...} body. Internal causes are logged, never sent.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var appErr *AppError
		if !errors.As(err, &appErr) {
			appErr = Internal(err)
		}

		if appErr.Kind == KindInternal || appErr.Kind == KindMalformed {
			slog.ErrorContext(c.Request.Context(), "request failed",
				slog.String("path", c.Request.URL.Path),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
			)
		}

		if appErr.Kind == KindUnauthenticated {
			c.JSON(appErr.Code, gin.H{"status": appErr.Code, "message": appErr.Message})
			return
		}
		c.JSON(appErr.Code, gin.H{"message": SafeMessage(appErr)})
	}
}

// Abort records err for Middleware and stops the handler chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
