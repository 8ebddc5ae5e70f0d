package helpers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/types"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// IsEmpty checks if the given value represents an empty or zero value.
func IsEmpty[T any](value T) bool {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return IsEmpty(v.Elem().Interface())
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Map, reflect.Slice, reflect.Chan:
		return v.IsNil() || v.Len() == 0
	case reflect.Func:
		return v.IsNil()
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.IsZero()
		}
	}
	return v.IsZero()
}

// FetchErrorStrings returns a slice of strings containing the error messages
func FetchErrorStrings(errs []error) []string {
	errStrings := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			errStrings = append(errStrings, err.Error())
		}
	}
	return errStrings
}

// FetchErrorStack returns a string containing the error messages separated by semicolons
func FetchErrorStack(errs []error) string {
	var s strings.Builder
	for _, err := range errs {
		if err != nil {
			s.WriteString(err.Error())
			s.WriteString("; ")
		}
	}
	return s.String()
}

// FetchHTTPStatusCode returns the HTTP status code associated with the response type
func FetchHTTPStatusCode(response types.ResponseErrorType) int {
	switch response {
	case constant.BadRequest:
		return http.StatusBadRequest
	case constant.Unauthorized:
		return http.StatusUnauthorized
	case constant.Forbidden:
		return http.StatusForbidden
	case constant.NotFound:
		return http.StatusNotFound
	case constant.Conflict:
		return http.StatusConflict
	case constant.Unavailable:
		return http.StatusServiceUnavailable
	case constant.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// IsProdEnvironment returns true if Environment is set to "prod" or "production"
func IsProdEnvironment() bool {
	switch strings.ToLower(GetEnvironment()) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func GetEnvironment() string {
	if env := os.Getenv(constant.Environment); env != "" {
		return env
	}
	return viper.GetString("service.environment")
}

// GetServiceName returns the configured service name, falling back to the binary name.
func GetServiceName() string {
	if name := viper.GetString("service.name"); name != "" {
		return name
	}
	return filepath.Base(os.Args[0])
}

// ExtractBearerToken extracts the bearer token from the Authorization header
func ExtractBearerToken(authHeader string) string {
	if IsEmpty(authHeader) {
		return ""
	}
	if strings.HasPrefix(authHeader, constant.BearerPrefix) {
		return strings.TrimSpace(authHeader[len(constant.BearerPrefix):])
	}
	return ""
}

// RecoverException logs the stack trace of a recovered panic.
func RecoverException(panic any) {
	if panic != nil {
		Println(constant.ERROR, "Exception occured ", panic, "\n", string(debug.Stack()))
	}
}

// GetHealthyMessageFor returns the healthy message for the given dependency
func GetHealthyMessageFor(dependency string) string {
	return dependency + " " + constant.HealthyStatusMessage
}

// CreateLogDirectory makes sure the directory of logFile exists and returns the cleaned path.
func CreateLogDirectory(logFile string) string {
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), GetServiceName()+".log")
	}
	logFile = filepath.Clean(logFile)
	if err := os.MkdirAll(filepath.Dir(logFile), 0750); err != nil {
		Println(constant.ERROR, "failed to create log directory: ", err)
	}
	return logFile
}

// Println prints a message with the specified log mode and color
func Println(mode types.LogMode, args ...any) {
	var color string
	switch mode {
	case constant.INFO:
		color = constant.GreenColor
	case constant.WARN:
		color = constant.YellowColor
	case constant.ERROR, constant.FATAL:
		color = constant.RedColor
	case constant.DEBUG:
		color = constant.BlueColor
	default:
		color = constant.ResetColor
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Println(color + "[" + timestamp + "] [" + string(mode) + "] " + fmt.Sprint(args...) + constant.ResetColor)
	if mode == constant.FATAL {
		os.Exit(1)
	}
}

// TailCallerEncoder keeps the last n path segments of the caller.
func TailCallerEncoder(n int) zapcore.CallerEncoder {
	if n <= 0 {
		return zapcore.ShortCallerEncoder
	}
	return func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		path := caller.File

		sep := 0
		i := len(path) - 1
		for ; i >= 0; i-- {
			if path[i] == '/' || path[i] == '\\' {
				sep++
				if sep == n {
					break
				}
			}
		}
		tail := path[i+1:]
		if strings.IndexByte(tail, '\\') >= 0 {
			tail = strings.ReplaceAll(tail, "\\", "/")
		}

		var sb strings.Builder
		sb.Grow(len(tail) + 12)
		sb.WriteString(tail)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(caller.Line))
		enc.AppendString(sb.String())
	}
}
