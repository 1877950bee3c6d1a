package server

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// roomNamePattern matches the room segment of /ws/chat/<room>/.
var roomNamePattern = regexp.MustCompile(`^\w+$`)

// RoomParams are the path parameters of the chat routes.
type RoomParams struct {
	Room string `param:"room" validate:"required,max=100,roomname"`
}

// Validator wraps the go-playground/validator library to implement Echo's Validator interface.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a Validator with the roomname rule registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("roomname", validateRoomName)
	return &Validator{validator: v}
}

// Validate implements the echo.Validator interface.
func (v *Validator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

func validateRoomName(fl validator.FieldLevel) bool {
	return roomNamePattern.MatchString(fl.Field().String())
}
